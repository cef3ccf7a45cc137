package web

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"image-squeezer/internal/compressor"
	apperrors "image-squeezer/internal/errors"
	"image-squeezer/internal/handles"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/", indexHandler())
	r.Handle("/static/*", staticHandler())
	r.Get("/health", healthHandler(cfg))
	r.Get(handles.PathPrefix+"{id}", blobHandler(cfg))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", createSessionHandler(cfg))
		r.Get("/{id}", getSessionHandler(cfg))
		r.Delete("/{id}", deleteSessionHandler(cfg))
		r.Post("/{id}/source", uploadSourceHandler(cfg))
		r.Put("/{id}/quality", setQualityHandler(cfg))
		r.Get("/{id}/download", downloadHandler(cfg))
		r.Post("/{id}/reset", resetHandler(cfg))
		r.Get("/{id}/events", eventsHandler(cfg))
	})

	return r
}

func indexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, staticFiles, "static/index.html")
	}
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:         "ok",
			UptimeS:        int64(time.Since(cfg.StartTime).Seconds()),
			Sessions:       cfg.Manager.Len(),
			ActiveEncodes:  cfg.Gate.ActiveCount(),
			LiveHandles:    cfg.Handles.Live(),
			DefaultQuality: cfg.DefaultQuality,
		})
	}
}

func blobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blob, ok := cfg.Handles.Get(chi.URLParam(r, "id"))
		if !ok {
			WriteError(w, http.StatusNotFound, "display handle released", "NOT_FOUND")
			return
		}
		w.Header().Set("Content-Type", blob.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
		w.Header().Set("Cache-Control", "no-store")
		w.Write(blob.Data)
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := cfg.Manager.Create(NewHub())
		WriteJSON(w, http.StatusCreated, SessionResponse{ID: s.ID(), View: s.Snapshot()})
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		WriteJSON(w, http.StatusOK, SessionResponse{ID: s.ID(), View: s.Snapshot()})
	})
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Manager.Remove(chi.URLParam(r, "id")); err != nil {
			writeUserError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// uploadSourceHandler accepts a multipart "file" field. Missing files and
// non-image types are ignored with 204, matching the silent no-op on the page.
func uploadSourceHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		if err := r.ParseMultipartForm(cfg.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeUserError(w, apperrors.ErrUploadTooLarge)
				return
			}
			WriteError(w, http.StatusBadRequest, "invalid multipart body", "BAD_REQUEST")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")
		if !compressor.IsImageType(mimeType) {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read upload", "BAD_REQUEST")
			return
		}

		accepted := s.Accept(&compressor.Candidate{
			Name:     header.Filename,
			MIMEType: mimeType,
			Data:     data,
		})
		if !accepted {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		WriteJSON(w, http.StatusAccepted, SessionResponse{ID: s.ID(), View: s.Snapshot()})
	})
}

func setQualityHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		var req QualityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := s.SetQuality(req.Quality); err != nil {
			writeUserError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionResponse{ID: s.ID(), View: s.Snapshot()})
	})
}

func downloadHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		ok, err := s.Export(func(d compressor.Download) error {
			w.Header().Set("Content-Type", d.MIMEType)
			w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
			w.Header().Set("Content-Disposition",
				mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
			w.WriteHeader(http.StatusOK)
			_, err := w.Write(d.Data)
			return err
		})
		if !ok {
			writeUserError(w, apperrors.ErrNothingToDownload)
			return
		}
		if err != nil {
			cfg.Logger.Warn("download interrupted", "session_id", s.ID(), "error", err)
		}
	})
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		s.Reset()
		WriteJSON(w, http.StatusOK, SessionResponse{ID: s.ID(), View: s.Snapshot()})
	})
}

func eventsHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, s *compressor.Session) {
		hub, ok := s.Sink().(*Hub)
		if !ok {
			WriteError(w, http.StatusConflict, "session has no event stream", "NO_STREAM")
			return
		}
		streamViews(w, r, hub, s.Snapshot, cfg.Logger)
	})
}

func withSession(cfg ServerConfig, next func(http.ResponseWriter, *http.Request, *compressor.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Manager.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeUserError(w, err)
			return
		}
		next(w, r, s)
	}
}
