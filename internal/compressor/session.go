package compressor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	apperrors "image-squeezer/internal/errors"
	"image-squeezer/internal/handles"
	"image-squeezer/internal/image"
	"image-squeezer/internal/limiter"
)

// DefaultQuality is the slider position a fresh or reset session starts at.
const DefaultQuality = 80

// Encoder is the codec a session delegates to
type Encoder interface {
	Inspect(data []byte) (*image.Metadata, error)
	Compress(ctx context.Context, data []byte, factor float64) (*image.Result, error)
}

// Candidate is a file offered for selection
type Candidate struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Download is handed to the save action during Export
type Download struct {
	Name     string
	MIMEType string
	Data     []byte
	Handle   handles.Handle
}

// IsImageType reports whether a declared MIME type is acceptable input
func IsImageType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

type sourceAsset struct {
	Candidate
	generation uint64
	meta       *image.Metadata
	preview    *handles.Handle
}

type derivedAsset struct {
	result     *image.Result
	generation uint64
	quality    int
	handle     handles.Handle
}

// Options configures a Session
type Options struct {
	ID             string
	DefaultQuality int
	Encoder        Encoder
	Handles        *handles.Registry
	Gate           *limiter.Gate
	Sink           Sink
	Logger         *slog.Logger
}

// Session owns one source asset, at most one derived asset and the display
// handles that reference them. All state changes happen under mu; decode and
// encode run on goroutines without it.
type Session struct {
	id             string
	defaultQuality int
	encoder        Encoder
	handles        *handles.Registry
	gate           *limiter.Gate
	sink           Sink
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	// pubMu is taken before mu is released so views reach the sink in the
	// order their changes were applied.
	pubMu sync.Mutex

	mu         sync.Mutex
	source     *sourceAsset
	derived    *derivedAsset
	quality    int
	generation uint64
	token      uint64
	lastEvent  EventKind
	errMsg     string
	lastUsed   time.Time
	closed     bool
}

// NewSession creates an empty session
func NewSession(opts Options) *Session {
	if opts.DefaultQuality < 1 || opts.DefaultQuality > 100 {
		opts.DefaultQuality = DefaultQuality
	}
	if opts.Encoder == nil {
		opts.Encoder = image.NewProcessor(0)
	}
	if opts.Handles == nil {
		opts.Handles = handles.NewRegistry()
	}
	if opts.Gate == nil {
		opts.Gate = limiter.NewGate(0)
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:             opts.ID,
		defaultQuality: opts.DefaultQuality,
		encoder:        opts.Encoder,
		handles:        opts.Handles,
		gate:           opts.Gate,
		sink:           opts.Sink,
		logger:         opts.Logger.With("session_id", opts.ID),
		ctx:            ctx,
		cancel:         cancel,
		quality:        opts.DefaultQuality,
		lastEvent:      EventReset,
		lastUsed:       time.Now(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Sink returns the presentation sink the session publishes to
func (s *Session) Sink() Sink {
	return s.sink
}

// Accept selects c as the new source. A nil candidate or a non-image type is
// ignored and Accept returns false. On acceptance the previous assets and
// their handles are dropped, then preview and recompression start together.
func (s *Session) Accept(c *Candidate) bool {
	if c == nil || !IsImageType(c.MIMEType) {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.touchLocked()
	s.releaseLocked()

	s.generation++
	s.token++
	src := &sourceAsset{Candidate: *c, generation: s.generation}
	s.source = src
	s.errMsg = ""
	quality := s.quality
	token := s.token

	s.tasks.Add(2)
	go s.preview(src)
	go s.recompress(src, token, quality)

	s.logger.Info("source selected",
		"name", c.Name,
		"type", c.MIMEType,
		"size", humanize.Bytes(uint64(len(c.Data))),
	)
	s.publishAndUnlock(EventSelected)
	return true
}

// SetQuality moves the quality slider. With a source present it invalidates
// the derived asset and starts a new recompression.
func (s *Session) SetQuality(percent int) error {
	if percent < 1 || percent > 100 {
		return fmt.Errorf("quality %d: %w", percent, apperrors.ErrInvalidQuality)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.ErrSessionNotFound
	}
	s.touchLocked()
	s.quality = percent

	if s.source != nil {
		s.token++
		s.errMsg = ""
		s.tasks.Add(1)
		go s.recompress(s.source, s.token, percent)
	}

	s.publishAndUnlock(EventQuality)
	return nil
}

// Export passes the derived asset to save under a temporary handle that is
// released once save returns. It reports false without calling save when no
// derived asset matches the current source and quality.
func (s *Session) Export(save func(Download) error) (bool, error) {
	s.mu.Lock()
	s.touchLocked()
	if !s.exportableLocked() {
		s.mu.Unlock()
		return false, nil
	}
	d := Download{
		Name:     DownloadName(s.source.Name),
		MIMEType: image.OutputMIMEType,
		Data:     s.derived.result.Data,
	}
	d.Handle = s.handles.Create(d.Data, d.MIMEType)
	s.mu.Unlock()

	defer s.handles.Release(d.Handle)

	if err := save(d); err != nil {
		return true, fmt.Errorf("save %s: %w", d.Name, err)
	}
	s.logger.Info("exported", "name", d.Name, "size", humanize.Bytes(uint64(len(d.Data))))
	return true, nil
}

// Reset drops both assets, releases their handles and restores the default
// quality. Completions still in flight are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	s.touchLocked()
	s.releaseLocked()
	s.source = nil
	s.quality = s.defaultQuality
	s.errMsg = ""
	s.generation++
	s.token++
	s.publishAndUnlock(EventReset)
}

// Snapshot returns the current view
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	return s.viewLocked(s.lastEvent)
}

// Wait blocks until every started preview and recompression has finished.
// It must not be called concurrently with Accept or SetQuality.
func (s *Session) Wait() {
	s.tasks.Wait()
}

// Close releases everything and stops accepting work. In-flight encodes are
// cancelled and awaited.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.releaseLocked()
	s.source = nil
	s.generation++
	s.token++
	s.mu.Unlock()

	s.cancel()
	s.tasks.Wait()
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IdleSince returns when the session was last used
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) preview(src *sourceAsset) {
	defer s.tasks.Done()

	meta, err := s.encoder.Inspect(src.Data)

	s.mu.Lock()
	if s.source != src {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.failLocked(err)
		return
	}
	h := s.handles.Create(src.Data, src.MIMEType)
	src.meta = meta
	src.preview = &h
	s.publishAndUnlock(EventPreview)
}

func (s *Session) recompress(src *sourceAsset, token uint64, quality int) {
	defer s.tasks.Done()

	if err := s.gate.Acquire(s.ctx, s.id); err != nil {
		return
	}
	start := time.Now()
	res, err := s.encoder.Compress(s.ctx, src.Data, float64(quality)/100)
	s.gate.Release(s.id)

	s.mu.Lock()
	if token != s.token || s.source != src {
		s.mu.Unlock()
		s.logger.Debug("discarding stale compression", "quality", quality, "token", token)
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.mu.Unlock()
			return
		}
		s.failLocked(err)
		return
	}

	if s.derived != nil {
		s.handles.Release(s.derived.handle)
	}
	s.derived = &derivedAsset{
		result:     res,
		generation: src.generation,
		quality:    quality,
		handle:     s.handles.Create(res.Data, image.OutputMIMEType),
	}
	s.errMsg = ""

	s.logger.Info("compressed",
		"quality", quality,
		"original_size", humanize.Bytes(uint64(len(src.Data))),
		"compressed_size", humanize.Bytes(uint64(len(res.Data))),
		"saved", FormatReduction(int64(len(src.Data)), res.Size()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.publishAndUnlock(EventCompressed)
}

func (s *Session) failLocked(err error) {
	s.logger.Warn("image processing failed", "error", err)
	s.errMsg = apperrors.GetUserMessage(err)
	s.publishAndUnlock(EventFailed)
}

// releaseLocked revokes every handle the session holds and forgets the
// derived asset.
func (s *Session) releaseLocked() {
	if s.source != nil && s.source.preview != nil {
		s.handles.Release(*s.source.preview)
		s.source.preview = nil
	}
	if s.derived != nil {
		s.handles.Release(s.derived.handle)
		s.derived = nil
	}
}

func (s *Session) exportableLocked() bool {
	return s.source != nil &&
		s.derived != nil &&
		s.derived.generation == s.source.generation &&
		s.derived.quality == s.quality
}

func (s *Session) touchLocked() {
	s.lastUsed = time.Now()
}

// publishAndUnlock snapshots the view, releases mu and hands the view to the
// sink while holding pubMu.
func (s *Session) publishAndUnlock(ev EventKind) {
	s.lastEvent = ev
	v := s.viewLocked(ev)
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	s.sink.Publish(v)
}

func (s *Session) viewLocked(ev EventKind) View {
	v := View{
		Event:   ev,
		Stage:   StageEmpty,
		Quality: s.quality,
		Error:   s.errMsg,
	}
	if s.source == nil {
		return v
	}

	src := s.source
	v.Stage = StageHasSource
	v.Controls = true
	v.Original = &AssetInfo{
		Name:      src.Name,
		Size:      FormatSize(int64(len(src.Data))),
		SizeBytes: int64(len(src.Data)),
		Type:      src.MIMEType,
	}
	if src.meta != nil {
		v.Original.Width = src.meta.Width
		v.Original.Height = src.meta.Height
	}
	if src.preview != nil {
		v.Original.URL = src.preview.URL()
	}

	if d := s.derived; d != nil {
		v.Stage = StageHasDerived
		v.Compressed = &AssetInfo{
			Name:      src.Name,
			Size:      FormatSize(d.result.Size()),
			SizeBytes: d.result.Size(),
			Type:      image.OutputMIMEType,
			Width:     d.result.Width,
			Height:    d.result.Height,
			URL:       d.handle.URL(),
		}
		if saved := FormatReduction(int64(len(src.Data)), d.result.Size()); saved == "N/A" {
			v.Saved = saved
		} else {
			v.Saved = saved + "%"
		}
	}

	v.Pending = s.errMsg == "" && !s.exportableLocked()
	return v
}
