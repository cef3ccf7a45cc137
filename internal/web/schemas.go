package web

import "image-squeezer/internal/compressor"

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	UptimeS        int64  `json:"uptime_s"`
	Sessions       int    `json:"sessions"`
	ActiveEncodes  int    `json:"active_encodes"`
	LiveHandles    int    `json:"live_handles"`
	DefaultQuality int    `json:"default_quality"`
}

type SessionResponse struct {
	ID   string          `json:"id"`
	View compressor.View `json:"view"`
}

type QualityRequest struct {
	Quality int `json:"quality"`
}
