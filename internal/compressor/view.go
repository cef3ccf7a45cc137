package compressor

// Stage is where a session sits in its lifecycle
type Stage string

const (
	StageEmpty      Stage = "empty"
	StageHasSource  Stage = "has-source"
	StageHasDerived Stage = "has-source-and-derived"
)

// EventKind names the change that produced a view
type EventKind string

const (
	EventSelected   EventKind = "selected"
	EventPreview    EventKind = "preview"
	EventQuality    EventKind = "quality"
	EventCompressed EventKind = "compressed"
	EventFailed     EventKind = "failed"
	EventReset      EventKind = "reset"
)

// AssetInfo is the metadata block shown under each image
type AssetInfo struct {
	Name      string `json:"name"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
	Type      string `json:"type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	URL       string `json:"url,omitempty"`
}

// View is a snapshot of everything the presentation layer renders
type View struct {
	Event    EventKind `json:"event"`
	Stage    Stage     `json:"stage"`
	Quality  int       `json:"quality"`
	Controls bool      `json:"controls"`

	Original   *AssetInfo `json:"original,omitempty"`
	Compressed *AssetInfo `json:"compressed,omitempty"`
	Saved      string     `json:"saved,omitempty"`

	// Pending is set while the shown compressed image no longer matches the
	// current source and quality.
	Pending bool   `json:"pending"`
	Error   string `json:"error,omitempty"`
}

// Sink receives every view a session publishes. Publish is called with the
// session lock released, in the order the changes were applied.
type Sink interface {
	Publish(v View)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(v View)

func (f SinkFunc) Publish(v View) { f(v) }

type discardSink struct{}

func (discardSink) Publish(View) {}
