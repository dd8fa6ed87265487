package domain

// EventType identifies a stage of the extraction stream.
type EventType string

const (
	EventStart         EventType = "start"
	EventPageRendered  EventType = "page_rendered"
	EventOCRComplete   EventType = "ocr_complete"
	EventLLMStreaming  EventType = "llm_streaming"
	EventLyricsUpdated EventType = "lyrics_updated"
	EventError         EventType = "error"
	EventComplete      EventType = "complete"
)

// StreamEvent is one progress notification emitted by the extraction
// service. Exactly one terminal event (error or complete) ends every
// stream.
type StreamEvent struct {
	Type    EventType
	Payload interface{}
}

// PageRenderedPayload accompanies EventPageRendered.
type PageRenderedPayload struct {
	Page  int
	Total int
}

// OCRCompletePayload accompanies EventOCRComplete.
type OCRCompletePayload struct {
	Pages  int
	Blocks int
}

// CompletePayload accompanies EventComplete: the final structured
// lyrics plus the accumulated raw model text they were parsed from.
type CompletePayload struct {
	Lyrics *StructuredLyrics
	Text   string
}
