package pageflow

// Default topic names.
const (
	TopicGenerated    = "PageEvents.Generated"
	TopicDurations    = "PageEvents.Durations"
	TopicWindowCounts = "PageEvents.WindowCounts"
	TopicConsole      = "PageEvents.Console"
)

// Record header keys.
const (
	HeaderEventType   = "event_type"
	HeaderMessageID   = "message_id"
	HeaderContentType = "content_type"
)

// Header values written by this module.
const (
	EventTypePageEvent   = "page_event"
	EventTypeDuration    = "page_duration"
	EventTypeWindowCount = "page_window_count"

	ContentTypeJSON  = "application/json"
	ContentTypeInt64 = "application/x-int64"
)
