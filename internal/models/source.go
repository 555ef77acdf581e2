package models

// Source tells which storage answered a booking store call.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)
