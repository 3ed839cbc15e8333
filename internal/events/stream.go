package events

import "time"

// StreamStart is emitted when delivery of a streamed result begins.
type StreamStart struct {
	Mode string
}

// StreamFinish is emitted after the last payload of a stream was written or
// delivery failed.
type StreamFinish struct {
	Mode     string
	Payloads int
	Err      error
	Duration time.Duration
}
