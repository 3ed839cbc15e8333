package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the GraphQL endpoint receives a request. The
// event context carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response, including any streamed body,
// has been written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Bytes    int64
	Duration time.Duration
}
