// Package stream turns an executor.Stream into an HTTP response whose body is
// filled by a separate pipe task, one payload per stream item.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"

	eventbus "github.com/hanpama/graphedge/internal/eventbus"
	events "github.com/hanpama/graphedge/internal/events"
	executor "github.com/hanpama/graphedge/internal/executor"
	response "github.com/hanpama/graphedge/internal/response"
)

// Mode selects the wire format of a streamed response.
type Mode string

const (
	// Multipart writes each payload as a part of a multipart/mixed body.
	Multipart Mode = "multipart"
	// EventStream writes each payload as a server-sent "next" event.
	EventStream Mode = "event-stream"
)

// Boundary separates multipart payloads.
const Boundary = "-"

const partContentType = "application/json; charset=utf-8"

func init() {
	if _, err := newPartWriter(io.Discard); err != nil {
		panic(err)
	}
}

// newPartWriter returns a multipart writer delimited by Boundary.
func newPartWriter(w io.Writer) (*multipart.Writer, error) {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(Boundary); err != nil {
		return nil, errors.Wrapf(err, "stream: boundary %q", Boundary)
	}
	return mw, nil
}

// ModeFromAccept picks EventStream when accept lists text/event-stream and
// Multipart otherwise.
func ModeFromAccept(accept string) Mode {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "text/event-stream" {
			return EventStream
		}
	}
	return Multipart
}

// Pipe drains the stream into the response body. It returns once the stream
// is closed.
type Pipe func(ctx context.Context) error

// New returns the response for s and the pipe that fills its body. The
// response can be returned to the client immediately; nothing is written
// until pipe runs.
//
// When the reader side is closed early, pipe keeps draining s, discards the
// remaining payloads and reports the write error.
func New(s executor.Stream, mode Mode) (*response.Response, Pipe) {
	pr, pw := io.Pipe()

	header := http.Header{}
	header.Set("Cache-Control", "no-cache")
	var enc encoder
	switch mode {
	case EventStream:
		header.Set("Content-Type", "text/event-stream; charset=utf-8")
		header.Set("Connection", "keep-alive")
		enc = &sseEncoder{w: pw}
	default:
		mode = Multipart
		header.Set("Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, Boundary))
		mw, _ := newPartWriter(pw) // Boundary is checked in init
		enc = &multipartEncoder{w: mw}
	}

	resp := &response.Response{Status: http.StatusOK, Header: header, Body: pr}
	pipe := func(ctx context.Context) error {
		start := time.Now()
		eventbus.Publish(ctx, events.StreamStart{Mode: string(mode)})

		payloads, err := drain(s, enc)
		if err == nil {
			err = enc.close()
		}
		_ = pw.CloseWithError(err)

		eventbus.Publish(ctx, events.StreamFinish{
			Mode:     string(mode),
			Payloads: payloads,
			Err:      err,
			Duration: time.Since(start),
		})
		return err
	}
	return resp, pipe
}

func drain(s executor.Stream, enc encoder) (int, error) {
	var (
		payloads int
		werr     error
	)
	for item := range s {
		if werr != nil {
			continue
		}
		b, err := json.Marshal(item)
		if err != nil {
			werr = errors.Wrap(err, "stream: encode payload")
			continue
		}
		if err := enc.write(b); err != nil {
			werr = errors.Wrap(err, "stream: write payload")
			continue
		}
		payloads++
	}
	return payloads, werr
}

type encoder interface {
	write(payload []byte) error
	close() error
}

type multipartEncoder struct {
	w *multipart.Writer
}

func (e *multipartEncoder) write(payload []byte) error {
	part, err := e.w.CreatePart(textproto.MIMEHeader{"Content-Type": {partContentType}})
	if err != nil {
		return err
	}
	_, err = part.Write(payload)
	return err
}

func (e *multipartEncoder) close() error { return e.w.Close() }

type sseEncoder struct {
	w io.Writer
}

func (e *sseEncoder) write(payload []byte) error {
	var buf bytes.Buffer
	buf.WriteString("event: next\n")
	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := e.w.Write(buf.Bytes())
	return err
}

func (e *sseEncoder) close() error {
	_, err := io.WriteString(e.w, "event: complete\ndata:\n\n")
	return err
}
