// Package response builds HTTP responses that are produced before they are
// written: a status, headers, and a body reader that may still be filling.
package response

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// ContentTypeJSON is the default content type of Reply.
const ContentTypeJSON = "application/json; charset=utf-8"

// Response is an HTTP response ready to be written.
type Response struct {
	Status int
	Header http.Header
	// Body is drained and closed by WriteTo. Closing it early makes pending
	// writes to a streamed body fail.
	Body io.ReadCloser
}

type replyOptions struct {
	indent string
}

// Option configures Reply.
type Option func(*replyOptions)

// Indent makes Reply indent the encoded body with s.
func Indent(s string) Option { return func(o *replyOptions) { o.indent = s } }

// Reply encodes body as JSON into a response with the given status. Entries
// in header replace the defaults.
func Reply(status int, body any, header http.Header, opts ...Option) (*Response, error) {
	var o replyOptions
	for _, f := range opts {
		f(&o)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if o.indent != "" {
		enc.SetIndent("", o.indent)
	}
	if err := enc.Encode(body); err != nil {
		return nil, errors.Wrap(err, "response: encode body")
	}
	h := http.Header{"Content-Type": []string{ContentTypeJSON}}
	for k, v := range header {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return &Response{Status: status, Header: h, Body: io.NopCloser(&buf)}, nil
}

// Header is a shorthand for a single-valued http.Header.
func Header(kv ...string) http.Header {
	h := make(http.Header, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

// WriteTo sends r to w and closes the body. Each chunk read from the body is
// flushed when w supports it, so streamed bodies reach the client as they
// are produced.
func (r *Response) WriteTo(w http.ResponseWriter) (int64, error) {
	defer r.Body.Close()
	dst := w.Header()
	for k, v := range r.Header {
		dst[k] = v
	}
	w.WriteHeader(r.Status)

	flusher, _ := w.(http.Flusher)
	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := r.Body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// ReadAll drains and closes the body. It is meant for tests and for callers
// that need the whole payload in memory.
func (r *Response) ReadAll() ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
