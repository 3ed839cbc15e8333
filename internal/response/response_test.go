package response

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplyEncodesJSON(t *testing.T) {
	resp, err := Reply(http.StatusNotAcceptable, map[string]any{"errors": []any{map[string]any{"message": "bad"}}}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotAcceptable, resp.Status)
	require.Equal(t, ContentTypeJSON, resp.Header.Get("Content-Type"))

	body, err := resp.ReadAll()
	require.NoError(t, err)
	require.JSONEq(t, `{"errors":[{"message":"bad"}]}`, string(body))
}

func TestReplyHeaderOverridesDefault(t *testing.T) {
	resp, err := Reply(http.StatusOK, nil, Header("content-type", "application/graphql+json", "X-Extra", "1"))
	require.NoError(t, err)
	require.Equal(t, []string{"application/graphql+json"}, resp.Header.Values("Content-Type"))
	require.Equal(t, "1", resp.Header.Get("X-Extra"))
}

func TestReplyIndent(t *testing.T) {
	resp, err := Reply(http.StatusOK, map[string]int{"a": 1}, nil, Indent("  "))
	require.NoError(t, err)
	body, err := resp.ReadAll()
	require.NoError(t, err)
	require.Equal(t, "{\n  \"a\": 1\n}\n", string(body))
}

func TestReplyEncodeError(t *testing.T) {
	_, err := Reply(http.StatusOK, map[string]any{"c": make(chan int)}, nil)
	require.Error(t, err)
}

func TestWriteToFlushesEachChunk(t *testing.T) {
	pr, pw := io.Pipe()
	resp := &Response{Status: http.StatusOK, Header: Header("Content-Type", "text/event-stream"), Body: pr}

	go func() {
		_, _ = pw.Write([]byte("one"))
		_, _ = pw.Write([]byte("two"))
		_ = pw.Close()
	}()

	rec := httptest.NewRecorder()
	n, err := resp.WriteTo(rec)
	require.NoError(t, err)
	require.EqualValues(t, 6, n)
	require.Equal(t, "onetwo", rec.Body.String())
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, rec.Flushed)
}

func TestWriteToReportsBodyError(t *testing.T) {
	pr, pw := io.Pipe()
	boom := errors.New("boom")
	_ = pw.CloseWithError(boom)

	rec := httptest.NewRecorder()
	_, err := (&Response{Status: http.StatusOK, Header: http.Header{}, Body: pr}).WriteTo(rec)
	require.ErrorIs(t, err, boom)
}
