package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
)

// GraphQLRequest is the body of a POST request or the query string of a GET.
type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError is a request rejected before it reaches the responder.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

var (
	errMalformedBody   = &requestError{http.StatusNotAcceptable, "malformed body"}
	errQueryRequired   = &requestError{http.StatusNotAcceptable, "query param required"}
	errBodyTooLarge    = &requestError{http.StatusRequestEntityTooLarge, "body too large"}
	errUnsupportedType = &requestError{http.StatusUnsupportedMediaType, "unsupported content type"}
)

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, *requestError) {
	if r.Method == http.MethodGet {
		return parseQueryString(r)
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "application/json" && mt != "application/graphql+json") {
			return GraphQLRequest{}, errUnsupportedType
		}
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, errMalformedBody
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, errBodyTooLarge
	}

	// batches are rejected along with anything else that is not an object
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return GraphQLRequest{}, errMalformedBody
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, errMalformedBody
	}
	if req.Query == "" {
		return GraphQLRequest{}, errQueryRequired
	}
	return req, nil
}

func parseQueryString(r *http.Request) (GraphQLRequest, *requestError) {
	q := r.URL.Query()
	req := GraphQLRequest{Query: q.Get("query"), OperationName: q.Get("operationName")}
	if v := q.Get("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
			return GraphQLRequest{}, errMalformedBody
		}
	}
	if v := q.Get("extensions"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Extensions); err != nil {
			return GraphQLRequest{}, errMalformedBody
		}
	}
	if req.Query == "" {
		return GraphQLRequest{}, errQueryRequired
	}
	return req, nil
}
