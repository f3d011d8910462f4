package httpx

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

const (
	// FormContentType is the only body type accepted by ParseForm.
	FormContentType = "application/x-www-form-urlencoded"

	// DefaultMaxFormBytes caps form bodies when no explicit limit is given.
	DefaultMaxFormBytes int64 = 128 << 10
)

// StatusError is a request rejected at the transport level. Handlers answer
// it with the bare status and an empty body.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpx: request rejected with status %d", e.Status)
}

// ParseForm reads an application/x-www-form-urlencoded body of at most
// maxBytes. Failures are reported as *StatusError:
//
//   - 415 when a Content-Type other than the form type is declared
//   - 400 when there is no body or it is not valid form encoding
//   - 413 when the declared or actual length exceeds maxBytes
//
// A missing Content-Type is tolerated.
func ParseForm(r *http.Request, maxBytes int64) (url.Values, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFormBytes
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != FormContentType {
			return nil, &StatusError{Status: http.StatusUnsupportedMediaType}
		}
	}

	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil, &StatusError{Status: http.StatusBadRequest}
	}

	if r.ContentLength > maxBytes {
		return nil, &StatusError{Status: http.StatusRequestEntityTooLarge}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadRequest}
	}
	if int64(len(body)) > maxBytes {
		return nil, &StatusError{Status: http.StatusRequestEntityTooLarge}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &StatusError{Status: http.StatusBadRequest}
	}

	return values, nil
}
