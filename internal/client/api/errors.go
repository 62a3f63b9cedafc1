package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sst2020/ai-teaching-assistant-sub000/internal/common"
)

var (
	// ErrUnavailable marks transport-level failures: no response received.
	ErrUnavailable = errors.New("server unavailable")
)

// Error is a response the server answered with a non-2xx status. Detail
// carries the server-supplied human-readable message when present.
type Error struct {
	Status    int
	Detail    string
	RequestID string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Unwrap maps status classes to the shared sentinel errors so callers can
// branch with errors.Is without inspecting status codes.
func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case e.Status == http.StatusNotFound:
		return common.ErrorNotFound
	case e.Status >= http.StatusInternalServerError:
		return common.ErrorInternal
	}
	return nil
}

// Normalize converts any failure into a single display string: the server
// detail when present, otherwise the transport-level message, otherwise a
// generic fallback. Views render this string and never branch on raw error
// internals.
func Normalize(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unexpected error"
}
