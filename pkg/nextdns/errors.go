package nextdns

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrNotFound matches any API error describing a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited matches any API error caused by the per-key rate limit.
	ErrRateLimited = errors.New("rate limited")
)

// ErrorDetail is one element of the "errors" array in a response body.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func (d ErrorDetail) String() string {
	msg := d.Message
	if msg == "" {
		msg = d.Detail
	}
	switch {
	case d.Code != "" && msg != "":
		return d.Code + ": " + msg
	case d.Code != "":
		return d.Code
	default:
		return msg
	}
}

// APIError is returned for non-2xx responses and for 2xx responses that carry an
// "errors" payload.
type APIError struct {
	Method string
	Path   string
	Status int
	Errors []ErrorDetail
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		parts = append(parts, d.String())
	}
	msg := strings.Join(parts, "; ")
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.notFound()
	case ErrRateLimited:
		return e.rateLimited()
	}
	return false
}

func (e *APIError) notFound() bool {
	if e.Status == http.StatusNotFound {
		return true
	}
	for _, d := range e.Errors {
		if strings.EqualFold(d.Code, "notFound") || strings.Contains(strings.ToLower(d.String()), "not found") {
			return true
		}
	}
	return false
}

func (e *APIError) rateLimited() bool {
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	for _, d := range e.Errors {
		if strings.EqualFold(d.Code, "tooManyRequests") || strings.Contains(strings.ToLower(d.String()), "rate limit") {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// parseErrors extracts the "errors" array of a response body.
func parseErrors(body string) []ErrorDetail {
	errs := gjson.Get(body, "errors")
	items := errs.Array()
	if errs.IsObject() {
		items = []gjson.Result{errs}
	}

	var details []ErrorDetail
	for _, value := range items {
		details = append(details, ErrorDetail{
			Code:    value.Get("code").String(),
			Message: value.Get("message").String(),
			Detail:  value.Get("detail").String(),
		})
	}
	return details
}
