package ai

import (
	"context"
	"errors"
	"net"
	"net/http"

	"google.golang.org/genai"

	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

// statusError converts an upstream HTTP failure into an external-service
// error whose transience the retry policy can inspect. Rate limits and 5xx
// responses are transient; auth failures and malformed requests are not.
// The status line stays in the message so callers can tell a rejected
// request from an unreachable service.
func statusError(service string, status int, detail string) error {
	err := errs.ExternalServicef(service, "request failed: status %d: %s", status, detail)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return errs.Transient(err)
	}
	return err
}

// transportError classifies a failed round trip: timeouts and connection
// problems are transient, a cancelled context is not.
func transportError(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return errs.Transient(errs.ExternalServicef(service, "request failed: %v", err))
	}
	return errs.Transient(errs.ExternalServicef(service, "unreachable: %v", err))
}

// geminiError routes genai SDK failures through the same status
// classification as raw HTTP providers, so a 4xx from Gemini is not
// retried while rate limits and 5xx responses are.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError("gemini", apiErr.Code, apiErr.Message)
	}
	return transportError("gemini", err)
}
