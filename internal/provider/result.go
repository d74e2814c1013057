package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind tags the outcome of a Generate call.
type Kind int

const (
	Ok Kind = iota
	Refused
	Timeout
	Invalid
	Forbidden
	NotFound
	QuotaExceeded
	Unavailable
	Unknown
)

var kindNames = map[Kind]string{
	Ok:            "ok",
	Refused:       "response withheld",
	Timeout:       "request timed out",
	Invalid:       "invalid request",
	Forbidden:     "permission denied",
	NotFound:      "model or endpoint not found",
	QuotaExceeded: "quota exceeded",
	Unavailable:   "service unavailable",
	Unknown:       "unexpected error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fatal reports whether the session should end after a result of this kind.
// Timeouts, refusals and unclassified failures leave the session running.
func (k Kind) Fatal() bool {
	switch k {
	case Invalid, Forbidden, NotFound, QuotaExceeded, Unavailable:
		return true
	}
	return false
}

type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// Feedback explains why a reply carries no usable text.
type Feedback struct {
	BlockReason   string
	FinishReason  string
	SafetyRatings []SafetyRating
}

func (f Feedback) String() string {
	var sb strings.Builder
	if f.BlockReason != "" {
		fmt.Fprintf(&sb, "block reason: %s\n", f.BlockReason)
	}
	if f.FinishReason != "" {
		fmt.Fprintf(&sb, "finish reason: %s\n", f.FinishReason)
	}
	for _, r := range f.SafetyRatings {
		fmt.Fprintf(&sb, "  %s: %s", r.Category, r.Probability)
		if r.Blocked {
			sb.WriteString(" (blocked)")
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Result is the tagged outcome of a Generate call: Text is set for Ok,
// Feedback for Refused, Status and Err for everything else.
type Result struct {
	Kind     Kind
	Text     string
	Feedback Feedback
	Status   int
	Err      error
}

func OK(text string) Result { return Result{Kind: Ok, Text: text} }

func Refusal(fb Feedback) Result { return Result{Kind: Refused, Feedback: fb} }

// Failure classifies a transport error or a non-200 status.
func Failure(status int, err error) Result {
	kind := ClassifyStatus(status)
	if status == 0 {
		kind = ClassifyErr(err)
	}
	return Result{Kind: kind, Status: status, Err: err}
}

// Message is the user-facing line for a failed result.
func (r Result) Message() string {
	switch r.Kind {
	case Ok:
		return ""
	case Refused:
		return "The model withheld its response."
	}
	msg := "Error: " + r.Kind.String()
	if r.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", r.Status)
	}
	if r.Err != nil {
		msg += ": " + r.Err.Error()
	}
	return msg
}

// ClassifyStatus maps an HTTP status code to a Kind.
func ClassifyStatus(status int) Kind {
	switch status {
	case http.StatusOK:
		return Ok
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Timeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Invalid
	case http.StatusUnauthorized, http.StatusForbidden:
		return Forbidden
	case http.StatusNotFound:
		return NotFound
	case http.StatusTooManyRequests:
		return QuotaExceeded
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return Unavailable
	}
	return Unknown
}

// ClassifyErr maps a transport error to a Kind.
func ClassifyErr(err error) Kind {
	if err == nil {
		return Unknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unknown
}
