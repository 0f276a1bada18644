// README: Assistant request/answer shapes, limits and errors.
package assistant

import (
	"errors"
	"time"

	"dropspot/internal/errs"
)

const (
	// DefaultMonthlyQuota is the number of questions a user may ask per calendar month.
	DefaultMonthlyQuota = 100

	MaxMessageLength = 1000
	MaxHistory       = 10
	MaxContextLength = 4000
)

var (
	// ErrQuotaExceeded is returned when a user has no questions left this month.
	ErrQuotaExceeded = errors.New("monthly assistant quota exceeded")

	ErrEmptyMessage   = errs.Validation("message must not be empty")
	ErrMessageTooLong = errs.Validation("message must be at most 1000 characters")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Message        string    `json:"message"`
	History        []Message `json:"chat_history"`
	IncludeContext bool      `json:"include_context"`
}

type Answer struct {
	Response    string    `json:"response"`
	ContextUsed bool      `json:"context_used"`
	Timestamp   time.Time `json:"timestamp"`
}
