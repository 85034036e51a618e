package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECIPIENT
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotConnected is returned when a send is attempted with no live
	// bot connection.
	ErrNotConnected = errors.New("notification: bot is not connected")

	// ErrChatNotFound means the messaging API has never seen this chat; the
	// recipient must message the bot once before it can be addressed.
	ErrChatNotFound = errors.New("notification: chat not found")
)

// Recipient is one operator delivery address: a numeric chat ID or a handle.
type Recipient struct {
	ChatID int64
	Handle string
}

// ByChatID builds a chat-ID recipient.
func ByChatID(id int64) Recipient { return Recipient{ChatID: id} }

// ByHandle builds a handle recipient. The leading '@' is optional.
func ByHandle(handle string) Recipient {
	if len(handle) > 0 && handle[0] == '@' {
		handle = handle[1:]
	}
	return Recipient{Handle: handle}
}

// IsZero reports whether the recipient has no address at all.
func (r Recipient) IsZero() bool {
	return r.ChatID == 0 && r.Handle == ""
}

// String returns the address in human-readable form.
func (r Recipient) String() string {
	if r.Handle != "" {
		return "@" + r.Handle
	}
	return strconv.FormatInt(r.ChatID, 10)
}

// ParseRecipient parses "12345" or "@handle" into a Recipient.
func ParseRecipient(s string) (Recipient, error) {
	if s == "" {
		return Recipient{}, errors.New("notification: empty recipient")
	}
	if s[0] == '@' {
		return ByHandle(s), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Bare handle without '@'.
		return ByHandle(s), nil
	}
	return ByChatID(id), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult is the outcome of one send to one recipient.
type DeliveryResult struct {
	Recipient   Recipient
	Success     bool
	MessageID   int64
	DeliveredAt time.Time
	Error       error

	// Retryable marks transient failures (rate limit, network).
	Retryable bool
}

// NewSuccessResult builds a successful per-recipient result.
func NewSuccessResult(r Recipient, messageID int64) DeliveryResult {
	return DeliveryResult{
		Recipient:   r,
		Success:     true,
		MessageID:   messageID,
		DeliveredAt: time.Now().UTC(),
	}
}

// NewFailureResult builds a failed per-recipient result.
func NewFailureResult(r Recipient, err error, retryable bool) DeliveryResult {
	return DeliveryResult{
		Recipient:   r,
		DeliveredAt: time.Now().UTC(),
		Error:       err,
		Retryable:   retryable,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY REPORT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryReport aggregates one broadcast over the operator set. A partial
// failure is not an error: callers inspect the report instead of parsing logs.
type DeliveryReport struct {
	Kind      Kind
	Results   []DeliveryResult
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded returns the number of successful deliveries.
func (r *DeliveryReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed deliveries.
func (r *DeliveryReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Delivered reports whether at least one recipient got the message. Callers
// treat this as "sent" for logging purposes.
func (r *DeliveryReport) Delivered() bool {
	return r.Succeeded() > 0
}

// FailedRecipients returns the recipients that did not get the message.
func (r *DeliveryReport) FailedRecipients() []Recipient {
	var out []Recipient
	for _, res := range r.Results {
		if !res.Success {
			out = append(out, res.Recipient)
		}
	}
	return out
}

// Summary returns a one-line description for logs.
func (r *DeliveryReport) Summary() string {
	return fmt.Sprintf("%s: %d ok, %d failed of %d",
		r.Kind, r.Succeeded(), r.Failed(), len(r.Results))
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDER
// ══════════════════════════════════════════════════════════════════════════════

// Sender delivers a rendered message to a single recipient. Implemented by the
// bot connection; faked in tests.
type Sender interface {
	Send(ctx context.Context, r Recipient, text string) DeliveryResult
}
