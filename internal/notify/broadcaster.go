package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinichub/clinic-notify/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR BROADCASTER
// ══════════════════════════════════════════════════════════════════════════════

// Broadcaster delivers a rendered message to every configured operator
// recipient. One recipient failing never aborts the rest of the batch; the
// aggregate DeliveryReport carries the full per-recipient detail.
type Broadcaster struct {
	sender     notification.Sender
	recipients []notification.Recipient
	logger     *slog.Logger
}

// NewBroadcaster creates a Broadcaster over a fixed operator recipient set.
// Chat IDs and handles may be mixed.
func NewBroadcaster(sender notification.Sender, recipients []notification.Recipient, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		sender:     sender,
		recipients: recipients,
		logger:     logger.With("component", "broadcaster"),
	}
}

// Recipients returns a copy of the configured operator set.
func (b *Broadcaster) Recipients() []notification.Recipient {
	out := make([]notification.Recipient, len(b.recipients))
	copy(out, b.recipients)
	return out
}

// Broadcast sends text to every operator. It never returns an error for
// delivery failures; an empty recipient set produces an empty report with
// zero successes.
func (b *Broadcaster) Broadcast(ctx context.Context, kind notification.Kind, text string) *notification.DeliveryReport {
	report := &notification.DeliveryReport{
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}

	for _, r := range b.recipients {
		if r.IsZero() {
			continue
		}

		result := b.sender.Send(ctx, r, text)
		report.Results = append(report.Results, result)

		if !result.Success {
			b.logger.Warn("delivery failed",
				"kind", kind.String(),
				"recipient", r.String(),
				"error", result.Error,
			)
		}
	}

	report.Duration = time.Since(report.StartedAt)

	if len(report.Results) == 0 {
		b.logger.Warn("broadcast with no operator recipients", "kind", kind.String())
	} else {
		b.logger.Info("broadcast finished",
			"kind", kind.String(),
			"ok", report.Succeeded(),
			"failed", report.Failed(),
		)
	}

	return report
}
