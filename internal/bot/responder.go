package bot

import (
	"context"
	"log/slog"

	"github.com/clinichub/clinic-notify/internal/domain/messaging"
)

// Responder decides whether and how to auto-reply to an inbound message.
// Pluggable: the default does nothing.
type Responder interface {
	// Respond returns the reply text for the inbound message. ok=false means
	// no reply should be sent.
	Respond(ctx context.Context, contact *messaging.Contact, inbound string) (reply string, ok bool)
}

// NoopResponder never replies.
type NoopResponder struct{}

func (NoopResponder) Respond(context.Context, *messaging.Contact, string) (string, bool) {
	return "", false
}

// TemplateResponder replies with the first predefined message matching the
// contact's language, falling back to the configured greeting text.
type TemplateResponder struct {
	templates messaging.TemplateStore
	settings  messaging.SettingsStore
	logger    *slog.Logger
}

// NewTemplateResponder creates a template-backed responder.
func NewTemplateResponder(templates messaging.TemplateStore, settings messaging.SettingsStore, logger *slog.Logger) *TemplateResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateResponder{
		templates: templates,
		settings:  settings,
		logger:    logger.With("component", "template_responder"),
	}
}

// Respond picks a reply. Template lookup failures degrade to the greeting.
func (r *TemplateResponder) Respond(ctx context.Context, contact *messaging.Contact, _ string) (string, bool) {
	tpls, err := r.templates.List(ctx)
	if err != nil {
		r.logger.Warn("template list failed", "error", err)
		tpls = nil
	}

	for _, tpl := range tpls {
		if tpl.Language == contact.Language {
			return tpl.Body, true
		}
	}

	settings, err := r.settings.Get(ctx)
	if err != nil || settings.GreetingText == "" {
		return "", false
	}
	return settings.GreetingText, true
}
