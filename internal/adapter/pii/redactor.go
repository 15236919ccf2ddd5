package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive property values before events are encoded.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lower-cased for case-insensitive lookups
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor for the given property names. Blank
// names are ignored.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		fieldSet[field] = struct{}{}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact replaces matching property values in place and reports whether
// anything was masked. The property map is copied before modification so
// callers sharing it are unaffected.
func (r *Redactor) Redact(event *domain.LogEvent) bool {
	if r == nil || len(r.fieldsToRedact) == 0 || len(event.Properties) == 0 {
		return false
	}

	var redacted map[string]any
	for key := range event.Properties {
		if _, ok := r.fieldsToRedact[strings.ToLower(key)]; !ok {
			continue
		}
		if redacted == nil {
			redacted = make(map[string]any, len(event.Properties))
			for k, v := range event.Properties {
				redacted[k] = v
			}
		}
		redacted[key] = RedactedPlaceholder
	}

	if redacted == nil {
		return false
	}
	event.Properties = redacted
	r.logger.Debug("redacted sensitive properties", "message_template", event.MessageTemplate)
	return true
}
