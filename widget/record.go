package widget

import (
	"fmt"
	"strings"
)

// Record is a flattened widget: every attribute a top-level string pair.
// Both storage backends consume this shape directly. Key order is not
// meaningful.
type Record map[string]string

// MissingFieldError reports a create request without a required field.
// A field that is present but empty counts as missing.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("widget request missing required field %q", e.Field)
}

// Flatten converts a create request into a Record.
//
// widgetId and owner are required. label and description are copied only
// when non-empty. otherAttributes land one key per entry; on duplicate
// names the last write wins, and an entry named like a reserved key
// (widget_id, owner, label, description) shadows it.
func (r Request) Flatten() (Record, error) {
	if r.WidgetID == "" {
		return nil, &MissingFieldError{Field: "widgetId"}
	}
	if r.Owner == "" {
		return nil, &MissingFieldError{Field: "owner"}
	}

	rec := Record{
		"widget_id": r.WidgetID,
		"owner":     r.Owner,
	}
	if r.Label != "" {
		rec["label"] = r.Label
	}
	if r.Description != "" {
		rec["description"] = r.Description
	}
	for _, a := range r.OtherAttributes {
		rec[a.Name] = a.Value
	}
	return rec, nil
}

// NormalizeOwner makes an owner name key-safe: spaces become dashes and
// everything is lowercased.
func NormalizeOwner(owner string) string {
	return strings.ToLower(strings.ReplaceAll(owner, " ", "-"))
}

// StorageKey builds the blob-store key for a widget:
// widgets/{normalized owner}/{widget id}.
func StorageKey(owner, widgetID string) string {
	return fmt.Sprintf("widgets/%s/%s", NormalizeOwner(owner), widgetID)
}
