// Package widget holds the request vocabulary shared by the consumer
// pipeline: the wire-format request document, its classification, and the
// flattened record both storage backends consume.
package widget

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a request by its type field.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreate
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Attribute is one name/value pair from a request's otherAttributes list.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request is a Widget Request document as submitted by producers.
//
// Unknown JSON fields are ignored so producers can evolve the format
// without breaking the consumer.
type Request struct {
	Type            string      `json:"type"`
	RequestID       string      `json:"requestId"`
	WidgetID        string      `json:"widgetId"`
	Owner           string      `json:"owner"`
	Label           string      `json:"label"`
	Description     string      `json:"description"`
	OtherAttributes []Attribute `json:"otherAttributes"`
}

// Kind matches the type field case-insensitively. Anything that is not
// create, update or delete is KindUnknown.
func (r Request) Kind() Kind {
	switch strings.ToLower(r.Type) {
	case "create":
		return KindCreate
	case "update":
		return KindUpdate
	case "delete":
		return KindDelete
	default:
		return KindUnknown
	}
}

// ParseRequest decodes one raw request document.
func ParseRequest(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("parse widget request: %w", err)
	}
	return r, nil
}
