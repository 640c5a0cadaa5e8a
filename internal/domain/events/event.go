package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// Well-known keys of an event record. Only id is interpreted by the server;
// title, date and description are documented for clients but stored as sent.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldDate        = "date"
	FieldDescription = "description"
)

// errNotObject marks a stored record that is not a JSON object. It is a
// document problem, never a client input error.
var errNotObject = errors.New("event record is not a JSON object")

// Event is an open record. ID is owned by the server; every other key is
// kept in Fields exactly as it was received, whatever its JSON type.
type Event struct {
	ID     string
	Fields map[string]json.RawMessage

	// rawID holds a non-string id found in a hand-edited document so it is
	// written back unchanged.
	rawID json.RawMessage
}

// Title returns the title when it is stored as a JSON string.
func (e Event) Title() string { return e.Text(FieldTitle) }

// Date returns the date when it is stored as a JSON string.
func (e Event) Date() string { return e.Text(FieldDate) }

// Description returns the description when it is stored as a JSON string.
func (e Event) Description() string { return e.Text(FieldDescription) }

// Text returns the string value of key, or "" when the key is absent or
// holds another JSON type.
func (e Event) Text(key string) string {
	var value string
	if raw, ok := e.Fields[key]; ok {
		_ = json.Unmarshal(raw, &value)
	}
	return value
}

// MarshalJSON writes Fields and the id as one flat object. Keys the client
// never sent are not emitted.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Fields)+1)
	maps.Copy(out, e.Fields)
	delete(out, FieldID)

	switch {
	case e.rawID != nil:
		out[FieldID] = e.rawID
	case e.ID != "":
		raw, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		out[FieldID] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a stored record. Field values are never type checked,
// so any object a client was able to store can be read back.
func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errNotObject
	}
	if fields == nil {
		return errNotObject
	}

	*e = Event{}
	if raw, ok := fields[FieldID]; ok {
		if err := json.Unmarshal(raw, &e.ID); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			e.ID = ""
			e.rawID = bytes.Clone(raw)
		}
		delete(fields, FieldID)
	}
	if len(fields) > 0 {
		e.Fields = fields
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.rawID = bytes.Clone(e.rawID)
	if e.Fields != nil {
		out.Fields = make(map[string]json.RawMessage, len(e.Fields))
		for key, value := range e.Fields {
			out.Fields[key] = bytes.Clone(value)
		}
	}
	return out
}

// Apply shallow-merges patch into the event: each top-level key replaces
// the stored value verbatim. The id key is ignored so a record's identifier
// can never be overwritten by client input.
func (e *Event) Apply(patch Patch) {
	for key, raw := range patch {
		if key == FieldID {
			continue
		}
		if e.Fields == nil {
			e.Fields = make(map[string]json.RawMessage, len(patch))
		}
		e.Fields[key] = bytes.Clone(raw)
	}
}

// Patch is a set of top-level fields to merge into an event.
type Patch map[string]json.RawMessage

// ParsePatch decodes a request body into a Patch. The body must be a
// single JSON object; the values inside it are not checked.
func ParsePatch(data []byte) (Patch, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, InputError{Message: "request body is required"}
	}
	if data[0] != '{' {
		return nil, InputError{Message: "request body must be a JSON object"}
	}

	var patch Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, InputError{Message: "malformed JSON: " + err.Error()}
	}
	return patch, nil
}

// Keys returns the patch keys, used for logging.
func (p Patch) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}
