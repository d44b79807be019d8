package protocol

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"
)

// messageSchema describes one outward message: an object with exactly one
// recognized key whose value is an array of at most one element.
const messageSchema = `{
	"$schema": "http://json-schema.org/draft-04/schema#",
	"type": "object",
	"minProperties": 1,
	"maxProperties": 1,
	"additionalProperties": false,
	"properties": {
		"load":   {"type": "array", "maxItems": 0},
		"verify": {"type": "array", "maxItems": 1},
		"expire": {"type": "array", "maxItems": 1},
		"error":  {"type": "array", "maxItems": 1}
	}
}`

var schema = mustLoadSchema()

func mustLoadSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(messageSchema))
	if err != nil {
		panic("protocol: invalid message schema: " + err.Error())
	}
	return s
}

// Encode serializes e in wire form, e.g. {"verify":["token"]}.
func Encode(e Event) ([]byte, error) {
	if !e.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedMessage, e.Kind)
	}
	payload := []string{}
	if e.Kind.HasPayload() {
		payload = append(payload, e.Payload)
	}
	return sonic.ConfigStd.Marshal(map[string][]string{string(e.Kind): payload})
}

// Validate checks raw against the message schema without decoding it.
func Validate(raw []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			reasons = append(reasons, re.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedMessage, strings.Join(reasons, "; "))
	}
	return nil
}

// Decode parses one outward message. A null element decodes to an empty
// payload; any other non-string element is kept as its JSON text.
func Decode(raw []byte) (Event, error) {
	if err := Validate(raw); err != nil {
		return Event{}, err
	}

	var msg map[string][]interface{}
	if err := sonic.ConfigStd.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	for key, elems := range msg {
		e := Event{Kind: Kind(key)}
		if len(elems) == 0 {
			return e, nil
		}
		switch v := elems[0].(type) {
		case nil:
		case string:
			e.Payload = v
		default:
			text, err := sonic.ConfigStd.MarshalToString(v)
			if err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
			}
			e.Payload = text
		}
		return e, nil
	}
	return Event{}, fmt.Errorf("%w: empty message", ErrMalformedMessage)
}

// DecodeString is Decode for messages received as text, which is how web
// view bridges deliver them.
func DecodeString(raw string) (Event, error) {
	return Decode([]byte(raw))
}

// MarshalJSON implements json.Marshaler using the wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	return Encode(e)
}

// UnmarshalJSON implements json.Unmarshaler using the wire form.
func (e *Event) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}
