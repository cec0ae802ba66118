package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	qs "github.com/google/go-querystring/query"
)

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyJSON
	bodyForm
)

// Body is the request payload: nothing, a JSON document, or a url-encoded form.
type Body struct {
	kind  bodyKind
	value any
}

// Empty sends no body.
func Empty() Body { return Body{kind: bodyEmpty} }

// JSON sends v encoded as application/json.
func JSON(v any) Body { return Body{kind: bodyJSON, value: v} }

// Form sends v encoded as application/x-www-form-urlencoded. v is a struct
// with `url` tags.
func Form(v any) Body { return Body{kind: bodyForm, value: v} }

func (b Body) encode() (io.Reader, string, error) {
	switch b.kind {
	case bodyJSON:
		data, err := json.Marshal(b.value)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	case bodyForm:
		vals, err := qs.Values(b.value)
		if err != nil {
			return nil, "", err
		}
		return strings.NewReader(vals.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", nil
	}
}

func (b Body) String() string {
	switch b.kind {
	case bodyJSON:
		return "json"
	case bodyForm:
		return "form"
	default:
		return "empty"
	}
}
