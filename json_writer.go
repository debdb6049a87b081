package cryptotax

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonObjectWriter writes a JSON object whose keys keep their call order, so
// that a report marshals to the same bytes on every run. The first error is
// kept and returned by MarshalJSON. The zero value is an empty object.
type jsonObjectWriter struct {
	body bytes.Buffer
	err  error
}

func (w *jsonObjectWriter) Append(key string, value any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	k, err := json.Marshal(key)
	if err != nil {
		w.err = err
		return w
	}
	v, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("%s: %w", key, err)
		return w
	}
	if w.body.Len() > 0 {
		w.body.WriteByte(',')
	}
	w.body.Write(k)
	w.body.WriteByte(':')
	w.body.Write(v)
	return w
}

// Optional is Append, skipped for a zero value: no gaps, no missing flag.
func (w *jsonObjectWriter) Optional(key string, value any) *jsonObjectWriter {
	if v := reflect.ValueOf(value); !v.IsValid() || v.IsZero() {
		return w
	}
	return w.Append(key, value)
}

func (w *jsonObjectWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, w.body.Len()+2)
	out = append(out, '{')
	out = append(out, w.body.Bytes()...)
	return append(out, '}'), nil
}
