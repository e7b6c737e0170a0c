package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Record is one row of normalized data. Keys keep first-seen order; setting an
// existing key replaces its value without moving it.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord returns an empty record with room for n keys.
func NewRecord(n int) Record {
	return Record{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Set stores v under key.
func (r *Record) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the record's keys in order. The slice must not be modified.
func (r Record) Keys() []string { return r.keys }

// Len returns the number of keys.
func (r Record) Len() int { return len(r.keys) }

// MarshalJSON encodes the record as a JSON object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping document key order. Values are
// taken as-is; no numeric coercion is applied.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid JSON object", ErrMalformedInput)
	}
	obj := gjson.ParseBytes(data)
	if !obj.IsObject() {
		return fmt.Errorf("%w: expected object, got %s", ErrMalformedInput, obj.Type)
	}
	*r = recordFromJSON(obj)
	return nil
}

// recordFromJSON converts a parsed JSON object into a Record.
func recordFromJSON(obj gjson.Result) Record {
	rec := NewRecord(0)
	obj.ForEach(func(key, value gjson.Result) bool {
		rec.Set(key.String(), valueFromJSON(value))
		return true
	})
	return rec
}

// valueFromJSON converts one JSON value. Literals that overflow float64, such
// as 1e999, stay text so every Number is finite.
func valueFromJSON(v gjson.Result) Value {
	switch v.Type {
	case gjson.String:
		return Text(v.Str)
	case gjson.Number:
		if math.IsInf(v.Num, 0) || math.IsNaN(v.Num) {
			return Text(v.Raw)
		}
		return Number(v.Num)
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.JSON:
		return Raw(json.RawMessage(v.Raw))
	default:
		return Null()
	}
}
