// Package jsontree decodes JSON into an order-preserving tree and searches its string leaves.
package jsontree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object with members in document order.
type Object []Member

// Get returns the value of the first member named key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// String returns the member named key when it holds a string.
func (o Object) String(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Decode parses data into a tree of Object, []any, string, json.Number, bool and nil.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	default:
		return tok, nil
	}
}

// Walk visits every string leaf of v depth-first, objects in document order, and
// stops when fn returns false.
func Walk(v any, fn func(s string) bool) bool {
	switch n := v.(type) {
	case Object:
		for _, m := range n {
			if !Walk(m.Value, fn) {
				return false
			}
		}
	case []any:
		for _, item := range n {
			if !Walk(item, fn) {
				return false
			}
		}
	case string:
		return fn(n)
	}
	return true
}

// FindString returns the first string leaf satisfying match.
func FindString(v any, match func(s string) bool) (string, bool) {
	var found string
	ok := false
	Walk(v, func(s string) bool {
		if match(s) {
			found, ok = s, true
			return false
		}
		return true
	})
	return found, ok
}
