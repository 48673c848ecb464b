package config

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind discriminates the shapes a configuration value can take.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	}
	return "unknown"
}

// Value is one configuration value: scalar text, an ordered list of text,
// or a nested record of named values. No other shape exists.
type Value interface {
	Kind() Kind
}

// String is a scalar value. Numeric and boolean scalars from a source file
// are normalized to their text form at decode time.
type String string

// List is an ordered list of scalar text values.
type List []string

// Record is a nested table of named values.
type Record map[string]Value

func (String) Kind() Kind { return KindString }
func (List) Kind() Kind   { return KindList }
func (Record) Kind() Kind { return KindRecord }

// Merge combines two records, with upper taking precedence. Scalars and
// lists from upper replace the lower value outright; nested records are
// merged field by field so an upper layer can override one sub-field
// without erasing its siblings. Neither input is modified.
func Merge(lower, upper Record) Record {
	out := make(Record, len(lower)+len(upper))
	for k, v := range lower {
		out[k] = v
	}
	for k, uv := range upper {
		lr, lowerIsRecord := out[k].(Record)
		ur, upperIsRecord := uv.(Record)
		if lowerIsRecord && upperIsRecord {
			out[k] = Merge(lr, ur)
			continue
		}
		out[k] = uv
	}
	return out
}

// FromAny converts a decoded TOML tree into a Record, normalizing numeric
// and boolean scalars to text. Shapes outside the closed set, such as an
// array of tables, are rejected.
func FromAny(raw map[string]any) (Record, error) {
	return recordFromAny(raw, "")
}

func recordFromAny(raw map[string]any, path string) (Record, error) {
	rec := make(Record, len(raw))
	for k, v := range raw {
		val, err := valueFromAny(v, joinPath(path, k))
		if err != nil {
			return nil, err
		}
		rec[k] = val
	}
	return rec, nil
}

func valueFromAny(v any, path string) (Value, error) {
	switch t := v.(type) {
	case string:
		return String(t), nil
	case bool:
		return String(strconv.FormatBool(t)), nil
	case int64:
		return String(strconv.FormatInt(t, 10)), nil
	case int:
		return String(strconv.Itoa(t)), nil
	case float64:
		return String(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case []any:
		list := make(List, 0, len(t))
		for i, el := range t {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			sv, err := valueFromAny(el, elemPath)
			if err != nil {
				return nil, err
			}
			s, ok := sv.(String)
			if !ok {
				return nil, fmt.Errorf("%s: lists may only contain scalar values", elemPath)
			}
			list = append(list, string(s))
		}
		return list, nil
	case map[string]any:
		return recordFromAny(t, path)
	case nil:
		return String(""), nil
	default:
		return nil, fmt.Errorf("%s: unsupported value of type %T", path, v)
	}
}

// Plain converts the record back into a generic tree of strings, []any and
// map[string]any, the shape encoding/json produces.
func (r Record) Plain() any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch t := v.(type) {
		case String:
			out[k] = string(t)
		case List:
			items := make([]any, len(t))
			for i, s := range t {
				items[i] = s
			}
			out[k] = items
		case Record:
			out[k] = t.Plain()
		}
	}
	return out
}

// SortedKeys returns the record's keys in lexical order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
