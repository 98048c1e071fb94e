package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The UI layer historically encoded several focus fields in two shapes: a bare
// scalar, or a structured object carrying the same value under a named
// sub-field. Both shapes remain valid on the wire. The Flex types capture that
// ambiguity as a tagged union at the module boundary with an explicit
// canonicalization accessor, so nothing downstream of the domain package ever
// sees the raw dual encoding.

// FlexString is a string-or-object field such as workout focus. The object
// form carries the value under "focus" or "label".
type FlexString struct {
	value string
	// raw preserves unrecognized shapes for diagnostics.
	raw json.RawMessage
}

// NewFlexString builds the scalar form. Used by tests and request builders.
func NewFlexString(v string) FlexString { return FlexString{value: v} }

// UnmarshalJSON accepts either a JSON string or an object with a "focus" or
// "label" member. Unknown shapes fall back to a string coercion of the whole
// payload; the caller decides whether that is acceptable.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = s
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range []string{"focus", "label"} {
			if raw, ok := obj[key]; ok {
				if err := json.Unmarshal(raw, &s); err == nil {
					f.value = s
					return nil
				}
			}
		}
	}

	f.raw = append(json.RawMessage(nil), data...)
	f.value = coerceString(data)
	return nil
}

// MarshalJSON always emits the canonical scalar form.
func (f FlexString) MarshalJSON() ([]byte, error) { return json.Marshal(f.value) }

// Canonical returns the canonical string value, trimmed.
func (f FlexString) Canonical() string { return strings.TrimSpace(f.value) }

// IsZero reports whether no usable value was decoded.
func (f FlexString) IsZero() bool { return strings.TrimSpace(f.value) == "" }

// WasCoerced reports whether the value came from an unrecognized shape.
func (f FlexString) WasCoerced() bool { return len(f.raw) > 0 }

// FlexDuration is a number-or-object duration field in minutes. The object
// form carries the value under "duration" or "minutes".
type FlexDuration struct {
	minutes Minutes
	set     bool
	raw     json.RawMessage
}

// NewFlexDuration builds the scalar form.
func NewFlexDuration(m Minutes) FlexDuration { return FlexDuration{minutes: m, set: true} }

// UnmarshalJSON accepts a bare number, a numeric string, or an object with a
// "duration" or "minutes" member.
func (f *FlexDuration) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		f.minutes = Minutes(n)
		f.set = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			f.minutes = Minutes(parsed)
			f.set = true
			return nil
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range []string{"duration", "minutes"} {
			if raw, ok := obj[key]; ok {
				var nested FlexDuration
				if err := nested.UnmarshalJSON(raw); err == nil && nested.set {
					*f = nested
					return nil
				}
			}
		}
	}

	f.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON always emits the canonical numeric form.
func (f FlexDuration) MarshalJSON() ([]byte, error) { return json.Marshal(int64(f.minutes)) }

// Canonical returns the canonical minute value and whether one was decoded.
func (f FlexDuration) Canonical() (Minutes, bool) { return f.minutes, f.set }

// IsZero reports whether no usable value was decoded.
func (f FlexDuration) IsZero() bool { return !f.set }

// FlexEquipment is an array-or-object equipment field. The object form
// carries the list under "specificEquipment".
type FlexEquipment struct {
	items []string
	raw   json.RawMessage
}

// NewFlexEquipment builds the list form.
func NewFlexEquipment(items ...string) FlexEquipment { return FlexEquipment{items: items} }

// UnmarshalJSON accepts a JSON string array, a single string, or an object
// with a "specificEquipment" array member.
func (f *FlexEquipment) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		f.items = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			f.items = []string{s}
		}
		return nil
	}

	var obj struct {
		SpecificEquipment []string `json:"specificEquipment"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.SpecificEquipment != nil {
		f.items = obj.SpecificEquipment
		return nil
	}

	f.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON always emits the canonical array form.
func (f FlexEquipment) MarshalJSON() ([]byte, error) {
	if f.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.items)
}

// Canonical returns the canonical equipment list, dropping blank entries.
func (f FlexEquipment) Canonical() []string {
	out := make([]string, 0, len(f.items))
	for _, item := range f.items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsZero reports whether no usable value was decoded.
func (f FlexEquipment) IsZero() bool { return len(f.Canonical()) == 0 }

// coerceString renders an arbitrary JSON payload as a flat string. Used as
// the last-resort canonicalization for unknown field shapes; the result is
// logged by callers but never treated as fatal.
func coerceString(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
