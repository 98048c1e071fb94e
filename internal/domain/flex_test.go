package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       string
		wantCoerce bool
	}{
		{name: "bare string", input: `"strength"`, want: "strength"},
		{name: "object with focus", input: `{"focus":"cardio"}`, want: "cardio"},
		{name: "object with label", input: `{"label":"Core Strength"}`, want: "Core Strength"},
		{name: "focus wins over label", input: `{"focus":"a","label":"b"}`, want: "a"},
		{name: "unknown object coerced", input: `{"kind":"mystery"}`, want: "map[kind:mystery]", wantCoerce: true},
		{name: "number coerced", input: `42`, want: "42", wantCoerce: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			assert.Equal(t, tt.want, f.Canonical())
			assert.Equal(t, tt.wantCoerce, f.WasCoerced())
		})
	}
}

func TestFlexString_MarshalCanonical(t *testing.T) {
	var f FlexString
	require.NoError(t, json.Unmarshal([]byte(`{"focus":"strength"}`), &f))

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `"strength"`, string(out))
}

func TestFlexDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Minutes
		wantSet bool
	}{
		{name: "bare number", input: `30`, want: 30, wantSet: true},
		{name: "numeric string", input: `"45"`, want: 45, wantSet: true},
		{name: "object with duration", input: `{"duration":60}`, want: 60, wantSet: true},
		{name: "object with minutes", input: `{"minutes":20}`, want: 20, wantSet: true},
		{name: "nested object", input: `{"duration":{"minutes":25}}`, want: 25, wantSet: true},
		{name: "unusable shape", input: `{"unrelated":true}`, wantSet: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexDuration
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			got, ok := f.Canonical()
			assert.Equal(t, tt.wantSet, ok)
			if tt.wantSet {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFlexEquipment_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "string array", input: `["dumbbells","bench"]`, want: []string{"dumbbells", "bench"}},
		{name: "single string", input: `"kettlebell"`, want: []string{"kettlebell"}},
		{name: "object form", input: `{"specificEquipment":["bands"]}`, want: []string{"bands"}},
		{name: "blank entries dropped", input: `["", "  ", "mat"]`, want: []string{"mat"}},
		{name: "unknown shape empty", input: `{"other":1}`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexEquipment
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			assert.Equal(t, tt.want, f.Canonical())
		})
	}
}

func TestDurationConversions(t *testing.T) {
	assert.Equal(t, Seconds(180), Minutes(3).ToSeconds())
	assert.Equal(t, Minutes(2), Seconds(90).ToMinutes())
	assert.Equal(t, Minutes(0), Seconds(0).ToMinutes())
	assert.Equal(t, Minutes(1), Seconds(1).ToMinutes())
}
