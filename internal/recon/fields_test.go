package recon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveFieldPrefersRawVariant(t *testing.T) {
	record := map[string]any{
		"field_90":     "<span>Jane Doe</span>",
		"field_90_raw": map[string]any{"first": "Jane", "last": "Doe"},
	}

	value := ResolveField(record, "field_90", nil)
	raw, ok := value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Jane", raw["first"])
}

func TestResolveFieldFallsBackToPlainValue(t *testing.T) {
	record := map[string]any{"field_91": "jane@school.org"}

	require.Equal(t, "jane@school.org", ResolveField(record, "field_91", nil))
}

func TestResolveFieldIsTotal(t *testing.T) {
	require.Equal(t, "default", ResolveField(nil, "field_1", "default"))
	require.Equal(t, "default", ResolveField(map[string]any{}, "field_1", "default"))
	require.Equal(t, "default", ResolveField(map[string]any{"field_1": nil}, "field_1", "default"))
	// A nil raw variant must not shadow a usable plain value being absent.
	require.Equal(t, "plain", ResolveField(map[string]any{"field_1_raw": nil, "field_1": "plain"}, "field_1", "default"))
}

func TestResolveStringReducesObjects(t *testing.T) {
	cases := []struct {
		name   string
		value  any
		expect string
	}{
		{"email wins", map[string]any{"email": "a@b.c", "first": "A", "last": "B"}, "a@b.c"},
		{"name assembly", map[string]any{"first": "Jane", "last": "Doe"}, "Jane Doe"},
		{"first only", map[string]any{"first": "Jane"}, "Jane"},
		{"identifier", map[string]any{"identifier": "rec_1"}, "rec_1"},
		{"number", float64(7), "7"},
		{"bool", true, "true"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			record := map[string]any{"field_x": tc.value}
			require.Equal(t, tc.expect, ResolveString(record, "field_x", ""))
		})
	}
}

func TestResolveFloatHandlesStringsAndDefaults(t *testing.T) {
	record := map[string]any{
		"field_147": "7.5",
		"field_148": float64(3),
		"field_149": "not a number",
	}

	require.InDelta(t, 7.5, ResolveFloat(record, "field_147", 0), 0.001)
	require.InDelta(t, 3, ResolveFloat(record, "field_148", 0), 0.001)
	require.InDelta(t, -1, ResolveFloat(record, "field_149", -1), 0.001)
	require.InDelta(t, -1, ResolveFloat(record, "field_150", -1), 0.001)
}

func TestStripHTML(t *testing.T) {
	require.Equal(t, "Jane Doe", StripHTML(`<span class="abc123">Jane   Doe</span>`))
	require.Equal(t, "a & b", StripHTML("a &amp;\n b"))
	require.Equal(t, "", StripHTML(""))
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "the time log", NormalizeName("  The  TIME   Log "))
}
