package templates

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse tests single and list template documents
func TestParse(t *testing.T) {
	t.Parallel()

	one, err := Parse([]byte(`{"type":"group","name":"Storm","children":[{"type":"audio"},{"type":"wait"}]}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 3, one[0].Count())

	list, err := Parse([]byte(` [{"type":"wait"},{"type":"audio","properties":{"file":"a.wav"}}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.wav", list[1].Properties[PropFile])

	_, err = Parse([]byte(`{"type":`))
	require.Error(t, err)
}

// TestPropertyReaders tests typed access to template properties
func TestPropertyReaders(t *testing.T) {
	t.Parallel()
	props := map[string]any{
		"f":   1.5,
		"i":   2,
		"n":   json.Number("2.5"),
		"s":   "3.25",
		"bad": "soon",
		"b":   true,
		"str": "hello",
	}

	tests := []struct {
		key  string
		want float64
	}{
		{"f", 1.5},
		{"i", 2},
		{"n", 2.5},
		{"s", 3.25},
	}
	for _, tt := range tests {
		got, ok, err := Float(props, tt.key)
		require.NoError(t, err, tt.key)
		assert.True(t, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}

	_, ok, err := Float(props, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, err = Float(props, "bad")
	require.Error(t, err)
	_, _, err = Float(props, "b")
	require.Error(t, err)

	b, ok, err := Bool(props, "b")
	require.NoError(t, err)
	assert.True(t, ok && b)
	_, _, err = Bool(props, "str")
	require.Error(t, err)

	s, ok, err := String(props, "str")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
	_, _, err = String(props, "f")
	require.Error(t, err)
}
