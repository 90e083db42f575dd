package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sorts keys", `{"b":1,"a":2}`, `{"a":2,"b":1}`},
		{"strips whitespace", "{ \"a\" : [ 1 , 2 ] }", `{"a":[1,2]}`},
		{"keeps number literals", `{"n":1.50}`, `{"n":1.50}`},
		{"no html escaping", `{"s":"<a&b>"}`, `{"s":"<a&b>"}`},
		{"nested objects", `{"z":{"y":true,"x":null}}`, `{"z":{"x":null,"y":true}}`},
		{"nfc normalizes", "\"é\"", "\"é\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCanonicalize_InvalidJSON(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestOf(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a := Must("Name", types.StringEntry("alice"))
		b := Must("Name", types.StringEntry("alice"))
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("entry type separates addresses", func(t *testing.T) {
		a := Must("Name", types.StringEntry("alice"))
		b := Must("Other", types.StringEntry("alice"))
		assert.NotEqual(t, a, b)
	})

	t.Run("key order does not matter for objects", func(t *testing.T) {
		a := Must("Repo", types.ObjectEntry(`{"a":1,"b":2}`))
		b := Must("Repo", types.ObjectEntry(`{"b":2,"a":1}`))
		assert.Equal(t, a, b)
	})

	t.Run("link action changes the address", func(t *testing.T) {
		add := types.LinksEntry{Links: []types.LinkRecord{{Base: "a", Target: "b", Tag: "t", Action: types.ActionAdd}}}
		del := types.LinksEntry{Links: []types.LinkRecord{{Base: "a", Target: "b", Tag: "t", Action: types.ActionDelete}}}
		assert.NotEqual(t, Must("Links", add), Must("Links", del))
	})

	t.Run("nil entry is rejected", func(t *testing.T) {
		_, err := Of("Name", nil)
		assert.ErrorIs(t, err, types.ErrInvalidEntry)
	})
}
