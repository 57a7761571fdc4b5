package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdinalMonotonic(t *testing.T) {
	t.Parallel()
	layout := DefaultLayout
	for w := 1; w <= len(layout); w++ {
		for l := 1; l < layout[w-1]; l++ {
			assert.Less(t, layout.Ordinal(Key{w, l}), layout.Ordinal(Key{w, l + 1}), "w=%d l=%d", w, l)
		}
		if w < len(layout) {
			assert.Less(t, layout.Ordinal(Key{w, layout[w-1]}), layout.Ordinal(Key{w + 1, 1}), "world boundary %d", w)
		}
	}
	assert.Equal(t, 1, layout.Ordinal(Key{1, 1}))
	assert.Equal(t, 5, layout.Ordinal(Key{2, 1}))
	assert.Equal(t, 28, layout.Ordinal(Key{7, 4}))
}

func TestOrdinalClampsOutOfRange(t *testing.T) {
	t.Parallel()
	layout := DefaultLayout
	tests := []struct {
		name string
		in   Key
		want int
	}{
		{"zero world", Key{0, 1}, 1},
		{"negative level", Key{2, -5}, 5},
		{"level past world end", Key{1, 9}, 4},
		{"world past campaign end", Key{99, 1}, 25},
		{"both past end", Key{99, 99}, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() { layout.Ordinal(tt.in) })
			assert.Equal(t, tt.want, layout.Ordinal(tt.in))
		})
	}
}

func TestOrdinalUnevenLayout(t *testing.T) {
	t.Parallel()
	layout := Layout{3, 0, 5}
	assert.Equal(t, 3, layout.Ordinal(Key{1, 3}))
	assert.Equal(t, Key{1, 2}, layout.Normalize(Key{2, 2}))
	assert.Equal(t, 4, layout.Ordinal(Key{3, 1}))
	assert.Equal(t, 8, layout.Total())
}

func TestParseLevels(t *testing.T) {
	t.Parallel()

	all, err := ParseLevels("all", DefaultLayout)
	require.NoError(t, err)
	assert.Len(t, all, 28)
	assert.Equal(t, Key{1, 1}, all[0])
	assert.Equal(t, Key{7, 4}, all[27])

	keys, err := ParseLevels(" 1-1, 2_3,1-1, 9-9 ", DefaultLayout)
	require.NoError(t, err)
	assert.Equal(t, []Key{{1, 1}, {2, 3}, {7, 4}}, keys)

	_, err = ParseLevels("one-two", DefaultLayout)
	assert.Error(t, err)
	_, err = ParseLevels(" , ", DefaultLayout)
	assert.Error(t, err)
}

func TestParseLayout(t *testing.T) {
	t.Parallel()
	layout, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout, layout)

	layout, err = ParseLayout("2, 3")
	require.NoError(t, err)
	assert.Equal(t, Layout{2, 3}, layout)

	_, err = ParseLayout("0,0")
	assert.Error(t, err)
	_, err = ParseLayout("2,-1")
	assert.Error(t, err)
}

func TestKeyNames(t *testing.T) {
	t.Parallel()
	k := Key{World: 3, Level: 2}
	assert.Equal(t, "3-2", k.String())
	assert.Equal(t, "lvl_3_2", k.Dir())
}
