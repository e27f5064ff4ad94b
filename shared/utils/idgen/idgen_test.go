package idgen

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatenoIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		c, err := Cateno()
		require.NoError(t, err)
		require.False(t, seen[c], "duplicate cateno %s", c)
		seen[c] = true
	}
}

func TestPadUnoSeed(t *testing.T) {
	p, err := PadUnoSeed("888")
	require.NoError(t, err)
	assert.Equal(t, "0888", p)

	p, err = PadUnoSeed("6489")
	require.NoError(t, err)
	assert.Equal(t, "6489", p)

	_, err = PadUnoSeed("12345")
	assert.Error(t, err)
	_, err = PadUnoSeed("8a")
	assert.Error(t, err)
	_, traced := err.(interface{ StackTrace() errors.StackTrace })
	assert.True(t, traced)

	assert.Equal(t, []string{"0012", "6489"}, NormalizeUnoSeeds([]string{"12", "x", "6489"}))
	assert.Equal(t, []string{"0888"}, NormalizeUnoSeeds(nil))
}

func TestUserno(t *testing.T) {
	assert.Equal(t, "0888000001", Userno("0888", 1))
	assert.Equal(t, int64(1), NextSeq("0888", ""))
	assert.Equal(t, int64(43), NextSeq("0888", "0888000042"))
	assert.Equal(t, int64(1), NextSeq("0888", "6489000042"))
}

func TestSetNode(t *testing.T) {
	assert.Error(t, SetNode(1024))
	assert.Error(t, SetNode(-1))

	require.NoError(t, SetNode(7))
	c, err := Cateno()
	require.NoError(t, err)
	assert.NotEmpty(t, c)
}
