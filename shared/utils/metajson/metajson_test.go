package metajson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, map[string]any{"title": "Home", "hidden": false}, Parse("{\r\n\"title\": \"Home\",\n\"hidden\": false}"))
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("{broken"))
	assert.Nil(t, Parse("[1,2]"))
	assert.Nil(t, ParseBytes(nil))
}

func TestMerge(t *testing.T) {
	base := map[string]any{"a": 1, "b": 2}
	out := Merge(base, map[string]any{"b": 3})
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, out)
	assert.Equal(t, 2, base["b"])
}
