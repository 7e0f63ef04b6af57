package urlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation(t *testing.T) {
	l, err := Parse("https://changes.example.com/projects/server/?branch=main&page=1#builds")
	require.NoError(t, err)
	assert.Equal(t, "branch=main&page=1", l.Query())

	var seen []string
	l.Watch(func(q string) { seen = append(seen, q) })

	l.SetQuery("?branch=dev&page=0")
	l.SetQuery("branch=dev&page=0")

	assert.Equal(t, "branch=dev&page=0", l.Query())
	assert.Equal(t, []string{"branch=dev&page=0"}, seen, "unchanged query does not notify")
	assert.Equal(t, "https://changes.example.com/projects/server/?branch=dev&page=0", l.String())

	l.SetPath("/projects/server/builds/")
	assert.Equal(t, "https://changes.example.com/projects/server/builds/?branch=dev&page=0", l.String())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("://nope")
	assert.Error(t, err)
}
