package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeBase36PadsAndTruncates(t *testing.T) {
	require.Equal(t, "0000", EncodeBase36([]byte{}, 4))
	got := EncodeBase36([]byte{0xff, 0xff, 0xff}, 3)
	require.Len(t, got, 3)
}

func TestNewEventIDDeterministic(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewEventID("entity/project/growth-platform", "x", at, 0)
	b := NewEventID("entity/project/growth-platform", "x", at, 0)
	require.Equal(t, a, b)

	c := NewEventID("entity/project/growth-platform", "x", at, 1)
	require.NotEqual(t, a, c)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "growth-platform", Slugify("Growth Platform"))
	require.Equal(t, "growth-platform", Slugify("growth_platform"))
	require.Equal(t, "untitled", Slugify(""))
	require.Equal(t, "a-b", Slugify("a!!b"))
}
