package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserPreferences_Location(t *testing.T) {
	t.Run("empty is UTC", func(t *testing.T) {
		assert.Equal(t, time.UTC, UserPreferences{}.Location())
	})

	t.Run("unknown zone falls back to UTC", func(t *testing.T) {
		p := UserPreferences{Timezone: "Mars/Olympus_Mons"}
		assert.Equal(t, time.UTC, p.Location())
		assert.Equal(t, time.UTC, p.Location())
	})

	t.Run("zone is resolved once", func(t *testing.T) {
		p := UserPreferences{Timezone: "Europe/Budapest"}

		first := p.Location()
		require.Equal(t, "Europe/Budapest", first.String())

		cached, ok := locations.Load("Europe/Budapest")
		require.True(t, ok)
		assert.Same(t, first, cached.(*time.Location))
		assert.Same(t, first, p.Location())
	})
}
