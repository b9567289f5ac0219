package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-station/internal/station"
)

func TestRegisterAndLookup(t *testing.T) {
	var built bool
	Register("registry-test", func(n station.Notifier) station.Rules {
		built = true
		return nil
	})

	f, err := Lookup("registry-test")
	require.NoError(t, err)
	f(nil)
	assert.True(t, built)
	assert.Contains(t, Names(), "registry-test")
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("no-such-ruleset")
	assert.ErrorIs(t, err, ErrUnknownRuleset)
}

func TestRegisterRequiresFactory(t *testing.T) {
	assert.Panics(t, func() { Register("broken", nil) })
}
