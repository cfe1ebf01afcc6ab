package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolvesIntents(t *testing.T) {
	tests := []struct {
		transcript string
		want       Intent
	}{
		{"what is this object right now", IntentIdentify},
		{"  What Is This?  ", IntentIdentify},
		{"how much is this", IntentPrice},
		{"please add this item to my cart", IntentAdd},
		{"I don't want this anymore", IntentRemove},
		{"what's in my cart", IntentCart},
		{"proceed to checkout", IntentCheckout},
		{"what can you do", IntentHelp},
		{"say that again", IntentRepeat},
		{"never mind", IntentStop},
		{"next step", IntentNext},
		{"that's correct", IntentConfirm},
		{"cancel checkout", IntentCancelCheckout},
		{"cancel order", IntentCancelCheckout},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			cmd, ok := Parse(tt.transcript)
			require.True(t, ok)
			assert.Equal(t, tt.want, cmd.Intent)
		})
	}
}

func TestParseUnrecognized(t *testing.T) {
	_, ok := Parse("banana")
	assert.False(t, ok)

	_, ok = Parse("")
	assert.False(t, ok)
}

func TestMatchFirstKeepsDeclarationOrder(t *testing.T) {
	in := NewInterpreter(Commands, MatchFirst)

	cmd, ok := in.Parse("cancel checkout")
	require.True(t, ok)
	assert.Equal(t, IntentCheckout, cmd.Intent)

	cmd, ok = in.Parse("cancel order")
	require.True(t, ok)
	assert.Equal(t, IntentStop, cmd.Intent)

	cmd, ok = in.Parse("what is this object right now")
	require.True(t, ok)
	assert.Equal(t, IntentIdentify, cmd.Intent)

	_, ok = in.Parse("banana")
	assert.False(t, ok)
}

func TestMatchLongestTieUsesDeclarationOrder(t *testing.T) {
	table := []Command{
		{Intent: IntentAdd, Patterns: []string{"take"}},
		{Intent: IntentRemove, Patterns: []string{"drop", "take"}},
	}
	in := NewInterpreter(table, MatchLongest)

	cmd, ok := in.Parse("take it")
	require.True(t, ok)
	assert.Equal(t, IntentAdd, cmd.Intent)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("first")
	require.NoError(t, err)
	assert.Equal(t, MatchFirst, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, MatchLongest, s)

	_, err = ParseStrategy("fuzzy")
	assert.Error(t, err)
}

func TestCheckoutOnly(t *testing.T) {
	assert.True(t, IntentNext.CheckoutOnly())
	assert.True(t, IntentConfirm.CheckoutOnly())
	assert.True(t, IntentCancelCheckout.CheckoutOnly())
	assert.False(t, IntentCheckout.CheckoutOnly())
}

func TestHelpText(t *testing.T) {
	help := HelpText()

	assert.Contains(t, help, `Say "What is this?" to identify the object in front of the camera`)
	assert.Contains(t, help, `Say "Checkout" to proceed to checkout and complete your purchase`)
	assert.NotContains(t, help, `Say "Next"`)
	assert.NotContains(t, help, `Say "Confirm"`)
	assert.Contains(t, help, `During checkout, you can also say "next", "confirm", or "cancel checkout".`)
}

func TestCommandTableIsLowercase(t *testing.T) {
	seen := map[Intent]bool{}
	for _, cmd := range Commands {
		assert.False(t, seen[cmd.Intent], "duplicate intent %s", cmd.Intent)
		seen[cmd.Intent] = true
		require.NotEmpty(t, cmd.Examples)
		for _, p := range cmd.Patterns {
			assert.Equal(t, p, strings.ToLower(p))
		}
	}
	assert.Len(t, seen, 12)
}
