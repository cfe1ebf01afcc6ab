// Package command maps free-text transcripts to assistant intents by
// matching trigger phrases from a static table.
package command

import (
	"fmt"
	"strings"
)

// Strategy decides which command wins when several trigger phrases occur
// in the same transcript.
type Strategy int

const (
	// MatchLongest picks the longest matching trigger phrase, so that
	// "cancel checkout" is not shadowed by "checkout" or "cancel".
	// Equal lengths fall back to declaration order.
	MatchLongest Strategy = iota
	// MatchFirst returns the first command, in declaration order, with any
	// trigger phrase contained in the transcript.
	MatchFirst
)

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "longest":
		return MatchLongest, nil
	case "first":
		return MatchFirst, nil
	default:
		return MatchLongest, fmt.Errorf("unknown command match strategy %q", s)
	}
}

func (s Strategy) String() string {
	if s == MatchFirst {
		return "first"
	}
	return "longest"
}

// Interpreter resolves transcripts against a command table.
type Interpreter struct {
	commands []Command
	strategy Strategy
}

// NewInterpreter creates an interpreter over the given table.
func NewInterpreter(commands []Command, strategy Strategy) *Interpreter {
	return &Interpreter{commands: commands, strategy: strategy}
}

// Default returns an interpreter over Commands using MatchLongest.
func Default() *Interpreter {
	return NewInterpreter(Commands, MatchLongest)
}

func (in *Interpreter) Strategy() Strategy {
	return in.strategy
}

// Parse returns the command the transcript resolves to, or false when no
// trigger phrase occurs in it.
func (in *Interpreter) Parse(transcript string) (Command, bool) {
	text := strings.ToLower(strings.TrimSpace(transcript))
	if text == "" {
		return Command{}, false
	}

	best := -1
	bestLen := 0
	for i, cmd := range in.commands {
		for _, pattern := range cmd.Patterns {
			if !strings.Contains(text, pattern) {
				continue
			}
			if in.strategy == MatchFirst {
				return cmd, true
			}
			if len(pattern) > bestLen {
				best, bestLen = i, len(pattern)
			}
		}
	}

	if best < 0 {
		return Command{}, false
	}
	return in.commands[best], true
}

// Parse resolves a transcript with the default interpreter.
func Parse(transcript string) (Command, bool) {
	return Default().Parse(transcript)
}

// HelpText is the spoken list of commands. Checkout-only commands are
// mentioned in a trailing hint instead of being listed.
func HelpText() string {
	parts := make([]string, 0, len(Commands))
	for _, cmd := range Commands {
		if cmd.Intent.CheckoutOnly() {
			continue
		}
		parts = append(parts, fmt.Sprintf("Say %q to %s", cmd.Examples[0], strings.ToLower(cmd.Description)))
	}
	return fmt.Sprintf(
		"Here are the available voice commands: %s. During checkout, you can also say \"next\", \"confirm\", or \"cancel checkout\".",
		strings.Join(parts, ". "),
	)
}
