package voice

import (
	"context"
	"sync"

	"shop-assistant/internal/util"

	"go.uber.org/zap"
)

const noPreviousMessage = "I don't have a previous message to repeat."

// Announcer is the assistant's voice. It remembers the last message and
// interrupts in-flight speech for high priority utterances.
type Announcer struct {
	speaker Speaker
	logger  *zap.Logger

	mu       sync.Mutex
	last     string
	inFlight int
	muted    bool
	settings Settings
}

// NewAnnouncer wraps speaker and applies the default settings to it.
func NewAnnouncer(speaker Speaker) *Announcer {
	a := &Announcer{
		speaker:  speaker,
		logger:   util.GetLogger(),
		settings: DefaultSettings(),
	}
	if t, ok := speaker.(Tunable); ok {
		t.ApplySettings(a.settings)
	}
	return a
}

// Say speaks text. The message is remembered for Repeat even while muted.
func (a *Announcer) Say(ctx context.Context, text string, priority Priority) error {
	a.mu.Lock()
	interrupt := priority == High && a.inFlight > 0
	a.last = text
	muted := a.muted
	if !muted {
		a.inFlight++
	}
	a.mu.Unlock()

	if muted {
		return nil
	}

	if interrupt {
		if err := a.speaker.Stop(); err != nil {
			a.logger.Warn("Failed to interrupt speech", zap.Error(err))
		}
	}

	err := a.speaker.Speak(ctx, text, priority)

	a.mu.Lock()
	a.inFlight--
	a.mu.Unlock()

	if err != nil {
		a.logger.Error("Speech synthesis error", zap.Error(err))
	}
	return err
}

// Repeat speaks the last message again.
func (a *Announcer) Repeat(ctx context.Context) error {
	last := a.LastMessage()
	if last == "" {
		return a.Say(ctx, noPreviousMessage, Normal)
	}
	return a.Say(ctx, last, Normal)
}

// Stop discards the utterance in flight.
func (a *Announcer) Stop() error {
	return a.speaker.Stop()
}

func (a *Announcer) LastMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Speaking reports whether an utterance is being delivered.
func (a *Announcer) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight > 0
}

func (a *Announcer) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings replaces the synthesis settings. Zero fields keep their
// current value.
func (a *Announcer) UpdateSettings(s Settings) {
	a.mu.Lock()
	if s.Rate > 0 {
		a.settings.Rate = s.Rate
	}
	if s.Pitch > 0 {
		a.settings.Pitch = s.Pitch
	}
	if s.Volume > 0 {
		a.settings.Volume = s.Volume
	}
	if s.Voice != "" {
		a.settings.Voice = s.Voice
	}
	current := a.settings
	a.mu.Unlock()

	if t, ok := a.speaker.(Tunable); ok {
		t.ApplySettings(current)
	}
}

// SetMuted turns speech output off or on.
func (a *Announcer) SetMuted(muted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.muted = muted
}
