package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// ConsoleSpeaker writes utterances to w, one per line.
type ConsoleSpeaker struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSpeaker(w io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{w: w}
}

func (s *ConsoleSpeaker) Speak(_ context.Context, text string, priority Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := "assistant>"
	if priority == High {
		prefix = "assistant!"
	}
	_, err := fmt.Fprintf(s.w, "%s %s\n", prefix, text)
	return err
}

// Stop is a no-op; a printed line cannot be taken back.
func (s *ConsoleSpeaker) Stop() error {
	return nil
}

type lineResult struct {
	text string
	err  error
}

// ConsoleRecognizer treats every input line as one recognition result.
type ConsoleRecognizer struct {
	active atomic.Bool
	once   sync.Once
	r      io.Reader
	lines  chan lineResult
}

func NewConsoleRecognizer(r io.Reader) *ConsoleRecognizer {
	return &ConsoleRecognizer{r: r, lines: make(chan lineResult)}
}

// RecognizeOnce waits for the next line. A blank line reports ErrNoSpeech and
// end of input reports io.EOF.
func (c *ConsoleRecognizer) RecognizeOnce(ctx context.Context) (string, error) {
	if !c.active.CompareAndSwap(false, true) {
		return "", ErrRecognitionActive
	}
	defer c.active.Store(false)

	c.once.Do(func() { go c.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		if res.text == "" {
			return "", ErrNoSpeech
		}
		return res.text, nil
	}
}

func (c *ConsoleRecognizer) scan() {
	defer close(c.lines)

	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		c.lines <- lineResult{text: strings.TrimSpace(scanner.Text())}
	}
	if err := scanner.Err(); err != nil {
		c.lines <- lineResult{err: err}
	}
}
