// Package speech voices operator feedback through the onboard speaker
// using a local piper text-to-speech engine.
package speech

import (
	"context"
	"time"

	"github.com/kevinbot-io/kevinbot/pkg/log"
)

// Engine turns text into audio.
type Engine interface {
	Say(ctx context.Context, text string) error
}

// sayTimeout bounds one utterance end to end, synthesis plus playback.
const sayTimeout = 30 * time.Second

// AsyncSpeaker serializes utterances through a background worker so Say
// callers never wait on audio. Overlapping announcements are queued; when
// the queue is full the oldest pending line is the one that is stale, so
// the newest replaces nothing and is dropped.
type AsyncSpeaker struct {
	engine Engine
	queue  chan string
	logger log.Logger
}

// NewAsyncSpeaker wraps engine. Start must be running for audio to play.
func NewAsyncSpeaker(engine Engine) *AsyncSpeaker {
	return &AsyncSpeaker{
		engine: engine,
		queue:  make(chan string, 16),
		logger: log.WithName("speech"),
	}
}

// SayAsync queues text without blocking.
func (s *AsyncSpeaker) SayAsync(text string) {
	select {
	case s.queue <- text:
	default:
		s.logger.Warn("Speech queue full, dropping announcement", "text", text)
	}
}

// Start plays queued utterances until ctx is cancelled.
func (s *AsyncSpeaker) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-s.queue:
			sayCtx, cancel := context.WithTimeout(ctx, sayTimeout)
			if err := s.engine.Say(sayCtx, text); err != nil {
				s.logger.Warn("Failed to speak", "text", text, "err", err.Error())
			}
			cancel()
		}
	}
}

// NullEngine silently accepts everything. Used when speech is disabled.
type NullEngine struct{}

func (NullEngine) Say(context.Context, string) error { return nil }
