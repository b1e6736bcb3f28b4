package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
)

const defaultSampleRate = 22050

// AudioSink consumes raw signed 16-bit little-endian mono PCM. Play blocks
// until playback finishes or ctx is cancelled.
type AudioSink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// aplaySink pipes PCM to the ALSA aplay utility.
type aplaySink struct{}

// NewPlaybackSink returns the default audio sink, which plays PCM through
// the system aplay binary.
func NewPlaybackSink() AudioSink { return aplaySink{} }

func (aplaySink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	cmd := exec.CommandContext(ctx, "aplay",
		"-q", "-t", "raw", "-f", "S16_LE", "-c", "1",
		"-r", strconv.Itoa(sampleRate), "-")
	cmd.Stdin = bytes.NewReader(pcm)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("audio playback failed: %w", err)
	}
	return nil
}

type utterance struct {
	text string
	gen  uint64
}

// Engine speaks queued sentences through the piper executable. Sentences
// are synthesized and played one at a time by a background worker; Enqueue
// never blocks the caller.
type Engine struct {
	cfg       config.SpeechConfig
	sink      AudioSink
	log       *zap.Logger
	available bool

	enabled atomic.Bool
	gen     atomic.Uint64

	queue chan utterance
	stop  context.CancelFunc
	done  chan struct{}

	mu            sync.Mutex
	cancelCurrent context.CancelFunc
}

var _ schemas.SpeechEngine = (*Engine)(nil)

// NewEngine starts the speech worker. A nil sink selects the default aplay
// playback sink. When the piper executable cannot be found the engine stays
// disabled and Enqueue becomes a no-op.
func NewEngine(cfg config.SpeechConfig, sink AudioSink, logger *zap.Logger) *Engine {
	if cfg.PiperPath == "" {
		cfg.PiperPath = "piper"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if sink == nil {
		sink = NewPlaybackSink()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:   cfg,
		sink:  sink,
		log:   logger.Named("Speech"),
		queue: make(chan utterance, 64),
		done:  make(chan struct{}),
	}

	if _, err := exec.LookPath(cfg.PiperPath); err != nil {
		e.log.Warn("Piper executable not found, speech stays off.",
			zap.String("path", cfg.PiperPath))
	} else {
		e.available = true
	}
	e.enabled.Store(cfg.Enabled && e.available)

	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	go e.worker(ctx)
	return e
}

// Enabled reports whether sentences are currently being spoken.
func (e *Engine) Enabled() bool { return e.enabled.Load() }

// SetEnabled turns speech on or off at runtime. Enabling fails when the
// piper executable was not found at startup. Disabling also interrupts
// anything mid-utterance.
func (e *Engine) SetEnabled(on bool) error {
	if on && !e.available {
		return fmt.Errorf("piper executable %q not available", e.cfg.PiperPath)
	}
	e.enabled.Store(on)
	if !on {
		e.Interrupt()
	}
	return nil
}

// Enqueue schedules a sentence for speaking and returns immediately. Blank
// text is ignored, and when the queue is full the sentence is dropped
// rather than blocking the caller.
func (e *Engine) Enqueue(text string) {
	if !e.enabled.Load() || strings.TrimSpace(text) == "" {
		return
	}
	select {
	case e.queue <- utterance{text: text, gen: e.gen.Load()}:
	default:
		e.log.Warn("Speech queue full, dropping sentence.")
	}
}

// Interrupt drops every queued sentence and cuts off the one currently
// being synthesized or played.
func (e *Engine) Interrupt() {
	e.gen.Add(1)
	for {
		select {
		case <-e.queue:
		default:
			e.mu.Lock()
			if e.cancelCurrent != nil {
				e.cancelCurrent()
			}
			e.mu.Unlock()
			return
		}
	}
}

// Close interrupts playback and stops the worker. The engine cannot be
// reused afterwards.
func (e *Engine) Close() error {
	e.stop()
	e.Interrupt()
	<-e.done
	return nil
}

func (e *Engine) worker(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-e.queue:
			// Stale generation means an interrupt happened after this
			// sentence was queued.
			if u.gen != e.gen.Load() {
				continue
			}
			if err := e.speak(ctx, u.text); err != nil && ctx.Err() == nil {
				e.log.Warn("Speech synthesis failed.", zap.Error(err))
			}
		}
	}
}

// speak synthesizes one sentence with piper and hands the PCM to the sink.
// An interrupt cancels the per-utterance context, killing whichever of the
// two stages is running.
func (e *Engine) speak(parent context.Context, text string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	e.mu.Lock()
	e.cancelCurrent = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancelCurrent = nil
		e.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, e.cfg.PiperPath,
		"--model", e.cfg.VoiceModel, "--output-raw")
	cmd.Stdin = strings.NewReader(text)

	pcm, err := cmd.Output()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return fmt.Errorf("piper synthesis failed: %w: %s",
				err, bytes.TrimSpace(exitErr.Stderr))
		}
		return fmt.Errorf("piper synthesis failed: %w", err)
	}
	if len(pcm) == 0 {
		return nil
	}

	if err := e.sink.Play(ctx, pcm, e.cfg.SampleRate); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
