package choreography

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/classify"
	"github.com/joeycumines/playfeel/internal/signal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/joeycumines/playfeel/internal/choreography"

// releaseTimeout bounds key releases, which run even after ctx is done.
const releaseTimeout = 2 * time.Second

// FrameFunc is called after every advanced frame. Frames are numbered from 1
// across the whole pass.
type FrameFunc func(ctx context.Context, frame int) error

// PlayerConfig configures a Player.
type PlayerConfig struct {
	DebugGlobal string
	Buttons     ButtonMap
	Classifier  *classify.Classifier
	Logger      *slog.Logger
}

// Player replays steps against a page, stepping the target's clock one frame
// at a time.
type Player struct {
	page       browser.Page
	js         browser.DebugJS
	buttons    ButtonMap
	classifier *classify.Classifier
	logger     *slog.Logger
}

// NewPlayer returns a Player for page.
func NewPlayer(page browser.Page, cfg PlayerConfig) *Player {
	if cfg.Buttons == nil {
		cfg.Buttons = DefaultButtons()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Player{
		page:       page,
		js:         browser.DebugJS{Global: cfg.DebugGlobal},
		buttons:    cfg.Buttons,
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
	}
}

// Play runs steps in order. All buttons are resolved before any input is
// sent. Each step's keys are released when the step ends, including on
// error or cancellation.
func (p *Player) Play(ctx context.Context, steps []Step, onFrame FrameFunc) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "choreography.play")
	span.SetAttributes(attribute.Int("steps", len(steps)), attribute.Int("frames", TotalFrames(steps)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resolved := make([][]browser.Key, len(steps))
	for i, s := range steps {
		if s.Frames < 1 {
			return fmt.Errorf("step %d: frames must be at least 1, got %d", i+1, s.Frames)
		}
		keys, err := p.buttons.Resolve(s.Buttons)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		resolved[i] = keys
	}

	frame := 0
	for i, s := range steps {
		if err := p.step(ctx, resolved[i], s.Frames, &frame, onFrame); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Player) step(ctx context.Context, keys []browser.Key, frames int, frame *int, onFrame FrameFunc) (err error) {
	var pressed []browser.Key
	defer func() {
		err = errors.Join(err, p.release(ctx, pressed))
	}()
	for _, k := range keys {
		if err := p.page.KeyDown(ctx, k); err != nil {
			return fmt.Errorf("failed to press %s: %w", k.Code, err)
		}
		pressed = append(pressed, k)
	}
	for range frames {
		if err := p.advance(ctx); err != nil {
			return err
		}
		*frame++
		if onFrame != nil {
			if err := onFrame(ctx, *frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// release lifts keys in reverse order on a context detached from ctx's
// cancellation.
func (p *Player) release(ctx context.Context, keys []browser.Key) error {
	if len(keys) == 0 {
		return nil
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	var errs []error
	for i := len(keys) - 1; i >= 0; i-- {
		if err := p.page.KeyUp(rctx, keys[i]); err != nil {
			p.logger.Debug("key release failed", "key", keys[i].Code, "error", err)
			errs = append(errs, fmt.Errorf("failed to release %s: %w", keys[i].Code, err))
		}
	}
	return errors.Join(errs...)
}

// Idle advances frames with no input held.
func (p *Player) Idle(ctx context.Context, frames int) error {
	for range frames {
		if err := p.advance(ctx); err != nil {
			return err
		}
	}
	return nil
}

// advance steps the target one frame, retrying once on a transient error.
func (p *Player) advance(ctx context.Context) error {
	expr := p.js.AdvanceTime(signal.FrameMs)
	err := p.page.Evaluate(ctx, expr, nil)
	if err != nil && p.classifier.IsTransient(err) {
		p.logger.Debug("retrying frame advance", "error", err)
		err = p.page.Evaluate(ctx, expr, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to advance frame: %w", err)
	}
	return nil
}
