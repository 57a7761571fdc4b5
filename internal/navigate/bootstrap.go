package navigate

import (
	"context"
	"fmt"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/findings"
	"go.opentelemetry.io/otel/attribute"
)

// Bootstrap cold-loads the target with seed written to storage and drives it
// to the hub. Each attempt ticks one behaviour tree:
//
//	sequence
//	  navigate
//	  seed storage
//	  reload
//	  focus canvas (best effort)
//	  selector
//	    title or hub
//	    coerce to hub
func (n *Navigator) Bootstrap(ctx context.Context, seed any) (err error) {
	ctx, span := n.span(ctx, "navigate.bootstrap", attribute.String("url", n.cfg.BaseURL))
	defer func() { endSpan(span, err) }()

	var last error
	for attempt := 1; attempt <= n.cfg.Attempts; attempt++ {
		status, tickErr := n.bootstrapTree(ctx, seed).Tick()
		if tickErr == nil && status == bt.Success {
			n.logger.Debug("bootstrap reached hub", "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		last = tickErr
		if last == nil {
			last = fmt.Errorf("%s not reached (last scene %q)", n.cfg.Scenes.Hub, n.probe.Last().SceneName)
		}
		transient := n.cfg.Classifier.IsTransient(tickErr)
		n.logger.Info("bootstrap attempt failed", "attempt", attempt, "transient", transient, "error", last)
		if transient && attempt < n.cfg.Attempts {
			if err := n.pause(ctx, n.cfg.Timings.TransientPause); err != nil {
				return err
			}
		}
	}
	code := findings.BlockerBootstrapWorldMapTimeout
	if !n.probe.Seen() {
		code = findings.BlockerBootstrapTitleTimeout
	}
	return newBlocker(code, fmt.Errorf("bootstrap failed after %d attempts: %w", n.cfg.Attempts, last))
}

func (n *Navigator) bootstrapTree(ctx context.Context, seed any) bt.Node {
	return bt.New(bt.Sequence,
		action(func() error {
			if err := n.page.Navigate(ctx, n.cfg.BaseURL); err != nil {
				return fmt.Errorf("failed to navigate to %s: %w", n.cfg.BaseURL, err)
			}
			return nil
		}),
		action(func() error { return n.seed(ctx, seed) }),
		action(func() error {
			if err := n.page.Reload(ctx); err != nil {
				return fmt.Errorf("failed to reload: %w", err)
			}
			return nil
		}),
		action(func() error {
			var focused bool
			if err := n.page.Evaluate(ctx, browser.FocusCanvas, &focused); err != nil || !focused {
				n.logger.Debug("canvas focus failed", "error", err)
			}
			return nil
		}),
		bt.New(bt.Selector,
			condition(func() bool { return n.titleOrHub(ctx) }),
			condition(func() bool { return n.CoerceToHub(ctx, n.cfg.CoercePasses) }),
		),
	)
}

func (n *Navigator) seed(ctx context.Context, seed any) error {
	if seed == nil || len(n.cfg.SaveKeys) == 0 {
		return nil
	}
	script, err := browser.SeedStorage(n.cfg.SaveKeys, seed)
	if err != nil {
		return err
	}
	if err := n.page.Evaluate(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to seed save payload: %w", err)
	}
	return nil
}

// titleOrHub waits for the title or the hub; from the title it confirms and
// waits for the hub.
func (n *Navigator) titleOrHub(ctx context.Context) bool {
	s := n.cfg.Scenes
	switch n.probe.WaitForScene(ctx, []string{s.Title, s.Hub}, n.cfg.Timings.SceneWait, false) {
	case s.Hub:
		return true
	case s.Title:
		if err := browser.Press(ctx, n.page, browser.KeyEnter); err != nil {
			n.logger.Debug("title confirm failed", "error", err)
			return false
		}
		return n.probe.WaitForScene(ctx, []string{s.Hub}, n.cfg.Timings.SceneWait, false) != ""
	default:
		return false
	}
}

func action(fn func() error) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if err := fn(); err != nil {
			return bt.Failure, err
		}
		return bt.Success, nil
	})
}

func condition(fn func() bool) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if fn() {
			return bt.Success, nil
		}
		return bt.Failure, nil
	})
}
