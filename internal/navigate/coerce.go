package navigate

import (
	"context"
	"slices"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
)

// unwind is the input that moves one scene towards the hub.
type unwind struct {
	settle time.Duration
	key    browser.Key
}

func (n *Navigator) unwindFor(scene string) (unwind, bool) {
	s, t := n.cfg.Scenes, n.cfg.Timings
	switch {
	case scene == s.Hub, scene == "":
		return unwind{}, false
	case scene == s.Title, scene == s.GameOver:
		return unwind{key: browser.KeyEnter}, true
	case slices.Contains(s.Narrative, scene):
		return unwind{settle: t.NarrativeSettle, key: browser.KeyEnter}, true
	case scene == s.LevelComplete:
		return unwind{settle: t.CompleteSettle, key: browser.KeyEnter}, true
	case scene == s.Pause:
		return unwind{key: browser.KeyQ}, true
	default:
		// Gameplay and anything unrecognised are asked to pause first.
		return unwind{key: browser.KeyEscape}, true
	}
}

// CoerceToHub applies per-scene unwind inputs until the hub is stably
// reached or maxPasses are spent.
func (n *Navigator) CoerceToHub(ctx context.Context, maxPasses int) bool {
	hub := n.cfg.Scenes.Hub
	for pass := 1; pass <= maxPasses; pass++ {
		if ctx.Err() != nil {
			return false
		}
		s, err := n.probe.Read(ctx)
		var (
			current string
			active  []string
		)
		if err == nil && s.Available {
			current, active = s.SceneName, s.ActiveScenes
		}
		if u, ok := n.unwindFor(current); ok {
			n.logger.Debug("coercing scene", "scene", current, "pass", pass, "key", u.key.Code)
			if u.settle > 0 {
				if err := n.pause(ctx, u.settle); err != nil {
					return false
				}
			}
			if err := browser.Press(ctx, n.page, u.key); err != nil {
				n.logger.Debug("unwind key failed", "scene", current, "error", err)
			}
		}
		// Reaching any other known scene ends the wait early so the next
		// pass can unwind it.
		targets := []string{hub}
		for _, name := range n.cfg.Scenes.known() {
			if name != hub && name != current && name != "" && !slices.Contains(active, name) {
				targets = append(targets, name)
			}
		}
		if n.probe.WaitForScene(ctx, targets, n.cfg.Timings.Reprobe, false) == hub {
			return true
		}
	}
	return false
}
