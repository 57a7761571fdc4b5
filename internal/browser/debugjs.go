package browser

import (
	"encoding/json"
	"fmt"
)

// DefaultDebugGlobal is the window property the target exposes its debug
// contract under.
const DefaultDebugGlobal = "__GAME_DEBUG__"

// DebugJS renders the JavaScript snippets used against the target's debug
// contract. Each snippet is a single expression. Missing optional hooks are
// reported in the returned value; only AdvanceTime throws, since frame
// stepping is mandatory.
type DebugJS struct {
	Global string
}

func (d DebugJS) root() string {
	g := d.Global
	if g == "" {
		g = DefaultDebugGlobal
	}
	return fmt.Sprintf("window[%s]", quote(g))
}

// SceneState reads the scene counters and hook presence.
func (d DebugJS) SceneState() string {
	return `(() => {
  const d = ` + d.root() + `;
  if (!d) { return { available: false }; }
  const num = (v, dflt) => (typeof v === 'number' && isFinite(v)) ? v : dflt;
  const active = Array.isArray(d.activeScenes) ? d.activeScenes.map(String)
    : (typeof d.getActiveScenes === 'function' ? (d.getActiveScenes() || []).map(String) : []);
  return {
    available: true,
    sceneName: typeof d.sceneName === 'string' ? d.sceneName : '',
    sceneReady: d.sceneReady === true,
    sceneFrame: num(d.sceneFrame, -1),
    sceneReadyFrame: num(d.sceneReadyFrame, -1),
    activeScenes: active,
    hasRender: typeof window.render_game_to_text === 'function',
    hasDebugState: typeof d.getStateWithDebug === 'function',
  };
})()`
}

// AdvanceTime steps the simulation by ms of logical time.
func (d DebugJS) AdvanceTime(ms float64) string {
	return fmt.Sprintf(`(() => {
  const d = %s;
  if (!d || typeof d.advanceTime !== 'function') { throw new Error('advanceTime hook unavailable'); }
  const r = d.advanceTime(%s);
  return (r && typeof r.then === 'function') ? r.then(() => true) : true;
})()`, d.root(), formatFloat(ms))
}

// StateWithDebug returns the free-form telemetry object, or null when the
// hook is absent.
func (d DebugJS) StateWithDebug() string {
	return `(() => {
  const d = ` + d.root() + `;
  if (!d || typeof d.getStateWithDebug !== 'function') { return null; }
  const s = d.getStateWithDebug();
  return s === undefined ? null : s;
})()`
}

// RenderText returns the diagnostic text dump, or "" when absent.
func (d DebugJS) RenderText() string {
	return `(() => {
  if (typeof window.render_game_to_text !== 'function') { return ''; }
  const t = window.render_game_to_text();
  return typeof t === 'string' ? t : JSON.stringify(t == null ? '' : t);
})()`
}

// SelectionResult is the outcome of one hub selection attempt.
type SelectionResult struct {
	OK       bool   `json:"ok"`
	Reason   string `json:"reason"`
	Selected int    `json:"selected"`
	Method   string `json:"method"`
}

// Hub selection rejection reasons that are worth retrying.
const (
	SelectionNotReady    = "not_ready"
	SelectionHubNotFound = "hub_not_found"
)

// AlignSelection asks the hub scene to select ordinal, preferring its
// request API and falling back to writing the field and refreshing visuals.
func (d DebugJS) AlignSelection(hubScene string, ordinal int) string {
	return fmt.Sprintf(`(() => {
  const d = %s;
  const want = %d;
  if (!d) { return { ok: false, reason: 'hub_not_found', selected: -1, method: '' }; }
  const hub = typeof d.getScene === 'function' ? d.getScene(%s) : null;
  if (!hub) { return { ok: false, reason: 'hub_not_found', selected: -1, method: '' }; }
  if (hub.selectionReady === false) { return { ok: false, reason: 'not_ready', selected: -1, method: '' }; }
  const current = () => typeof hub.getSelectedOrdinal === 'function' ? hub.getSelectedOrdinal()
    : (typeof hub.selectedOrdinal === 'number' ? hub.selectedOrdinal : -1);
  let method = '';
  if (typeof hub.requestSelection === 'function') {
    method = 'request';
    const accepted = hub.requestSelection(want);
    if (accepted === false) {
      const reason = typeof hub.lastSelectionError === 'string' && hub.lastSelectionError ? hub.lastSelectionError : 'rejected';
      return { ok: false, reason: reason, selected: current(), method: method };
    }
  } else if ('selectedOrdinal' in hub) {
    method = 'field';
    hub.selectedOrdinal = want;
    if (typeof hub.updateSelectionVisuals === 'function') { hub.updateSelectionVisuals(); }
  } else {
    return { ok: false, reason: 'unsupported', selected: -1, method: '' };
  }
  const selected = current();
  if (selected === want) { return { ok: true, reason: '', selected: selected, method: method }; }
  const pending = selected < 0 || method === 'request';
  return { ok: false, reason: pending ? 'not_ready' : 'mismatch', selected: selected, method: method };
})()`, d.root(), ordinal, quote(hubScene))
}

// SeedStorage writes value under every key in localStorage.
func SeedStorage(keys []string, value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode save payload: %w", err)
	}
	ks, err := json.Marshal(keys)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
  const keys = %s;
  const value = %s;
  for (const k of keys) { window.localStorage.setItem(k, value); }
  return keys.length;
})()`, ks, quote(string(payload))), nil
}

// FocusCanvas focuses the primary input surface, returning whether anything
// took focus.
const FocusCanvas = `(() => {
  const el = document.querySelector('canvas') || document.body;
  if (!el) { return false; }
  if (typeof el.setAttribute === 'function' && typeof el.hasAttribute === 'function' && !el.hasAttribute('tabindex')) { el.setAttribute('tabindex', '0'); }
  if (typeof el.focus === 'function') { el.focus(); return true; }
  return false;
})()`

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func formatFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
