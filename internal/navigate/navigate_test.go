package navigate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/joeycumines/playfeel/internal/browser/gojapage"
	"github.com/joeycumines/playfeel/internal/findings"
	"github.com/joeycumines/playfeel/internal/level"
	"github.com/joeycumines/playfeel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSaveKeys = []string{"game.save.v2", "game.save.v1"}

func testTimings() Timings {
	return Timings{
		SceneWait:       400 * time.Millisecond,
		PlayWait:        400 * time.Millisecond,
		Reprobe:         150 * time.Millisecond,
		SelectBudget:    300 * time.Millisecond,
		SelectEvery:     5 * time.Millisecond,
		TransientPause:  5 * time.Millisecond,
		NarrativeSettle: 10 * time.Millisecond,
		CompleteSettle:  10 * time.Millisecond,
		InteractiveWait: 300 * time.Millisecond,
		ProbeInterval:   5 * time.Millisecond,
	}
}

func newPage(t *testing.T, script string) *gojapage.Page {
	t.Helper()
	page, err := gojapage.New(gojapage.WithScript("game.js", script))
	require.NoError(t, err)
	t.Cleanup(func() { _ = page.Close() })
	return page
}

func newNavigator(t *testing.T, page browser.Page) *Navigator {
	t.Helper()
	return New(page, Config{
		BaseURL:      "http://game.test/",
		SaveKeys:     testSaveKeys,
		Timings:      testTimings(),
		CoercePasses: 4,
	})
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func fullUnlock() map[string]any {
	return map[string]any{"unlockedOrdinal": level.DefaultLayout.Total()}
}

func requireBlocker(t *testing.T, err error, code findings.Blocker) *BlockerError {
	t.Helper()
	var be *BlockerError
	require.ErrorAs(t, err, &be)
	require.Equal(t, code, be.Code, "error: %v", err)
	return be
}

func evalInt(t *testing.T, page browser.Page, expr string) int {
	t.Helper()
	var v int
	require.NoError(t, page.Evaluate(context.Background(), expr, &v))
	return v
}

// requireScene waits briefly for the game to report want as its scene.
func requireScene(t *testing.T, page browser.Page, want string) {
	t.Helper()
	_, err := testutil.EvalUntil(context.Background(), page, `window.__GAME_DEBUG__.sceneName`,
		func(scene string) bool { return scene == want }, 200*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, err)
}

func TestBootstrap_TitleToHub(t *testing.T) {
	page := newPage(t, testutil.FakeGame{TitleDelayMs: 20, HubDelayMs: 20}.Script())
	nav := newNavigator(t, page)

	require.NoError(t, nav.Bootstrap(testContext(t), fullUnlock()))
	requireScene(t, page, "WorldMapScene")

	storage := page.Storage()
	for _, k := range testSaveKeys {
		assert.JSONEq(t, `{"unlockedOrdinal":28}`, storage[k], k)
	}
	// The reload after seeding means the game saw the save.
	assert.Equal(t, 28, evalInt(t, page, `window.__GAME_DEBUG__.unlockedOrdinal`))
}

func TestBootstrap_CoercesFromNarrative(t *testing.T) {
	page := newPage(t, testutil.FakeGame{StartScene: "IntroScene"}.Script())
	nav := newNavigator(t, page)

	require.NoError(t, nav.Bootstrap(testContext(t), fullUnlock()))
	requireScene(t, page, "WorldMapScene")
}

func TestBootstrap_StuckOnTitle(t *testing.T) {
	page := newPage(t, testutil.FakeGame{TitleStuck: true}.Script())
	nav := newNavigator(t, page)

	err := nav.Bootstrap(testContext(t), fullUnlock())
	be := requireBlocker(t, err, findings.BlockerBootstrapWorldMapTimeout)
	assert.True(t, be.Rollback)
}

func TestBootstrap_NoDebugContract(t *testing.T) {
	page := newPage(t, `window.loaded = true;`)
	nav := newNavigator(t, page)

	err := nav.Bootstrap(testContext(t), fullUnlock())
	be := requireBlocker(t, err, findings.BlockerBootstrapTitleTimeout)
	assert.True(t, be.Rollback)
}

// flakyPage fails the first navigation with a transient error.
type flakyPage struct {
	browser.Page
	failures int
}

func (p *flakyPage) Navigate(ctx context.Context, url string) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("Execution context was destroyed, most likely because of a navigation")
	}
	return p.Page.Navigate(ctx, url)
}

func TestBootstrap_RetriesTransient(t *testing.T) {
	page := &flakyPage{Page: newPage(t, testutil.FakeGame{}.Script()), failures: 1}
	nav := newNavigator(t, page)

	require.NoError(t, nav.Bootstrap(testContext(t), fullUnlock()))
	assert.Equal(t, 0, page.failures)
}

func TestBootstrap_AttemptsExhausted(t *testing.T) {
	page := &flakyPage{Page: newPage(t, testutil.FakeGame{}.Script()), failures: 5}
	nav := newNavigator(t, page)

	err := nav.Bootstrap(testContext(t), fullUnlock())
	requireBlocker(t, err, findings.BlockerBootstrapTitleTimeout)
	assert.Equal(t, 3, page.failures)
	assert.ErrorContains(t, err, "context was destroyed")
}

func bootstrapped(t *testing.T, game testutil.FakeGame, seed any) (*Navigator, *gojapage.Page) {
	t.Helper()
	page := newPage(t, game.Script())
	nav := newNavigator(t, page)
	require.NoError(t, nav.Bootstrap(testContext(t), seed))
	return nav, page
}

func TestEnterPlay_SelectionModes(t *testing.T) {
	for _, mode := range []string{"request", "field", "lagged"} {
		t.Run(mode, func(t *testing.T) {
			nav, page := bootstrapped(t, testutil.FakeGame{SelectionMode: mode, SelectionReadyDelayMs: 30}, fullUnlock())
			key := level.Key{World: 2, Level: 3}

			require.NoError(t, nav.EnterPlay(testContext(t), key))
			requireScene(t, page, "PlayScene")
			assert.Equal(t, 7, evalInt(t, page, `window.__GAME_DEBUG__.enteredOrdinal`))
		})
	}
}

func TestEnterPlay_FallbackReadiness(t *testing.T) {
	nav, page := bootstrapped(t, testutil.FakeGame{PlayReadyFlag: testutil.Bool(false)}, fullUnlock())
	require.NoError(t, nav.EnterPlay(testContext(t), level.Key{World: 1, Level: 1}))
	requireScene(t, page, "PlayScene")
}

func TestEnterPlay_Desync(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		nav, _ := bootstrapped(t, testutil.FakeGame{SelectionMode: "reject"}, fullUnlock())
		err := nav.EnterPlay(testContext(t), level.Key{World: 1, Level: 2})
		be := requireBlocker(t, err, findings.BlockerSelectionDesync)
		assert.True(t, be.Rollback)
		assert.ErrorContains(t, err, "locked")
	})

	t.Run("locked by save", func(t *testing.T) {
		nav, _ := bootstrapped(t, testutil.FakeGame{}, map[string]any{"unlockedOrdinal": 1})
		err := nav.EnterPlay(testContext(t), level.Key{World: 3, Level: 1})
		requireBlocker(t, err, findings.BlockerSelectionDesync)
	})

	t.Run("unsupported hub", func(t *testing.T) {
		nav, _ := bootstrapped(t, testutil.FakeGame{SelectionMode: "none"}, fullUnlock())
		err := nav.EnterPlay(testContext(t), level.Key{World: 1, Level: 1})
		requireBlocker(t, err, findings.BlockerSelectionDesync)
	})
}

func TestAlignSelection_Timeout(t *testing.T) {
	nav, _ := bootstrapped(t, testutil.FakeGame{SelectionReadyDelayMs: 60_000}, fullUnlock())
	err := nav.AlignSelection(testContext(t), level.Key{World: 1, Level: 2})
	be := requireBlocker(t, err, findings.BlockerSelectionTimeout)
	assert.False(t, be.Rollback)
}

func TestEnterPlay_PlayTimeout(t *testing.T) {
	nav, _ := bootstrapped(t, testutil.FakeGame{PlayStuck: true}, fullUnlock())
	err := nav.EnterPlay(testContext(t), level.Key{World: 1, Level: 1})
	be := requireBlocker(t, err, findings.BlockerBootstrapPlayTimeout)
	assert.True(t, be.Rollback)
}

func TestReturnToHub(t *testing.T) {
	nav, page := bootstrapped(t, testutil.FakeGame{}, fullUnlock())
	ctx := testContext(t)
	require.NoError(t, nav.EnterPlay(ctx, level.Key{World: 1, Level: 1}))

	require.NoError(t, nav.ReturnToHub(ctx))
	requireScene(t, page, "WorldMapScene")

	var history []string
	require.NoError(t, page.Evaluate(ctx, `window.__GAME_DEBUG__.log`, &history))
	assert.Equal(t, []string{"TitleScene", "WorldMapScene", "PlayScene", "PauseScene", "WorldMapScene"}, history)
}

func TestReturnToHub_Stuck(t *testing.T) {
	nav, _ := bootstrapped(t, testutil.FakeGame{ReturnStuck: true}, fullUnlock())
	ctx := testContext(t)
	require.NoError(t, nav.EnterPlay(ctx, level.Key{World: 1, Level: 1}))

	err := nav.ReturnToHub(ctx)
	be := requireBlocker(t, err, findings.BlockerReturnTimeout)
	assert.False(t, be.Rollback)
}

func TestBlockerError(t *testing.T) {
	cause := errors.New("cause")
	err := error(newBlocker(findings.BlockerSelectionTimeout, cause))
	assert.Equal(t, "WORLD_MAP_SELECTION_TIMEOUT: cause", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "EXECUTION_ERROR", (&BlockerError{Code: findings.BlockerExecutionError}).Error())
}

func TestUnwindTable(t *testing.T) {
	nav := New(nil, Config{Timings: testTimings()})
	for scene, key := range map[string]browser.Key{
		"TitleScene":         browser.KeyEnter,
		"IntroScene":         browser.KeyEnter,
		"LevelCompleteScene": browser.KeyEnter,
		"GameOverScene":      browser.KeyEnter,
		"PauseScene":         browser.KeyQ,
		"PlayScene":          browser.KeyEscape,
	} {
		u, ok := nav.unwindFor(scene)
		require.True(t, ok, scene)
		assert.Equal(t, key, u.key, scene)
	}
	u, _ := nav.unwindFor("StoryScene")
	assert.Equal(t, 10*time.Millisecond, u.settle)
	_, ok := nav.unwindFor("WorldMapScene")
	assert.False(t, ok)
}
