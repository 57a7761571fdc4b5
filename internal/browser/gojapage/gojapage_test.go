package gojapage

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/joeycumines/playfeel/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(t *testing.T, script string) *Page {
	t.Helper()
	p, err := New(WithScript("test.js", script))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Navigate(ctx, "http://game.test/"))
	return p
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEvaluate_Values(t *testing.T) {
	p := newTestPage(t, `window.answer = { n: 42, s: 'x', list: [1, 2] };`)
	ctx := testCtx(t)

	var got struct {
		N    int    `json:"n"`
		S    string `json:"s"`
		List []int  `json:"list"`
	}
	require.NoError(t, p.Evaluate(ctx, `window.answer`, &got))
	assert.Equal(t, 42, got.N)
	assert.Equal(t, "x", got.S)
	assert.Equal(t, []int{1, 2}, got.List)

	var href string
	require.NoError(t, p.Evaluate(ctx, `location.href`, &href))
	assert.Equal(t, "http://game.test/", href)

	require.NoError(t, p.Evaluate(ctx, `undefined`, nil))
}

func TestEvaluate_AwaitsPromise(t *testing.T) {
	p := newTestPage(t, ``)
	ctx := testCtx(t)

	var got int
	require.NoError(t, p.Evaluate(ctx, `new Promise(function (resolve) { setTimeout(function () { resolve(7); }, 20); })`, &got))
	assert.Equal(t, 7, got)

	err := p.Evaluate(ctx, `Promise.reject(new Error('nope'))`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestEvaluate_Throw(t *testing.T) {
	p := newTestPage(t, ``)
	err := p.Evaluate(testCtx(t), `(() => { throw new Error('boom'); })()`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLocalStorage_SurvivesReload(t *testing.T) {
	p := newTestPage(t, `window.loadedValue = localStorage.getItem('save');`)
	ctx := testCtx(t)

	var before any
	require.NoError(t, p.Evaluate(ctx, `window.loadedValue`, &before))
	assert.Nil(t, before)

	require.NoError(t, p.Evaluate(ctx, `localStorage.setItem('save', '{"a":1}')`, nil))
	require.NoError(t, p.Reload(ctx))

	var after string
	require.NoError(t, p.Evaluate(ctx, `window.loadedValue`, &after))
	assert.Equal(t, `{"a":1}`, after)
	assert.Equal(t, map[string]string{"save": `{"a":1}`}, p.Storage())
}

func TestConsoleErrors(t *testing.T) {
	p := newTestPage(t, `
console.log('hello');
console.error('first', { code: 3 });
setTimeout(function () { throw new TypeError('late'); }, 5);
`)
	require.Eventually(t, func() bool {
		return len(p.ConsoleErrors()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	errs := p.ConsoleErrors()
	assert.Equal(t, `first {"code":3}`, errs[0])
	assert.Equal(t, "Uncaught TypeError: late", errs[1])
}

func TestScriptThrowStillLoads(t *testing.T) {
	p := newTestPage(t, `window.before = true; throw new Error('init failed');`)
	var before bool
	require.NoError(t, p.Evaluate(testCtx(t), `window.before`, &before))
	assert.True(t, before)
	assert.Len(t, p.ConsoleErrors(), 1)
}

func TestKeyDispatch(t *testing.T) {
	p := newTestPage(t, `
window.events = [];
window.addEventListener('keydown', function (e) { events.push('down:' + e.code); });
document.addEventListener('keyup', function (e) { events.push('up:' + e.key); });
`)
	ctx := testCtx(t)
	require.NoError(t, browser.Press(ctx, p, browser.KeySpace))
	require.NoError(t, p.KeyDown(ctx, browser.KeyArrowRight))

	var events []string
	require.NoError(t, p.Evaluate(ctx, `window.events`, &events))
	assert.Equal(t, []string{"down:Space", "up: ", "down:ArrowRight"}, events)
}

func TestFocusCanvas(t *testing.T) {
	p := newTestPage(t, ``)
	ctx := testCtx(t)
	var ok bool
	require.NoError(t, p.Evaluate(ctx, browser.FocusCanvas, &ok))
	assert.True(t, ok)
	var tab string
	require.NoError(t, p.Evaluate(ctx, `document.querySelector('canvas').getAttribute('tabindex')`, &tab))
	assert.Equal(t, "0", tab)
}

func TestScreenshot(t *testing.T) {
	p, err := New(WithViewport(8, 4))
	require.NoError(t, err)
	defer p.Close()
	ctx := testCtx(t)
	require.NoError(t, p.Navigate(ctx, "about:blank"))

	shot, err := p.Screenshot(ctx)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(shot))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestClosedPage(t *testing.T) {
	p := newTestPage(t, ``)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Evaluate(context.Background(), `1`, nil), browser.ErrClosed)
	assert.ErrorIs(t, p.Navigate(context.Background(), "x"), browser.ErrClosed)
}

func TestEvaluateBeforeNavigate(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	defer p.Close()
	assert.Error(t, p.Evaluate(context.Background(), `1`, nil))
	assert.Error(t, p.Reload(context.Background()))
}
