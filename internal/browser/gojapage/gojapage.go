// Package gojapage runs a page script in an in-process goja runtime instead
// of a real browser. It provides the window surface games commonly touch
// (timers, key listeners, localStorage, a canvas element, console) and nothing
// else, which is enough to drive a target that renders headlessly or a
// scripted stand-in.
package gojapage

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/playfeel/internal/browser"
)

//go:embed prelude.js
var preludeSource string

var preludeProgram = goja.MustCompile("prelude.js", preludeSource, false)

// promisePoll is how often a pending promise returned by Evaluate is checked.
const promisePoll = time.Millisecond

// Launcher opens goja pages that all run the same script.
type Launcher struct {
	cfg pageConfig
}

// NewLauncher returns a Launcher configured by opts.
func NewLauncher(opts ...Option) (*Launcher, error) {
	cfg := pageConfig{
		width:  320,
		height: 180,
		logger: slog.Default(),
	}
	for _, o := range opts {
		if err := o.applyOption(&cfg); err != nil {
			return nil, err
		}
	}
	return &Launcher{cfg: cfg}, nil
}

// NewPage returns an empty page. Nothing runs until Navigate.
func (l *Launcher) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newPage(l.cfg), nil
}

// Close is a no-op; pages own their runtimes.
func (l *Launcher) Close() error { return nil }

// Page is a browser.Page backed by a goja event loop. Navigate and Reload
// discard the runtime and start a new one; localStorage survives both.
type Page struct {
	cfg pageConfig

	mu      sync.Mutex
	loop    *eventloop.EventLoop
	done    chan struct{}
	url     string
	storage map[string]string
	errs    []string
	closed  bool
}

func newPage(cfg pageConfig) *Page {
	return &Page{cfg: cfg, storage: make(map[string]string)}
}

// New returns a standalone page, mostly useful in tests.
func New(opts ...Option) (*Page, error) {
	l, err := NewLauncher(opts...)
	if err != nil {
		return nil, err
	}
	return newPage(l.cfg), nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.load(ctx, url)
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	if url == "" {
		return errors.New("reload before navigate")
	}
	return p.load(ctx, url)
}

// load replaces the runtime with a fresh one and runs the prelude and the
// page script in it.
func (p *Page) load(ctx context.Context, url string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	old, oldDone := p.loop, p.done
	p.loop, p.done = nil, nil
	p.url = url
	p.mu.Unlock()

	if old != nil {
		close(oldDone)
		old.Stop()
	}

	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(require.NewRegistry()),
		eventloop.EnableConsole(false),
	)
	loop.Start()

	errCh := make(chan error, 1)
	if !loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- p.install(vm, url)
	}) {
		loop.Stop()
		return errors.New("failed to start page: event loop not running")
	}
	select {
	case err := <-errCh:
		if err != nil {
			loop.Stop()
			return err
		}
	case <-ctx.Done():
		loop.Stop()
		return ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		loop.Stop()
		return browser.ErrClosed
	}
	p.loop, p.done = loop, make(chan struct{})
	p.mu.Unlock()
	return nil
}

func (p *Page) install(vm *goja.Runtime, url string) error {
	host := map[string]any{
		"__host_url": url,
		"__host_console": func(level, msg string) {
			if level == "error" {
				p.record(msg)
				return
			}
			p.cfg.logger.Debug("page console", "level", level, "message", msg)
		},
		"__host_uncaught": func(msg string) { p.record(msg) },
		"__host_storage_get": func(k string) any {
			p.mu.Lock()
			defer p.mu.Unlock()
			if v, ok := p.storage[k]; ok {
				return v
			}
			return nil
		},
		"__host_storage_set": func(k, v string) {
			p.mu.Lock()
			p.storage[k] = v
			p.mu.Unlock()
		},
		"__host_storage_remove": func(k string) {
			p.mu.Lock()
			delete(p.storage, k)
			p.mu.Unlock()
		},
		"__host_storage_clear": func() {
			p.mu.Lock()
			clear(p.storage)
			p.mu.Unlock()
		},
	}
	for k, v := range host {
		if err := vm.Set(k, v); err != nil {
			return fmt.Errorf("failed to install %s: %w", k, err)
		}
	}
	if _, err := vm.RunProgram(preludeProgram); err != nil {
		return fmt.Errorf("failed to run prelude: %w", err)
	}
	if p.cfg.script == "" {
		return nil
	}
	if _, err := vm.RunScript(p.cfg.scriptName, p.cfg.script); err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			// A throwing page script still yields a loaded page.
			p.record("Uncaught " + ex.Value().String())
			return nil
		}
		return fmt.Errorf("failed to compile page script: %w", err)
	}
	return nil
}

func (p *Page) record(msg string) {
	if msg == "" {
		return
	}
	p.mu.Lock()
	p.errs = append(p.errs, msg)
	p.mu.Unlock()
}

func (p *Page) current() (*eventloop.EventLoop, chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, browser.ErrClosed
	}
	if p.loop == nil {
		return nil, nil, errors.New("no document loaded")
	}
	return p.loop, p.done, nil
}

type evalResult struct {
	raw []byte
	err error
}

// Evaluate runs expression on the page's loop, awaiting a returned promise.
func (p *Page) Evaluate(ctx context.Context, expression string, out any) error {
	loop, done, err := p.current()
	if err != nil {
		return err
	}
	resCh := make(chan evalResult, 1)
	if !loop.RunOnLoop(func(vm *goja.Runtime) {
		v, err := vm.RunString(expression)
		if err != nil {
			resCh <- evalResult{err: jsError(err)}
			return
		}
		if pr, ok := v.Export().(*goja.Promise); ok {
			awaitPromise(loop, pr, resCh)
			return
		}
		resCh <- encode(vm, v)
	}) {
		return errors.New("execution context was destroyed")
	}
	select {
	case res := <-resCh:
		if res.err != nil {
			return res.err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.raw, out); err != nil {
			return fmt.Errorf("failed to decode evaluation result: %w", err)
		}
		return nil
	case <-done:
		return errors.New("execution context was destroyed by navigation")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func awaitPromise(loop *eventloop.EventLoop, pr *goja.Promise, resCh chan<- evalResult) {
	var check func(vm *goja.Runtime)
	check = func(vm *goja.Runtime) {
		switch pr.State() {
		case goja.PromiseStateFulfilled:
			resCh <- encode(vm, pr.Result())
		case goja.PromiseStateRejected:
			resCh <- evalResult{err: fmt.Errorf("promise rejected: %s", describe(pr.Result()))}
		default:
			loop.SetTimeout(check, promisePoll)
		}
	}
	loop.SetTimeout(check, 0)
}

func encode(vm *goja.Runtime, v goja.Value) evalResult {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return evalResult{raw: []byte("null")}
	}
	stringify, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return evalResult{err: errors.New("JSON.stringify unavailable")}
	}
	s, err := stringify(goja.Undefined(), v)
	if err != nil {
		return evalResult{err: jsError(err)}
	}
	if goja.IsUndefined(s) {
		return evalResult{raw: []byte("null")}
	}
	return evalResult{raw: []byte(s.String())}
}

func describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if o, ok := v.(*goja.Object); ok {
		if msg := o.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}

func jsError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("evaluation failed: %s", describe(ex.Value()))
	}
	return fmt.Errorf("evaluation failed: %w", err)
}

func (p *Page) dispatchKey(ctx context.Context, typ string, key browser.Key) error {
	expr := fmt.Sprintf("window.__host_dispatchKey(%q, %s, %s, %d)",
		typ, jsString(key.Key), jsString(key.Code), key.KeyCode)
	return p.Evaluate(ctx, expr, nil)
}

func (p *Page) KeyDown(ctx context.Context, key browser.Key) error {
	return p.dispatchKey(ctx, "keydown", key)
}

func (p *Page) KeyUp(ctx context.Context, key browser.Key) error {
	return p.dispatchKey(ctx, "keyup", key)
}

// Screenshot renders a flat placeholder image whose colour is derived from
// the page's text dump, so differing states produce differing files.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var text string
	if err := p.Evaluate(ctx, browser.DebugJS{}.RenderText(), &text); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 0xff}
	img := image.NewRGBA(image.Rect(0, 0, p.cfg.width, p.cfg.height))
	for y := range p.cfg.height {
		for x := range p.cfg.width {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Page) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.errs...)
}

// Storage returns a copy of the page's localStorage.
func (p *Page) Storage() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.storage))
	for k, v := range p.storage {
		out[k] = v
	}
	return out
}

func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	loop, done := p.loop, p.done
	p.loop, p.done = nil, nil
	p.mu.Unlock()
	if loop != nil {
		close(done)
		loop.Stop()
	}
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
