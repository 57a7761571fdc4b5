// Package chrome drives a real Chromium through the DevTools protocol.
package chrome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/input"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/joeycumines/playfeel/internal/browser"
)

// Options configures the browser process.
type Options struct {
	Headless bool
	// ExecPath overrides the Chromium binary; empty uses chromedp's lookup.
	ExecPath string
	// RemoteURL attaches to an already running browser's DevTools websocket
	// instead of launching one.
	RemoteURL string
	Width     int
	Height    int
	Logger    *slog.Logger
}

// Launcher owns one browser process and opens isolated pages in it.
type Launcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *slog.Logger
}

// NewLauncher starts (or attaches to) a browser. The returned Launcher must
// be closed.
func NewLauncher(ctx context.Context, opts Options) (*Launcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	var (
		allocCtx context.Context
		cancel   context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts,
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.WindowSize(width, height),
		)
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	l := &Launcher{allocCancel: cancel, logger: logger}
	// Pages need a running browser to create their browser contexts in.
	l.browserCtx, l.browserCancel = chromedp.NewContext(allocCtx, chromedp.WithLogf(l.logf))
	if err := chromedp.Run(l.browserCtx); err != nil {
		l.browserCancel()
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return l, nil
}

func (l *Launcher) logf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
}

// NewPage opens a tab in a fresh browser context so storage is not shared
// between pairs.
func (l *Launcher) NewPage(ctx context.Context) (browser.Page, error) {
	if err := l.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is closed: %w", err)
	}
	tabCtx, cancel := chromedp.NewContext(l.browserCtx,
		chromedp.WithNewBrowserContext(),
		chromedp.WithLogf(l.logf),
	)
	p := &page{ctx: tabCtx, cancel: cancel}
	chromedp.ListenTarget(tabCtx, p.onEvent)
	// The first Run starts the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return p, nil
}

// Close terminates the browser.
func (l *Launcher) Close() error {
	err := chromedp.Cancel(l.browserCtx)
	l.browserCancel()
	l.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type page struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	errs   []string
	closed bool
}

func (p *page) onEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if ev.Type != runtime.APITypeError {
			return
		}
		parts := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			switch {
			case arg.Description != "":
				parts = append(parts, arg.Description)
			case len(arg.Value) > 0:
				var s string
				if err := json.Unmarshal(arg.Value, &s); err == nil {
					parts = append(parts, s)
				} else {
					parts = append(parts, string(arg.Value))
				}
			}
		}
		p.record(strings.Join(parts, " "))
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails != nil {
			p.record(ev.ExceptionDetails.Error())
		}
	case *cdplog.EventEntryAdded:
		if ev.Entry != nil && ev.Entry.Level == cdplog.LevelError {
			msg := ev.Entry.Text
			if ev.Entry.URL != "" {
				msg += " (" + ev.Entry.URL + ")"
			}
			p.record(msg)
		}
	}
}

func (p *page) record(msg string) {
	if msg == "" {
		return
	}
	p.mu.Lock()
	p.errs = append(p.errs, msg)
	p.mu.Unlock()
}

// run executes actions on the tab bounded by ctx. The tab context carries
// the chromedp target; ctx only contributes its deadline and cancellation.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return browser.ErrClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

func (p *page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *page) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *page) Evaluate(ctx context.Context, expression string, out any) error {
	var raw []byte
	err := p.run(ctx, chromedp.Evaluate(expression, &raw, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

func (p *page) dispatchKey(ctx context.Context, typ input.KeyType, key browser.Key) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		ev := input.DispatchKeyEvent(typ).
			WithKey(key.Key).
			WithCode(key.Code).
			WithWindowsVirtualKeyCode(key.KeyCode).
			WithNativeVirtualKeyCode(key.KeyCode)
		if typ == input.KeyDown && len([]rune(key.Key)) == 1 {
			ev = ev.WithText(key.Key)
		}
		return ev.Do(ctx)
	}))
}

func (p *page) KeyDown(ctx context.Context, key browser.Key) error {
	return p.dispatchKey(ctx, input.KeyDown, key)
}

func (p *page) KeyUp(ctx context.Context, key browser.Key) error {
	return p.dispatchKey(ctx, input.KeyUp, key)
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *page) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.errs...)
}

func (p *page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	if err := chromedp.Cancel(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.cancel()
		return err
	}
	p.cancel()
	return nil
}
