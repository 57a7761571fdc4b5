// Package browser abstracts the page the harness drives. The harness only
// needs navigation, in-page evaluation, raw key events, screenshots and the
// page's console errors; everything else about the browser is the driver's
// concern.
package browser

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed page.
var ErrClosed = errors.New("page closed")

// Page is one browser tab (or equivalent) owned by a single harness pair.
type Page interface {
	// Navigate loads url and returns once the document has committed.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// Evaluate runs a JavaScript expression in the page. Promises are
	// awaited. The JSON encoded result is decoded into out, which may be nil.
	Evaluate(ctx context.Context, expression string, out any) error
	// KeyDown presses a key without releasing it.
	KeyDown(ctx context.Context, key Key) error
	// KeyUp releases a key.
	KeyUp(ctx context.Context, key Key) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// ConsoleErrors returns the console errors and uncaught exceptions seen
	// since the page was opened.
	ConsoleErrors() []string
	// Close releases the page.
	Close() error
}

// Launcher opens fresh pages. Each page has its own storage.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Press sends a key down followed by a key up.
func Press(ctx context.Context, p Page, key Key) error {
	if err := p.KeyDown(ctx, key); err != nil {
		return err
	}
	return p.KeyUp(ctx, key)
}
