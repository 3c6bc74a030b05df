package runner

import (
	"context"
	"time"

	"github.com/use-agent/pageshot/models"
)

// Browser is one browser session, scoped to a single run.
type Browser interface {
	// NewPage opens the page object the run drives.
	NewPage(ctx context.Context) (Page, error)

	// Close releases the session and the underlying browser process.
	Close() error
}

// Opener starts a browser session.
type Opener func(ctx context.Context) (Browser, error)

// Page is the subset of browser-page behaviour the verification protocol
// needs. All waits are bounded by ctx.
type Page interface {
	SetViewport(ctx context.Context, vp models.Viewport) error

	// Navigate opens target and waits for its load event. A positive
	// idleQuiet starts tracking network activity before navigating, so a
	// later WaitNetworkIdle sees every request of the page load.
	Navigate(ctx context.Context, target string, idleQuiet time.Duration) error

	// WaitNetworkIdle blocks until no request has been in flight for the
	// quiet window armed by Navigate.
	WaitNetworkIdle(ctx context.Context) error

	// WaitVisible blocks until the located element exists and is visible.
	WaitVisible(ctx context.Context, loc models.Locator) error

	// Click waits for the located element and clicks it.
	Click(ctx context.Context, loc models.Locator) error

	// Screenshot writes a PNG of the viewport (or the full page) to path,
	// creating parent directories.
	Screenshot(ctx context.Context, path string, fullPage bool) error

	// HTML returns the rendered document and its title.
	HTML(ctx context.Context) (html, title string, err error)

	Close() error
}
