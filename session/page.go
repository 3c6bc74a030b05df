package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"
	"github.com/use-agent/pageshot/models"
)

// domStableFallback is the DOM-quiet window used when request tracking is
// unavailable.
const domStableFallback = 300 * time.Millisecond

// Page is a rod page implementing runner.Page.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter

	idleQuiet  time.Duration
	waitIdle   func()
	idleCancel context.CancelFunc
}

// SetViewport resizes the page before the next navigation.
func (p *Page) SetViewport(ctx context.Context, vp models.Viewport) error {
	return p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
		Mobile:            vp.Mobile,
	})
}

// Navigate opens target and waits for the load event.
//
// WaitRequestIdle sets up a CDP listener, so it is armed here, before the
// navigation starts. It uses the Fetch domain, which conflicts with the
// hijack router, so with request blocking active WaitNetworkIdle falls back
// to DOM stability.
func (p *Page) Navigate(ctx context.Context, target string, idleQuiet time.Duration) error {
	p.stopIdle()
	p.idleQuiet = idleQuiet

	if idleQuiet > 0 && p.router == nil {
		idleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		p.idleCancel = cancel
		p.waitIdle = p.page.Context(idleCtx).WaitRequestIdle(idleQuiet, nil, nil, nil)
	}

	pg := p.page.Context(ctx)
	if err := pg.Navigate(target); err != nil {
		p.stopIdle()
		return describeNavError(err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.stopIdle()
		return fmt.Errorf("wait for load event: %w", err)
	}
	return nil
}

// WaitNetworkIdle blocks until the idle window armed by Navigate is observed
// or ctx ends.
func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	if p.waitIdle == nil {
		quiet := p.idleQuiet
		if quiet <= 0 {
			quiet = domStableFallback
		}
		return p.page.Context(ctx).WaitDOMStable(quiet, 0.1)
	}

	wait := p.waitIdle
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		p.stopIdle()
		return nil
	case <-ctx.Done():
		p.stopIdle()
		<-done
		return ctx.Err()
	}
}

func (p *Page) stopIdle() {
	if p.idleCancel != nil {
		p.idleCancel()
	}
	p.idleCancel = nil
	p.waitIdle = nil
}

// WaitVisible blocks until the located element exists and is visible.
func (p *Page) WaitVisible(ctx context.Context, loc models.Locator) error {
	el, err := find(p.page.Context(ctx), loc)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

// Click waits for the located element to be visible and clicks it.
func (p *Page) Click(ctx context.Context, loc models.Locator) error {
	el, err := find(p.page.Context(ctx), loc)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Screenshot writes a PNG to path, creating parent directories.
func (p *Page) Screenshot(ctx context.Context, path string, fullPage bool) error {
	data, err := p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if len(data) == 0 {
		return errors.New("capture returned no image data")
	}
	return utils.OutputFile(path, data)
}

// HTML returns the rendered document and its title.
func (p *Page) HTML(ctx context.Context) (string, string, error) {
	pg := p.page.Context(ctx)
	html, err := pg.HTML()
	if err != nil {
		return "", "", err
	}
	title := ""
	if res, err := pg.Eval(`() => document.title`); err == nil {
		title = res.Value.Str()
	}
	return html, title, nil
}

// Close stops request blocking and closes the page.
func (p *Page) Close() error {
	p.stopIdle()
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// describeNavError turns the browser's network error text into a readable
// error, keeping the original in the chain.
func describeNavError(err error) error {
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return fmt.Errorf("page did not load (%s): %w", navErr.Reason, err)
	}
	return err
}
