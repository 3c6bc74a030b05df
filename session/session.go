// Package session drives a real Chromium through go-rod and implements the
// runner's Browser and Page interfaces.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pageshot/config"
	"github.com/use-agent/pageshot/runner"
	"github.com/ysmood/gson"
)

// Browser is one browser session. It either owns a launched Chromium
// process or is attached to an existing one through ControlURL.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil when attached
	cfg      config.BrowserConfig
}

// Opener returns a runner.Opener that launches a fresh session per run.
func Opener(cfg config.BrowserConfig) runner.Opener {
	return func(ctx context.Context) (runner.Browser, error) {
		return Launch(ctx, cfg)
	}
}

// Launch starts Chromium (or attaches to cfg.ControlURL) and connects to it.
func Launch(ctx context.Context, cfg config.BrowserConfig) (*Browser, error) {
	controlURL := cfg.ControlURL
	var l *launcher.Launcher

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if controlURL == "" {
		l = newLauncher(cfg)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		slog.Debug("browser launched", "controlURL", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
			l.Cleanup()
		}
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &Browser{browser: browser, launcher: l, cfg: cfg}, nil
}

func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// NewPage opens the single page a run drives, with the session's default
// viewport, extra headers and request blocking applied before any
// navigation happens.
func (b *Browser) NewPage(ctx context.Context) (runner.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if b.cfg.Stealth {
		page, err = stealth.Page(b.browser)
	} else {
		page, err = b.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	p := page.Context(ctx)

	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.ViewportWidth,
			Height:            b.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set default viewport: %w", err)
		}
	}

	if len(b.cfg.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.cfg.Headers),
		}).Call(p); err != nil {
			slog.Warn("extra headers not applied", "error", err)
		}
	}

	pg := &Page{page: page}
	if b.cfg.BlockAds {
		pg.router = setupHijack(page)
	}
	return pg, nil
}

// Close ends the session. A launched browser is killed and its profile
// directory removed; an attached browser is left running.
func (b *Browser) Close() error {
	if b.launcher == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
