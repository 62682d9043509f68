// Package browser wraps playwright-go: one launched Chromium, one
// browsing context at a time. The context carries the request
// interception rules and can be recreated wholesale to recover from
// soft bans without restarting the process.
package browser

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

// Options configures launch and context construction. Interception
// rules are fixed per context; they are applied when the context is
// built and never mutated afterward.
type Options struct {
	Headless             bool
	UserAgent            string
	ViewportWidth        int
	ViewportHeight       int
	Locale               string
	NavTimeout           time.Duration
	DefaultTimeout       time.Duration
	BlockedResourceTypes []string
	BlockedURLPattern    *regexp.Regexp
}

func DefaultOptions() *Options {
	return &Options{
		Headless:             true,
		UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		ViewportWidth:        1366,
		ViewportHeight:       768,
		Locale:               "en-US",
		NavTimeout:           60 * time.Second,
		DefaultTimeout:       25 * time.Second,
		BlockedResourceTypes: []string{"image", "media", "font"},
		BlockedURLPattern:    regexp.MustCompile(`googletagmanager|google-analytics|gtag|doubleclick|facebook|hotjar|segment|optimizely|clarity`),
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-zygote",
			"--disable-background-networking",
			"--disable-background-timer-throttling",
			"--disable-breakpad",
			"--disable-default-apps",
			"--disable-extensions",
			"--disable-hang-monitor",
			"--disable-popup-blocking",
			"--metrics-recording-only",
			"--mute-audio",
			"--blink-settings=imagesEnabled=false",
		},
	}

	chromium, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := &Browser{
		pw:      pw,
		browser: chromium,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}

	if err := b.setupContext(); err != nil {
		chromium.Close()
		pw.Stop()
		return nil, err
	}

	return b, nil
}

func (b *Browser) setupContext() error {
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			b.logger.Warn("failed to close old context", "error", err)
		}
	}

	context, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: &b.opts.UserAgent,
		Locale:    &b.opts.Locale,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := context.AddInitScript(playwright.Script{
		Content: playwright.String(`Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`),
	}); err != nil {
		b.logger.Warn("failed to add init script", "error", err)
	}

	if err := context.Route("**/*", b.routeHandler); err != nil {
		context.Close()
		return fmt.Errorf("failed to install route handler: %w", err)
	}

	context.SetDefaultNavigationTimeout(float64(b.opts.NavTimeout.Milliseconds()))
	context.SetDefaultTimeout(float64(b.opts.DefaultTimeout.Milliseconds()))

	b.context = context
	return nil
}

func (b *Browser) routeHandler(route playwright.Route) {
	req := route.Request()

	for _, blocked := range b.opts.BlockedResourceTypes {
		if req.ResourceType() == blocked {
			route.Abort()
			return
		}
	}

	if b.opts.BlockedURLPattern != nil && b.opts.BlockedURLPattern.MatchString(req.URL()) {
		route.Abort()
		return
	}

	route.Continue()
}

// RecreateContext tears down the current context and builds a fresh one
// with the same rules. Fresh cookies and connections recover from stuck
// sessions; any pages from the old context become unusable.
func (b *Browser) RecreateContext() error {
	b.logger.Info("recreating browser context")
	return b.setupContext()
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	return page, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
