// File: internal/browser/controller.go
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
)

// ErrNotStarted is returned when an operation needs a running browser.
var ErrNotStarted = errors.New("browser: session not started")

// navigateTimeout bounds a single page load.
const navigateTimeout = 30 * time.Second

// Controller owns one visible browser session and exposes the operations the
// agent loop needs: capture the screen, dispatch validated actions, navigate.
type Controller struct {
	cfg      config.BrowserConfig
	startURL string
	persona  schemas.Persona
	logger   *zap.Logger

	mu           sync.Mutex
	allocCancel  context.CancelFunc
	cancel       context.CancelFunc
	browserCtx   context.Context
	exec         Executor
	lastX, lastY float64
}

var _ schemas.BrowserController = (*Controller)(nil)

// NewController builds a Controller. The browser is not launched until Start.
func NewController(cfg config.BrowserConfig, startURL string, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		startURL: startURL,
		persona:  schemas.DefaultPersona(),
		logger:   logger.Named("Browser"),
	}
}

// execOptions translates the browser config into chromedp allocator options.
// The defaults are defined explicitly rather than through
// chromedp.DefaultExecAllocatorOptions, which would force headless on.
func execOptions(cfg config.BrowserConfig, persona schemas.Persona) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		// Drop the navigator.webdriver tell so pages treat the session as
		// a regular user.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(persona.UserAgent),
		chromedp.WindowSize(int(persona.ViewportWidth), int(persona.ViewportHeight)),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
	}

	// Additional flags from the config file's 'args' slice. Both bare flags
	// and key=value pairs are accepted, with or without the -- prefix.
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		key, value, found := strings.Cut(arg, "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// Start launches the browser and opens the start page. Calling Start on a
// running controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		return nil
	}

	opts := execOptions(c.cfg, c.persona)

	// The allocator derives from the background context so the session
	// outlives the request that started it; Stop tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	}
	if c.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}))
	}
	browserCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// An empty Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("launching browser: %w", err)
	}

	c.allocCancel = allocCancel
	c.cancel = cancel
	c.browserCtx = browserCtx
	c.exec = &cdpExecutor{logger: c.logger, runActionsFunc: c.runActions}
	// Until the first pointer action, wheel events land at the viewport
	// center.
	c.lastX = schemas.ViewportWidth / 2
	c.lastY = schemas.ViewportHeight / 2

	c.logger.Info("Browser session started.",
		zap.Bool("headless", c.cfg.Headless),
		zap.Int64("viewport_w", c.persona.ViewportWidth),
		zap.Int64("viewport_h", c.persona.ViewportHeight))

	// The start page is best effort; a dead network should not keep the
	// agent from coming up.
	navCtx, navCancel := context.WithTimeout(ctx, navigateTimeout)
	defer navCancel()
	if err := c.runActions(navCtx, chromedp.Navigate(c.startURL)); err != nil {
		c.logger.Warn("Initial navigation failed.", zap.String("url", c.startURL), zap.Error(err))
	}

	return nil
}

// Stop closes the browser session. Safe to call more than once.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx == nil {
		return nil
	}

	c.logger.Info("Stopping browser session.")
	c.cancel()
	c.allocCancel()
	c.browserCtx = nil
	c.cancel = nil
	c.allocCancel = nil
	c.exec = nil
	return nil
}

// Screenshot captures the viewport as a base64-encoded JPEG. An empty string
// with a nil error means there is no page to capture yet.
func (c *Controller) Screenshot(ctx context.Context) (string, error) {
	c.mu.Lock()
	started := c.browserCtx != nil
	c.mu.Unlock()
	if !started {
		return "", nil
	}

	var buf []byte
	if err := c.runActions(ctx, chromedp.FullScreenshot(&buf, c.cfg.ScreenshotQuality)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Navigate loads a URL, prepending https:// to bare hosts.
func (c *Controller) Navigate(ctx context.Context, rawURL string) error {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	c.logger.Debug("Navigating.", zap.String("url", rawURL))
	if err := c.runActions(navCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	return nil
}

// Location reports the current page URL, or "unknown" when it cannot be read.
func (c *Controller) Location(ctx context.Context) string {
	var url string
	if err := c.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "unknown"
	}
	return url
}

// runActions executes chromedp actions against the session, honoring both the
// session lifecycle and the operational context.
func (c *Controller) runActions(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.Lock()
	browserCtx := c.browserCtx
	c.mu.Unlock()

	if browserCtx == nil {
		return ErrNotStarted
	}

	runCtx, cancel := CombineContext(browserCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
