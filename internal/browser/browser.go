package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const (
	DefaultNavigateTimeout = 60 * time.Second
	DefaultActionTimeout   = 10 * time.Second
	UserAgent              = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// ErrElementNotFound is returned when a selector matches nothing on the page
var ErrElementNotFound = errors.New("element not found")

// Options configures the Chrome processes started by a Chrome launcher
type Options struct {
	Headless        bool
	ExecPath        string // empty uses chromedp's lookup
	UserAgent       string
	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
}

// Chrome starts a fresh Chrome process per session
type Chrome struct {
	opts Options
}

// New creates a Chrome launcher, filling in default timeouts
func New(opts Options) *Chrome {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = UserAgent
	}
	return &Chrome{opts: opts}
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.UserAgent(c.opts.UserAgent),
		chromedp.WindowSize(1280, 1024),
	)
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	return opts
}

// NewSession starts a browser and opens a blank tab. The session lives until
// Close is called or ctx is cancelled.
func (c *Chrome) NewSession(ctx context.Context) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser; it must not carry a timeout or the
	// browser is killed when the timeout fires.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Session{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        c.opts,
	}, nil
}

// Session is a single browser tab
type Session struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
}

// scoped derives a context from the tab that also ends when ctx ends.
func (s *Session) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string) error {
	c, cancel := s.scoped(ctx, s.opts.NavigateTimeout)
	defer cancel()

	if err := chromedp.Run(c, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// ClickN finds the first element matching the CSS selector and clicks it n
// times, waiting pause after each click. A missing element returns
// ErrElementNotFound without waiting for it to appear.
func (s *Session) ClickN(ctx context.Context, selector string, n int, pause time.Duration) error {
	if n <= 0 {
		return nil
	}

	c, cancel := s.scoped(ctx, s.opts.ActionTimeout+time.Duration(n)*pause)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(c, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("looking up %s: %w", selector, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}

	for i := 0; i < n; i++ {
		if err := chromedp.Run(c, chromedp.MouseClickNode(nodes[0]), chromedp.Sleep(pause)); err != nil {
			return fmt.Errorf("click %d of %d on %s: %w", i+1, n, selector, err)
		}
	}
	return nil
}

// HTML returns the current outer HTML of the document
func (s *Session) HTML(ctx context.Context) (string, error) {
	c, cancel := s.scoped(ctx, s.opts.ActionTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(c, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page html: %w", err)
	}
	return html, nil
}

// Close shuts down the tab and its browser process
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.tabCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
