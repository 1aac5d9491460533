package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/acewatch/internal/extractor"
)

// DefaultUserAgent is a mobile Chrome UA; the event page serves its compact
// card layout to it.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Mobile Safari/537.36"

// Options configures the headless browser.
type Options struct {
	Headless   bool
	UserAgent  string
	Width      int
	Height     int
	MaxRegions int
	MaxMarkup  int
	TextSample int
	ExecPath   string
	Debug      bool
}

func (o *Options) defaults() {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Width <= 0 {
		o.Width = 420
	}
	if o.Height <= 0 {
		o.Height = 860
	}
	if o.MaxRegions <= 0 {
		o.MaxRegions = 600
	}
	if o.MaxMarkup <= 0 {
		o.MaxMarkup = 20000
	}
	if o.TextSample <= 0 {
		o.TextSample = 2000
	}
}

// PageInfo is a small snapshot of the current page for diagnostics.
type PageInfo struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	TextSample string `json:"textSample"`
}

// ChromePage drives one Chrome tab through chromedp.
type ChromePage struct {
	opts        Options
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromePage launches the browser and opens a tab. ctx bounds the
// browser's lifetime.
func NewChromePage(ctx context.Context, opts Options) (*ChromePage, error) {
	opts.defaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		if opts.Debug {
			slog.Debug("chromedp", "message", fmt.Sprintf(format, v...))
		}
	}))

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	slog.Info("Browser started", "headless", opts.Headless, "viewport", fmt.Sprintf("%dx%d", opts.Width, opts.Height))
	return &ChromePage{opts: opts, ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// run executes actions on the tab, bounded by ctx as well as the tab's own
// lifetime.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// TextMatch selects how ClickText compares an element's label with the
// wanted text. Both modes ignore case and surrounding whitespace.
type TextMatch int

const (
	// MatchExact requires the whole label to equal the text (consent buttons).
	MatchExact TextMatch = iota
	// MatchContains accepts any label containing the text, e.g. a tab
	// rendered as "AI Tennis (12)".
	MatchContains
)

func (m TextMatch) String() string {
	if m == MatchContains {
		return "contains"
	}
	return "exact"
}

const clickTextJS = `(() => {
  const want = %q.toLowerCase();
  const contains = %t;
  const label = el => (el.innerText || el.textContent || el.getAttribute('aria-label') || '').trim().toLowerCase();
  const matches = t => t !== '' && (contains ? t.includes(want) : t === want);
  const groups = [
    'button, [role="button"], input[type="button"], input[type="submit"]',
    '[role="tab"]',
    'a, button, div, span, li',
  ];
  for (let i = 0; i < groups.length; i++) {
    for (const el of document.querySelectorAll(groups[i])) {
      if (matches(label(el)) && (i < 2 || el.children.length === 0)) {
        el.click();
        return true;
      }
    }
  }
  return false;
})()`

func clickScript(text string, match TextMatch) string {
	return fmt.Sprintf(clickTextJS, strings.TrimSpace(text), match == MatchContains)
}

// ClickText clicks the first button, tab or leaf element whose label matches
// text under match. It reports whether anything was clicked.
func (p *ChromePage) ClickText(ctx context.Context, text string, match TextMatch) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil
	}
	var clicked bool
	if err := p.run(ctx, chromedp.Evaluate(clickScript(text, match), &clicked)); err != nil {
		return false, fmt.Errorf("click %q (%s): %w", text, match, err)
	}
	return clicked, nil
}

// Scroll wheel-scrolls the page for d.
func (p *ChromePage) Scroll(ctx context.Context, d time.Duration) error {
	x, y := float64(p.opts.Width)/2, float64(p.opts.Height)/2
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			return input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(0).WithDeltaY(1200).Do(ctx)
		}))
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return nil
}

const regionsJS = `(() => {
  const max = %d, maxMarkup = %d;
  const out = [];
  for (const el of document.querySelectorAll('section, article, div')) {
    if (out.length >= max) break;
    const text = (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
    if (!text) continue;
    let html = el.outerHTML || '';
    if (html.length > maxMarkup) html = html.slice(0, maxMarkup);
    out.push({text: text, html: html});
  }
  return out;
})()`

// Regions returns the candidate blocks of the rendered page in document
// order.
func (p *ChromePage) Regions(ctx context.Context) ([]extractor.Region, error) {
	var raw []struct {
		Text string `json:"text"`
		HTML string `json:"html"`
	}
	if err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf(regionsJS, p.opts.MaxRegions, p.opts.MaxMarkup), &raw)); err != nil {
		return nil, fmt.Errorf("collect regions: %w", err)
	}

	regions := make([]extractor.Region, 0, len(raw))
	for i, r := range raw {
		regions = append(regions, extractor.Region{Index: i, Text: r.Text, HTML: r.HTML})
	}
	return regions, nil
}

// Snapshot reads the URL, title and the start of the body text.
func (p *ChromePage) Snapshot(ctx context.Context) (PageInfo, error) {
	var info PageInfo
	err := p.run(ctx,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &info.TextSample),
	)
	if err != nil {
		return info, fmt.Errorf("page snapshot: %w", err)
	}
	if r := []rune(info.TextSample); len(r) > p.opts.TextSample {
		info.TextSample = string(r[:p.opts.TextSample])
	}
	info.TextSample = strings.TrimSpace(info.TextSample)
	return info, nil
}

// Close shuts the tab and the browser process down.
func (p *ChromePage) Close() error {
	p.cancelTab()
	p.cancelAlloc()
	return nil
}
