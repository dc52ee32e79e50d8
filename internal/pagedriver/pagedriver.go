// Package pagedriver provides a uniform capability surface over the
// headless browser (spec.md §4.B). It wraps a single go-rod Page,
// opened once per job and closed on all exit paths, and exposes the
// minimal operation set a Portal Strategy needs: navigation, element
// probing against a prioritized selector list, input, and HTML
// capture. Selector lists, not single IDs, are the norm here because
// portal markup varies across counties.
package pagedriver

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/publicsuffix"
)

// Handle wraps a located DOM element.
type Handle struct {
	el *rod.Element
}

// Driver is the opaque "page driver" the Portal Strategy drives. It
// is safe to use from a single goroutine only, matching the
// sequential scrape loop in spec.md §5.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
	logger  *slog.Logger
}

// Options configures browser launch.
type Options struct {
	Headless bool
	Stealth  bool
}

// Open launches a browser and opens a single page, following the
// launch-flag set the teacher's BrowserFetcher uses to look like an
// ordinary Chrome instance rather than an automated one.
func Open(opts Options, logger *slog.Logger) (*Driver, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if opts.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Driver{
		browser: browser,
		page:    page,
		logger:  logger.With("component", "page_driver"),
	}, nil
}

// Navigate navigates to target and waits for the DOM to become idle. If
// the browser ends up on a different registrable domain than target
// (a redirect to a consent wall, CAPTCHA interstitial, or parked
// domain) it's logged rather than treated as a hard error, since some
// portals legitimately bounce through a login gateway on a sibling
// domain before landing back on the search page.
func (d *Driver) Navigate(target string) error {
	if err := d.page.Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := d.page.WaitDOMStable(2*time.Second, 0); err != nil {
		return err
	}
	if !SameRegistrableDomain(target, d.CurrentURL()) {
		d.logger.Warn("navigation landed on a different registrable domain",
			"requested", target, "landed_on", d.CurrentURL())
	}
	return nil
}

// SameRegistrableDomain reports whether two URLs share the same
// effective-TLD-plus-one, the same granularity browsers use to scope
// cookies. A portal session cookie set on one subdomain won't carry
// to an unrelated registrable domain, so this also doubles as an
// early signal that a redirect has left the portal's own site.
func SameRegistrableDomain(a, b string) bool {
	da, errA := registrableDomain(a)
	db, errB := registrableDomain(b)
	if errA != nil || errB != nil {
		return false
	}
	return da == db
}

func registrableDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return publicsuffix.EffectiveTLDPlusOne(host)
}

// Wait idles for the given duration.
func (d *Driver) Wait(dur time.Duration) {
	time.Sleep(dur)
}

// FindFirst returns a handle to the first visible element matching
// any of the candidate selectors, iterated in priority order, or
// (nil, false) if none match within timeout. This is the polymorphic
// selector probing that spec.md §9 calls out as first-class: portal
// markup varies across counties, so every locator is a prioritized
// candidate list, never a single hardcoded ID.
func (d *Driver) FindFirst(selectors []string, timeout time.Duration) (*Handle, bool) {
	deadline := time.Now().Add(timeout)
	page := d.page.Timeout(timeout)

	for {
		for _, sel := range selectors {
			el, err := page.Element(sel)
			if err != nil {
				continue
			}
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			return &Handle{el: el}, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Fill clears the field and types text into it.
func (d *Driver) Fill(h *Handle, text string) error {
	if err := h.el.SelectAllText(); err != nil {
		return err
	}
	return h.el.Input(text)
}

// Press sends a keyboard key to the focused element.
func (d *Driver) Press(h *Handle, key input.Key) error {
	if err := h.el.Focus(); err != nil {
		return err
	}
	return d.page.Keyboard.Press(key)
}

// Click clicks the element.
func (d *Driver) Click(h *Handle) error {
	return h.el.Click(proto.InputMouseButtonLeft, 1)
}

// Attr returns a named attribute value, or "" if absent.
func (d *Driver) Attr(h *Handle, name string) string {
	v, err := h.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

// Text returns the element's visible text content.
func (d *Driver) Text(h *Handle) string {
	t, err := h.el.Text()
	if err != nil {
		return ""
	}
	return t
}

// InnerHTML returns the element's inner HTML.
func (d *Driver) InnerHTML(h *Handle) string {
	html, err := h.el.HTML()
	if err != nil {
		return ""
	}
	return html
}

// PageHTML returns the full page HTML, used by the strategy to run
// goquery/xpath extraction over a stable snapshot instead of issuing
// many individual DOM round-trips.
func (d *Driver) PageHTML() (string, error) {
	return d.page.HTML()
}

// CurrentURL returns the page's current URL.
func (d *Driver) CurrentURL() string {
	info, err := d.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Title returns the page title, used in search_input_missing
// diagnostics (spec.md §7).
func (d *Driver) Title() string {
	info, err := d.page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

// Screenshot captures a PNG screenshot, retained as a best-effort
// diagnostic when the READY state can't find a search input.
func (d *Driver) Screenshot() ([]byte, error) {
	return d.page.Screenshot(true, nil)
}

// Close releases the browser. Safe to call multiple times.
func (d *Driver) Close() error {
	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	d.browser = nil
	return err
}
