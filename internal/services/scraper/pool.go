package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
)

// BrowserPool manages a fixed set of Chrome contexts shared by all
// scrapers. Allocation is round-robin; contexts live for the process
// lifetime and are torn down together on shutdown.
type BrowserPool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	mu               sync.Mutex
	maxBrowsers      int
	currentIndex     int
	userAgent        string
	headless         bool
	initialized      bool
	logger           arbor.ILogger
}

// NewBrowserPool creates an uninitialized pool from the scraper config
func NewBrowserPool(cfg common.ScraperConfig, logger arbor.ILogger) *BrowserPool {
	return &BrowserPool{
		maxBrowsers: cfg.MaxBrowsers,
		userAgent:   cfg.UserAgent,
		headless:    cfg.Headless,
		logger:      logger,
	}
}

// Init starts the Chrome instances and verifies each one responds.
// A partial pool is accepted as long as at least one instance starts.
func (p *BrowserPool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}
	if p.maxBrowsers <= 0 {
		return fmt.Errorf("max_browsers must be greater than 0, got: %d", p.maxBrowsers)
	}

	p.browsers = make([]context.Context, 0, p.maxBrowsers)
	p.browserCancels = make([]context.CancelFunc, 0, p.maxBrowsers)
	p.allocatorCancels = make([]context.CancelFunc, 0, p.maxBrowsers)
	p.currentIndex = 0

	p.logger.Info().
		Int("pool_size", p.maxBrowsers).
		Bool("headless", p.headless).
		Msg("Initializing browser pool")

	started := 0
	var lastErr error
	for i := 0; i < p.maxBrowsers; i++ {
		if err := p.startInstance(i); err != nil {
			lastErr = err
			p.logger.Warn().
				Err(err).
				Int("browser_index", i).
				Msg("Failed to start browser instance")
			if started == 0 && i == p.maxBrowsers-1 {
				p.teardown()
				return fmt.Errorf("failed to start any browser instance: %w", err)
			}
			continue
		}
		started++
	}

	if started == 0 {
		p.teardown()
		return fmt.Errorf("failed to start any browser instance: %w", lastErr)
	}
	if started < p.maxBrowsers {
		p.logger.Warn().
			Int("requested", p.maxBrowsers).
			Int("started", started).
			Msg("Started fewer browser instances than requested")
		p.maxBrowsers = started
	}

	p.initialized = true
	p.logger.Info().
		Int("browsers", len(p.browsers)).
		Msg("Browser pool ready")
	return nil
}

func (p *BrowserPool) startInstance(index int) error {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(p.userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed startup test: %w", err)
	}

	var title string
	if err := chromedp.Run(testCtx, chromedp.Title(&title)); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance failed responsiveness test: %w", err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)

	p.logger.Debug().
		Int("browser_index", index).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance started")
	return nil
}

// Acquire returns a browser context and a release function
func (p *BrowserPool) Acquire() (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, fmt.Errorf("browser pool not initialized")
	}
	if len(p.browsers) == 0 {
		return nil, nil, fmt.Errorf("no browser instances available")
	}

	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)

	release := func() {
		p.logger.Debug().Int("browser_index", index).Msg("Browser context released")
	}
	return p.browsers[index], release, nil
}

// Shutdown tears down all browser instances. Bounded so a wedged Chrome
// cannot hang process exit.
func (p *BrowserPool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	count := len(p.browsers)
	done := make(chan struct{})
	go func() {
		p.teardown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Int("browser_count", count).Msg("Browser pool shutdown timed out")
	}

	p.initialized = false
	p.logger.Info().Int("browsers", count).Msg("Browser pool shut down")
	return nil
}

func (p *BrowserPool) teardown() {
	for _, cancel := range p.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range p.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.currentIndex = 0
}

// IsInitialized reports whether Init has completed
func (p *BrowserPool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
