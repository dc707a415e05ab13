package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/interfaces"
	"github.com/ternarybob/capto/internal/models"
)

const (
	searchResultSelector = "div.g"
	searchNextSelector   = "a#pnnext"
)

// WebScraper extracts prospect companies from Google web search result
// pages, paging through results until exhaustion or the item limit.
type WebScraper struct {
	pool   *BrowserPool
	cfg    common.ScraperConfig
	logger arbor.ILogger
}

// NewWebScraper creates a Google web search scraper
func NewWebScraper(pool *BrowserPool, cfg common.ScraperConfig, logger arbor.ILogger) *WebScraper {
	return &WebScraper{pool: pool, cfg: cfg, logger: logger}
}

func (s *WebScraper) Source() models.LeadSource {
	return models.SourceGoogle
}

// Scrape pages through search results, streaming each organic result to
// onItem. Pagination follows the next link with a randomized pause so
// request pacing stays human-shaped.
func (s *WebScraper) Scrape(ctx context.Context, opts interfaces.ScrapeOptions, onItem interfaces.OnItemFunc) (*models.ScrapeResult, error) {
	start := time.Now()
	result := &models.ScrapeResult{
		Query:    opts.Query,
		Location: opts.Location,
	}
	defer func() { result.DurationSeconds = time.Since(start).Seconds() }()

	browserCtx, release, err := s.pool.Acquire()
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	defer release()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, s.cfg.MaxRunDuration)
	defer runCancel()
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	s.logger.Info().
		Str("query", opts.Query).
		Str("location", opts.Location).
		Msg("Starting web search extraction")

	loadCtx, loadCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
	if err := chromedp.Run(loadCtx, navigate(
		chromedp.Navigate(buildSearchURL(opts.Query, opts.Location)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)...); err != nil {
		loadCancel()
		result.Error = "search page did not render: " + err.Error()
		return result, err
	}
	loadCancel()

	seen := make(map[string]bool)
	stopped := false

	for !stopped {
		if runCtx.Err() != nil {
			break
		}

		var pageHTML string
		if err := chromedp.Run(runCtx, chromedp.OuterHTML("body", &pageHTML, chromedp.ByQuery)); err != nil {
			if runCtx.Err() != nil {
				break
			}
			result.Error = "failed to read search page: " + err.Error()
			return result, err
		}

		entries, hasNext, err := parseSearchPage(pageHTML)
		if err != nil {
			result.Error = "failed to parse search page: " + err.Error()
			return result, err
		}

		for _, item := range entries {
			if item.Name == "" || seen[item.Name] {
				continue
			}
			seen[item.Name] = true
			result.TotalFound++
			result.Items = append(result.Items, item)

			if onItem != nil && onItem(item) {
				stopped = true
				break
			}
			if reachedFoundCap(onItem, opts.Limit, result.TotalFound) {
				stopped = true
				break
			}
		}
		if stopped || !hasNext {
			break
		}

		// 2-4s pause before paging, per the configured delay window.
		humanDelay(runCtx, s.cfg.MinDelay*2, s.cfg.MaxDelay+time.Second)

		nextCtx, nextCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
		err = chromedp.Run(nextCtx,
			chromedp.Click(searchNextSelector, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
		nextCancel()
		if err != nil {
			break
		}
	}

	result.Success = true
	s.logger.Info().
		Str("query", opts.Query).
		Int("total_found", result.TotalFound).
		Float64("duration_seconds", time.Since(start).Seconds()).
		Msg("Web search extraction finished")
	return result, nil
}

// buildSearchURL builds a pt-BR search URL requesting the largest page size
func buildSearchURL(query, location string) string {
	terms := strings.TrimSpace(query)
	if location != "" {
		terms += " " + location
	}
	params := url.Values{}
	params.Set("q", terms)
	params.Set("num", "100")
	params.Set("hl", "pt-BR")
	return "https://www.google.com/search?" + params.Encode()
}

// parseSearchPage extracts organic results and whether a next page exists
func parseSearchPage(html string) ([]*models.ScrapedItem, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	var items []*models.ScrapedItem
	doc.Find(searchResultSelector).Each(func(_ int, res *goquery.Selection) {
		title := strings.TrimSpace(res.Find("h3").First().Text())
		if title == "" {
			return
		}

		href := res.Find("a").First().AttrOr("href", "")
		if href == "" || strings.HasPrefix(href, "/") {
			return
		}

		item := &models.ScrapedItem{
			Name:      companyNameFromTitle(title),
			Website:   href,
			Source:    models.SourceGoogle,
			ScrapedAt: time.Now(),
		}
		if snippet := strings.TrimSpace(res.Find(`[data-sncf="1"]`).First().Text()); snippet != "" {
			if phone := ExtractPhone(snippet); phone != "" {
				item.Phone = phone
			}
		}
		items = append(items, item)
	})

	hasNext := doc.Find(searchNextSelector).Length() > 0
	return items, hasNext, nil
}

// companyNameFromTitle strips common page-title suffixes, keeping the
// leading brand segment.
func companyNameFromTitle(title string) string {
	for _, sep := range []string{" - ", " | ", " – ", ": "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	return strings.TrimSpace(title)
}
