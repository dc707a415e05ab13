package scraper

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
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
	mapsFeedSelector = `[role="feed"]`
	mapsCardSelector = ".Nv2PK"

	// Rendered by Maps when the result list is exhausted (pt-BR locale).
	mapsEndOfList = "Você chegou ao fim"

	mapsScrollScript = `(() => { const feed = document.querySelector('[role="feed"]'); if (feed) { feed.scrollBy(0, 2000); } })()`
)

var (
	mapsCoordsRegex  = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
	mapsPlaceIDRegex = regexp.MustCompile(`!1s([^!?&]+)`)
)

// MapsScraper extracts businesses from Google Maps search results by
// scrolling the result feed and parsing its rendered cards.
type MapsScraper struct {
	pool   *BrowserPool
	cfg    common.ScraperConfig
	logger arbor.ILogger
}

// NewMapsScraper creates a Google Maps scraper backed by the browser pool
func NewMapsScraper(pool *BrowserPool, cfg common.ScraperConfig, logger arbor.ILogger) *MapsScraper {
	return &MapsScraper{pool: pool, cfg: cfg, logger: logger}
}

func (s *MapsScraper) Source() models.LeadSource {
	return models.SourceGoogleMaps
}

// Scrape scrolls the Maps feed for the query, streaming each new card to
// onItem. Stops on the feed's end marker, after too many scrolls without
// new cards, when onItem signals stop, or at the run's wall ceiling.
func (s *MapsScraper) Scrape(ctx context.Context, opts interfaces.ScrapeOptions, onItem interfaces.OnItemFunc) (*models.ScrapeResult, error) {
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

	// Each run gets its own tab so feed state never leaks between runs.
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, s.cfg.MaxRunDuration)
	defer runCancel()

	// Propagate caller cancellation into the chromedp context.
	go func() {
		select {
		case <-ctx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	searchURL := buildMapsURL(opts.Query, opts.Location)
	s.logger.Info().
		Str("query", opts.Query).
		Str("location", opts.Location).
		Msg("Starting Maps extraction")

	loadCtx, loadCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
	defer loadCancel()
	if err := chromedp.Run(loadCtx, navigate(
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(mapsFeedSelector, chromedp.ByQuery),
	)...); err != nil {
		result.Error = "maps feed did not render: " + err.Error()
		return result, err
	}

	seen := make(map[string]bool)
	stalled := 0
	stopped := false

	for !stopped {
		if runCtx.Err() != nil {
			// Wall ceiling or caller cancellation: partial results stand.
			break
		}

		var feedHTML string
		if err := chromedp.Run(runCtx, chromedp.OuterHTML(mapsFeedSelector, &feedHTML, chromedp.ByQuery)); err != nil {
			if runCtx.Err() != nil {
				break
			}
			result.Error = "failed to read maps feed: " + err.Error()
			return result, err
		}

		cards, err := parseMapsFeed(feedHTML)
		if err != nil {
			result.Error = "failed to parse maps feed: " + err.Error()
			return result, err
		}

		newItems := 0
		for _, item := range cards {
			if item.Name == "" || seen[item.Name] {
				continue
			}
			seen[item.Name] = true
			newItems++
			result.TotalFound++

			if opts.Detailed {
				s.enrichFromDetailPane(browserCtx, item)
			}

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
		if stopped {
			break
		}

		if strings.Contains(feedHTML, mapsEndOfList) {
			s.logger.Debug().Int("total_found", result.TotalFound).Msg("Maps feed exhausted")
			break
		}

		if newItems == 0 {
			stalled++
			if stalled >= s.cfg.MaxStalledScrolls {
				s.logger.Debug().
					Int("stalled_scrolls", stalled).
					Msg("Maps feed stopped yielding new cards")
				break
			}
		} else {
			stalled = 0
		}

		if err := chromedp.Run(runCtx, chromedp.Evaluate(mapsScrollScript, nil)); err != nil {
			break
		}
		if err := chromedp.Run(runCtx, chromedp.Sleep(s.cfg.ScrollSettle)); err != nil {
			break
		}
		humanDelay(runCtx, s.cfg.MinDelay, s.cfg.MaxDelay)
	}

	result.Success = true
	s.logger.Info().
		Str("query", opts.Query).
		Int("total_found", result.TotalFound).
		Float64("duration_seconds", time.Since(start).Seconds()).
		Msg("Maps extraction finished")
	return result, nil
}

// enrichFromDetailPane opens the place page in a scratch tab and fills in
// phone, website, address and category. Failures leave the card data as-is.
func (s *MapsScraper) enrichFromDetailPane(browserCtx context.Context, item *models.ScrapedItem) {
	href := item.Extra["href"]
	if href == "" {
		return
	}

	detailTab, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	detailCtx, cancelTimeout := context.WithTimeout(detailTab, s.cfg.DetailTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(detailCtx,
		chromedp.Navigate(href),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("body", &html, chromedp.ByQuery),
	)
	if err != nil {
		s.logger.Debug().
			Err(err).
			Str("name", item.Name).
			Msg("Detail pane extraction skipped")
		return
	}

	applyMapsDetail(item, html)
}

// buildMapsURL builds the pt-BR Maps search URL for a query and location
func buildMapsURL(query, location string) string {
	terms := strings.TrimSpace(query)
	if location != "" {
		terms += " " + location
	}
	return "https://www.google.com/maps/search/" + url.PathEscape(terms) + "?hl=pt-BR"
}

// parseMapsFeed extracts one ScrapedItem per result card in the feed HTML
func parseMapsFeed(html string) ([]*models.ScrapedItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var items []*models.ScrapedItem
	doc.Find(mapsCardSelector).Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.hfpxzc").First()
		name := strings.TrimSpace(link.AttrOr("aria-label", ""))
		if name == "" {
			name = strings.TrimSpace(card.Find(".qBF1Pd").First().Text())
		}
		if name == "" {
			return
		}

		item := &models.ScrapedItem{
			Name:      name,
			Source:    models.SourceGoogleMaps,
			ScrapedAt: time.Now(),
			Extra:     map[string]string{},
		}

		if href, ok := link.Attr("href"); ok {
			item.Extra["href"] = href
			if lat, lng, ok := extractCoordinates(href); ok {
				item.Latitude = lat
				item.Longitude = lng
			}
			item.PlaceID = extractPlaceID(href)
		}

		if ratingText := card.Find(".MW4etd").First().Text(); ratingText != "" {
			if rating, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(ratingText), ",", "."), 64); err == nil {
				item.Rating = rating
			}
		}
		if reviewsText := card.Find(".UY7F9").First().Text(); reviewsText != "" {
			reviewsText = strings.Trim(strings.TrimSpace(reviewsText), "()")
			item.ReviewsCount = ParseCompactCount(reviewsText)
		}

		// Secondary rows carry "category · address" separated by middots.
		card.Find(".W4Efsd").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			parts := strings.Split(row.Text(), "·")
			var fields []string
			for _, part := range parts {
				if trimmed := strings.TrimSpace(part); trimmed != "" && !strings.Contains(trimmed, name) {
					fields = append(fields, trimmed)
				}
			}
			if len(fields) >= 2 && item.Category == "" {
				item.Category = fields[0]
				item.Address = fields[1]
				return false
			}
			return true
		})

		if phone := ExtractPhone(card.Text()); phone != "" {
			item.Phone = phone
		}

		items = append(items, item)
	})

	return items, nil
}

// applyMapsDetail fills item fields from the rendered place page
func applyMapsDetail(item *models.ScrapedItem, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	if phoneBtn := doc.Find(`[data-item-id^="phone:"]`).First(); phoneBtn.Length() > 0 {
		if id, ok := phoneBtn.Attr("data-item-id"); ok {
			raw := strings.TrimPrefix(id, "phone:tel:")
			if cleaned := CleanPhone(raw); cleaned != raw || item.Phone == "" {
				item.Phone = cleaned
			}
		}
	}
	if item.Phone == "" {
		item.Phone = ExtractPhone(doc.Text())
	}

	if site, ok := doc.Find(`a[data-item-id="authority"]`).First().Attr("href"); ok {
		item.Website = site
	}
	if addr := doc.Find(`[data-item-id="address"]`).First(); addr.Length() > 0 {
		if text := strings.TrimSpace(addr.Text()); text != "" {
			item.Address = text
		}
	}
	if item.Category == "" {
		if category := strings.TrimSpace(doc.Find(`button[jsaction*="category"]`).First().Text()); category != "" {
			item.Category = category
		}
	}
}

// extractCoordinates pulls the map center from a place URL
func extractCoordinates(href string) (float64, float64, bool) {
	match := mapsCoordsRegex.FindStringSubmatch(href)
	if len(match) != 3 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(match[1], 64)
	lng, err2 := strconv.ParseFloat(match[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// extractPlaceID pulls the opaque place identifier from a place URL
func extractPlaceID(href string) string {
	match := mapsPlaceIDRegex.FindStringSubmatch(href)
	if len(match) != 2 {
		return ""
	}
	return match[1]
}
