package scraper

import (
	"context"
	"encoding/json"
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

var (
	instagramProfileRegex = regexp.MustCompile(`instagram\.com/([a-zA-Z0-9._]+)/?`)
	sharedDataRegex       = regexp.MustCompile(`(?s)window\._sharedData\s*=\s*(\{.*?\});`)

	// Instagram paths that look like profiles but are not.
	instagramReservedPaths = map[string]bool{
		"p": true, "reel": true, "reels": true, "tv": true, "explore": true,
		"stories": true, "accounts": true, "directory": true, "tags": true,
	}
)

// InstagramScraper discovers business profiles through a site-scoped web
// search, then extracts profile metadata from each profile page.
type InstagramScraper struct {
	pool   *BrowserPool
	cfg    common.ScraperConfig
	logger arbor.ILogger
}

// NewInstagramScraper creates an Instagram profile scraper
func NewInstagramScraper(pool *BrowserPool, cfg common.ScraperConfig, logger arbor.ILogger) *InstagramScraper {
	return &InstagramScraper{pool: pool, cfg: cfg, logger: logger}
}

func (s *InstagramScraper) Source() models.LeadSource {
	return models.SourceInstagram
}

// instagramProfile is the metadata extractable from a profile page
type instagramProfile struct {
	Username      string
	FullName      string
	Bio           string
	FollowerCount int
	IsVerified    bool
	IsBusiness    bool
	Website       string
}

// Scrape finds profile candidates via site-scoped search and streams one
// item per resolvable profile.
func (s *InstagramScraper) Scrape(ctx context.Context, opts interfaces.ScrapeOptions, onItem interfaces.OnItemFunc) (*models.ScrapeResult, error) {
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
		Msg("Starting Instagram extraction")

	usernames, err := s.discoverProfiles(runCtx, opts)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	for _, username := range usernames {
		if runCtx.Err() != nil {
			break
		}

		profile, err := s.fetchProfile(runCtx, username)
		if err != nil {
			s.logger.Debug().
				Err(err).
				Str("username", username).
				Msg("Skipping unreadable profile")
			continue
		}

		item := profileToItem(profile)
		result.TotalFound++
		result.Items = append(result.Items, item)

		if onItem != nil && onItem(item) {
			break
		}
		if reachedFoundCap(onItem, opts.Limit, result.TotalFound) {
			break
		}

		humanDelay(runCtx, s.cfg.MinDelay, s.cfg.MaxDelay)
	}

	result.Success = true
	s.logger.Info().
		Str("query", opts.Query).
		Int("total_found", result.TotalFound).
		Float64("duration_seconds", time.Since(start).Seconds()).
		Msg("Instagram extraction finished")
	return result, nil
}

// discoverProfiles runs a site-scoped search and collects unique usernames
func (s *InstagramScraper) discoverProfiles(runCtx context.Context, opts interfaces.ScrapeOptions) ([]string, error) {
	terms := "site:instagram.com " + strings.TrimSpace(opts.Query)
	if opts.Location != "" {
		terms += " " + opts.Location
	}

	loadCtx, loadCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
	defer loadCancel()

	var pageHTML string
	if err := chromedp.Run(loadCtx, navigate(
		chromedp.Navigate(buildSearchURL(terms, "")),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("body", &pageHTML, chromedp.ByQuery),
	)...); err != nil {
		return nil, err
	}

	return extractUsernames(pageHTML), nil
}

// fetchProfile renders the profile page and parses its metadata
func (s *InstagramScraper) fetchProfile(runCtx context.Context, username string) (*instagramProfile, error) {
	loadCtx, loadCancel := context.WithTimeout(runCtx, s.cfg.PageLoadTimeout)
	defer loadCancel()

	var pageHTML string
	if err := chromedp.Run(loadCtx, navigate(
		chromedp.Navigate("https://www.instagram.com/"+username+"/"),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &pageHTML, chromedp.ByQuery),
	)...); err != nil {
		return nil, err
	}

	return parseInstagramProfile(username, pageHTML)
}

// extractUsernames pulls unique profile usernames out of search result HTML
func extractUsernames(html string) []string {
	matches := instagramProfileRegex.FindAllStringSubmatch(html, -1)
	seen := make(map[string]bool)
	var usernames []string
	for _, match := range matches {
		username := strings.ToLower(strings.TrimSuffix(match[1], "/"))
		if username == "" || seen[username] || instagramReservedPaths[username] {
			continue
		}
		seen[username] = true
		usernames = append(usernames, username)
	}
	return usernames
}

// parseInstagramProfile reads profile metadata from the page's structured
// data, preferring the ld+json ProfilePage block and falling back to the
// legacy _sharedData bootstrap.
func parseInstagramProfile(username, html string) (*instagramProfile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	profile := &instagramProfile{Username: username}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld struct {
			Type          string `json:"@type"`
			Name          string `json:"name"`
			Description   string `json:"description"`
			URL           string `json:"url"`
			MainEntity    json.RawMessage `json:"mainEntityOfPage"`
			InteractionStatistic []struct {
				InteractionType  string `json:"interactionType"`
				UserInteractionCount json.Number `json:"userInteractionCount"`
			} `json:"interactionStatistic"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &ld); err != nil {
			return true
		}
		if ld.Type != "ProfilePage" && ld.Type != "Person" && ld.Type != "Organization" {
			return true
		}
		profile.FullName = ld.Name
		profile.Bio = ld.Description
		profile.IsBusiness = ld.Type == "Organization"
		for _, stat := range ld.InteractionStatistic {
			if strings.Contains(strings.ToLower(stat.InteractionType), "follow") {
				if count, err := stat.UserInteractionCount.Int64(); err == nil {
					profile.FollowerCount = int(count)
				}
			}
		}
		return false
	})

	if profile.FullName == "" || profile.FollowerCount == 0 {
		applySharedData(profile, html)
	}

	// Meta description still carries "X Followers" on rendered pages.
	if profile.FollowerCount == 0 {
		if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			profile.FollowerCount = followerCountFromDescription(desc)
		}
	}

	if profile.FullName == "" {
		profile.FullName = username
	}
	return profile, nil
}

// applySharedData fills profile fields from the window._sharedData bootstrap
func applySharedData(profile *instagramProfile, html string) {
	match := sharedDataRegex.FindStringSubmatch(html)
	if len(match) != 2 {
		return
	}

	var shared struct {
		EntryData struct {
			ProfilePage []struct {
				Graphql struct {
					User struct {
						FullName       string `json:"full_name"`
						Biography      string `json:"biography"`
						ExternalURL    string `json:"external_url"`
						IsVerified     bool   `json:"is_verified"`
						IsBusinessAccount bool `json:"is_business_account"`
						EdgeFollowedBy struct {
							Count int `json:"count"`
						} `json:"edge_followed_by"`
					} `json:"user"`
				} `json:"graphql"`
			} `json:"ProfilePage"`
		} `json:"entry_data"`
	}
	if err := json.Unmarshal([]byte(match[1]), &shared); err != nil {
		return
	}
	if len(shared.EntryData.ProfilePage) == 0 {
		return
	}

	user := shared.EntryData.ProfilePage[0].Graphql.User
	if profile.FullName == "" {
		profile.FullName = user.FullName
	}
	if profile.Bio == "" {
		profile.Bio = user.Biography
	}
	if profile.FollowerCount == 0 {
		profile.FollowerCount = user.EdgeFollowedBy.Count
	}
	profile.IsVerified = profile.IsVerified || user.IsVerified
	profile.IsBusiness = profile.IsBusiness || user.IsBusinessAccount
	if profile.Website == "" {
		profile.Website = user.ExternalURL
	}
}

var followerDescRegex = regexp.MustCompile(`([\d.,]+[KMB]?)\s+[Ff]ollowers`)

// followerCountFromDescription parses "1.5K Followers, ..." descriptions
func followerCountFromDescription(desc string) int {
	match := followerDescRegex.FindStringSubmatch(desc)
	if len(match) != 2 {
		return 0
	}
	return ParseCompactCount(match[1])
}

func profileToItem(profile *instagramProfile) *models.ScrapedItem {
	item := &models.ScrapedItem{
		Name:      profile.FullName,
		Website:   profile.Website,
		Source:    models.SourceInstagram,
		ScrapedAt: time.Now(),
		Extra: map[string]string{
			"username": profile.Username,
			"bio":      profile.Bio,
		},
	}
	// Business bios routinely carry a contact email or WhatsApp number.
	if profile.Bio != "" {
		if email := emailRegex.FindString(profile.Bio); email != "" && ValidEmail(email) {
			item.Email = email
		}
		item.Phone = ExtractPhone(profile.Bio)
	}
	if profile.FollowerCount > 0 {
		item.Extra["follower_count"] = strconv.Itoa(profile.FollowerCount)
	}
	if profile.IsVerified {
		item.Extra["is_verified"] = "true"
	}
	if profile.IsBusiness {
		item.Extra["is_business"] = "true"
	}
	return item
}
