package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/models"
)

// maxContactPages bounds how many pages of a site get fetched per lead
const maxContactPages = 5

var (
	socialPatterns = map[string]*regexp.Regexp{
		"instagram": regexp.MustCompile(`instagram\.com/[a-zA-Z0-9._]+`),
		"facebook":  regexp.MustCompile(`facebook\.com/[a-zA-Z0-9.\-]+`),
		"linkedin":  regexp.MustCompile(`linkedin\.com/(company|in)/[a-zA-Z0-9\-]+`),
		"whatsapp":  regexp.MustCompile(`(wa\.me|api\.whatsapp\.com/send)[^\s"'<>]*`),
	}

	// Internal paths worth following when hunting contact details.
	contactPathHints = []string{"contato", "contact", "fale-conosco", "sobre", "about", "quem-somos"}
)

// ContactEnricher fetches a lead's website and extracts contact details
// from the homepage plus a few likely contact pages.
type ContactEnricher struct {
	client    *http.Client
	userAgent string
	logger    arbor.ILogger
}

// NewContactEnricher creates an enricher with the configured HTTP timeout
func NewContactEnricher(cfg common.ScraperConfig, logger arbor.ILogger) *ContactEnricher {
	return &ContactEnricher{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Enrich crawls up to maxContactPages of the website and aggregates
// every contact channel it finds. Unreachable sites return an error;
// reachable sites with nothing to find return an empty ContactInfo.
func (e *ContactEnricher) Enrich(ctx context.Context, websiteURL string) (*models.ContactInfo, error) {
	base, err := url.Parse(websiteURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid website url: %s", websiteURL)
	}

	info := &models.ContactInfo{SocialLinks: map[string]string{}}
	visited := map[string]bool{}
	queue := []string{base.String()}

	for len(queue) > 0 && len(visited) < maxContactPages {
		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		html, err := e.fetch(ctx, pageURL)
		if err != nil {
			if len(visited) == 1 {
				return nil, fmt.Errorf("fetch website: %w", err)
			}
			e.logger.Debug().
				Err(err).
				Str("url", pageURL).
				Msg("Skipping unreachable page during enrichment")
			continue
		}

		followups, err := collectContacts(html, base, info)
		if err != nil {
			continue
		}
		for _, next := range followups {
			if !visited[next] {
				queue = append(queue, next)
			}
		}
	}

	info.Emails = preferDomainEmails(dedupeStrings(info.Emails), base.Host)
	info.Phones = dedupeStrings(info.Phones)
	info.ContactForms = dedupeStrings(info.ContactForms)
	return info, nil
}

func (e *ContactEnricher) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}
	html, err := doc.Html()
	if err != nil {
		return "", err
	}
	return html, nil
}

// collectContacts parses one page into info and returns same-site links
// that look like contact pages.
func collectContacts(html string, base *url.URL, info *models.ContactInfo) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	text := doc.Text()
	for _, email := range emailRegex.FindAllString(html, -1) {
		email = strings.ToLower(email)
		if ValidEmail(email) {
			info.Emails = append(info.Emails, email)
		}
	}
	for _, phone := range phoneRegex.FindAllString(text, -1) {
		if cleaned := CleanPhone(phone); strings.HasPrefix(cleaned, "(") {
			info.Phones = append(info.Phones, cleaned)
		}
	}
	for network, pattern := range socialPatterns {
		if _, exists := info.SocialLinks[network]; exists {
			continue
		}
		if match := pattern.FindString(html); match != "" {
			info.SocialLinks[network] = "https://" + strings.TrimPrefix(strings.TrimPrefix(match, "https://"), "http://")
		}
	}

	var followups []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if strings.HasPrefix(href, "mailto:") {
			email := strings.ToLower(strings.TrimPrefix(href, "mailto:"))
			if idx := strings.Index(email, "?"); idx > 0 {
				email = email[:idx]
			}
			if ValidEmail(email) {
				info.Emails = append(info.Emails, email)
			}
			return
		}
		if strings.HasPrefix(href, "tel:") {
			info.Phones = append(info.Phones, CleanPhone(strings.TrimPrefix(href, "tel:")))
			return
		}

		resolved, err := base.Parse(href)
		if err != nil || resolved.Host != base.Host {
			return
		}
		lower := strings.ToLower(resolved.Path)
		for _, hint := range contactPathHints {
			if strings.Contains(lower, hint) {
				followups = append(followups, resolved.String())
				break
			}
		}
	})

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action := form.AttrOr("action", "")
		hasEmailField := form.Find(`input[type="email"], input[name*="email"]`).Length() > 0
		if !hasEmailField {
			return
		}
		resolved, err := base.Parse(action)
		if err != nil {
			return
		}
		info.ContactForms = append(info.ContactForms, resolved.String())
	})

	return followups, nil
}

// preferDomainEmails sorts emails so addresses on the site's own domain
// come first, keeping relative order otherwise.
func preferDomainEmails(emails []string, host string) []string {
	domain := strings.TrimPrefix(strings.ToLower(host), "www.")
	if domain == "" {
		return emails
	}
	sort.SliceStable(emails, func(i, j int) bool {
		return strings.HasSuffix(emails[i], "@"+domain) && !strings.HasSuffix(emails[j], "@"+domain)
	})
	return emails
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	var result []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	return result
}
