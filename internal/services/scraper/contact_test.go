package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/common"
	"github.com/ternarybob/capto/internal/models"
)

func newTestEnricher() *ContactEnricher {
	cfg := common.ScraperConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
	}
	return NewContactEnricher(cfg, arbor.NewLogger())
}

func TestEnrichCollectsContactChannels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`
		<html><body>
		  <a href="/contato">Fale conosco</a>
		  <a href="https://instagram.com/padaria.belavista">Instagram</a>
		  <p>Atendimento: (11) 3256-7788</p>
		</body></html>`))
	})
	mux.HandleFunc("/contato", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`
		<html><body>
		  <a href="mailto:contato@padaria.com.br?subject=oi">Email</a>
		  <a href="tel:+5511987654321">Ligar</a>
		  <form action="/enviar"><input type="email" name="email"/></form>
		</body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	info, err := newTestEnricher().Enrich(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Contains(t, info.Emails, "contato@padaria.com.br")
	assert.Contains(t, info.Phones, "(11) 3256-7788")
	assert.Contains(t, info.Phones, "(11) 98765-4321")
	assert.Equal(t, "https://instagram.com/padaria.belavista", info.SocialLinks["instagram"])
	require.Len(t, info.ContactForms, 1)
	assert.Contains(t, info.ContactForms[0], "/enviar")
}

func TestEnrichUnreachableSite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestEnricher().Enrich(context.Background(), server.URL)
	require.Error(t, err)
}

func TestEnrichInvalidURL(t *testing.T) {
	_, err := newTestEnricher().Enrich(context.Background(), "not a url")
	require.Error(t, err)
}

func TestEnrichStopsAtPageBudget(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		// Every page links to a fresh contact-looking page.
		w.Write([]byte(`<html><body><a href="/contato-` + r.URL.Path + `x">mais</a></body></html>`))
	}))
	defer server.Close()

	_, err := newTestEnricher().Enrich(context.Background(), server.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, hits, maxContactPages)
}

func TestCollectContactsFiltersAssetEmails(t *testing.T) {
	base := mustParseURL(t, "https://example.com")
	info := newEmptyContactInfo()

	_, err := collectContacts(`<html><body>
	  <img src="logo@2x.png"/>
	  <p>vendas@example.com</p>
	</body></html>`, base, info)
	require.NoError(t, err)

	assert.Equal(t, []string{"vendas@example.com"}, info.Emails)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed
}

func newEmptyContactInfo() *models.ContactInfo {
	return &models.ContactInfo{SocialLinks: map[string]string{}}
}

func TestPreferDomainEmails(t *testing.T) {
	emails := []string{"suporte@gmail.com", "vendas@empresa.com.br", "ceo@empresa.com.br"}
	sorted := preferDomainEmails(emails, "www.empresa.com.br")

	assert.Equal(t, []string{"vendas@empresa.com.br", "ceo@empresa.com.br", "suporte@gmail.com"}, sorted)
}
