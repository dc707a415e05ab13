package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchPage(t *testing.T) {
	html := `
	<body>
	  <div class="g">
	    <a href="https://padariabelavista.com.br"><h3>Padaria Bela Vista - Pães Artesanais</h3></a>
	    <div data-sncf="1">Encomendas: (11) 3256-7788</div>
	  </div>
	  <div class="g">
	    <a href="https://cafecentral.com.br"><h3>Café Central | Cafeteria em SP</h3></a>
	  </div>
	  <div class="g">
	    <a href="/search?q=relacionado"><h3>Pesquisas relacionadas</h3></a>
	  </div>
	  <a id="pnnext" href="/search?q=x&start=100">Mais</a>
	</body>`

	items, hasNext, err := parseSearchPage(html)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, hasNext)

	assert.Equal(t, "Padaria Bela Vista", items[0].Name)
	assert.Equal(t, "https://padariabelavista.com.br", items[0].Website)
	assert.Equal(t, "(11) 3256-7788", items[0].Phone)
	assert.Equal(t, "Café Central", items[1].Name)
}

func TestParseSearchPageNoNextLink(t *testing.T) {
	_, hasNext, err := parseSearchPage(`<body><div class="g"><a href="https://x.com"><h3>X</h3></a></div></body>`)
	require.NoError(t, err)
	assert.False(t, hasNext)
}

func TestCompanyNameFromTitle(t *testing.T) {
	assert.Equal(t, "Padaria Bela Vista", companyNameFromTitle("Padaria Bela Vista - Pães Artesanais"))
	assert.Equal(t, "Café Central", companyNameFromTitle("Café Central | Cafeteria em SP"))
	assert.Equal(t, "Loja Simples", companyNameFromTitle("Loja Simples"))
}
