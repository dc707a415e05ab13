package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUsernames(t *testing.T) {
	html := `
	<a href="https://www.instagram.com/padaria.belavista/">Padaria</a>
	<a href="https://instagram.com/cafecentral">Café</a>
	<a href="https://www.instagram.com/p/Cxyz123/">um post</a>
	<a href="https://www.instagram.com/explore/tags/padaria/">tag</a>
	<a href="https://www.instagram.com/padaria.belavista/">duplicado</a>`

	usernames := extractUsernames(html)
	assert.Equal(t, []string{"padaria.belavista", "cafecentral"}, usernames)
}

func TestParseInstagramProfileFromLDJSON(t *testing.T) {
	html := `
	<html><head>
	<script type="application/ld+json">
	{
	  "@type": "ProfilePage",
	  "name": "Padaria Bela Vista",
	  "description": "Pães artesanais desde 1987",
	  "interactionStatistic": [
	    {"interactionType": "https://schema.org/FollowAction", "userInteractionCount": 15400}
	  ]
	}
	</script>
	</head><body></body></html>`

	profile, err := parseInstagramProfile("padaria.belavista", html)
	require.NoError(t, err)

	assert.Equal(t, "padaria.belavista", profile.Username)
	assert.Equal(t, "Padaria Bela Vista", profile.FullName)
	assert.Equal(t, "Pães artesanais desde 1987", profile.Bio)
	assert.Equal(t, 15400, profile.FollowerCount)
}

func TestProfileToItemExtractsBioContacts(t *testing.T) {
	html := `
	<html><head>
	<script type="application/ld+json">
	{
	  "@type": "ProfilePage",
	  "name": "Doceria Flor",
	  "description": "Encomendas: contato@doceriaflor.com.br ou (11) 98765-4321"
	}
	</script>
	</head><body></body></html>`

	profile, err := parseInstagramProfile("doceriaflor", html)
	require.NoError(t, err)

	item := profileToItem(profile)
	assert.Equal(t, "contato@doceriaflor.com.br", item.Email)
	assert.Equal(t, "(11) 98765-4321", item.Phone)

	plain := profileToItem(&instagramProfile{
		Username: "padaria.belavista",
		FullName: "Padaria Bela Vista",
		Bio:      "Pães artesanais desde 1987",
	})
	assert.Empty(t, plain.Email)
	assert.Empty(t, plain.Phone)
}

func TestParseInstagramProfileSharedDataFallback(t *testing.T) {
	html := `
	<html><body>
	<script>window._sharedData = {"entry_data":{"ProfilePage":[{"graphql":{"user":{
	  "full_name":"Café Central",
	  "biography":"O melhor café da região",
	  "external_url":"https://cafecentral.com.br",
	  "is_verified":true,
	  "is_business_account":true,
	  "edge_followed_by":{"count":8754}
	}}}]}};</script>
	</body></html>`

	profile, err := parseInstagramProfile("cafecentral", html)
	require.NoError(t, err)

	assert.Equal(t, "Café Central", profile.FullName)
	assert.Equal(t, "O melhor café da região", profile.Bio)
	assert.Equal(t, 8754, profile.FollowerCount)
	assert.True(t, profile.IsVerified)
	assert.True(t, profile.IsBusiness)
	assert.Equal(t, "https://cafecentral.com.br", profile.Website)
}

func TestParseInstagramProfileMetaDescriptionFallback(t *testing.T) {
	html := `
	<html><head>
	<meta property="og:description" content="1.5K Followers, 300 Following - Loja de plantas">
	</head><body></body></html>`

	profile, err := parseInstagramProfile("lojadeplantas", html)
	require.NoError(t, err)

	assert.Equal(t, 1500, profile.FollowerCount)
	assert.Equal(t, "lojadeplantas", profile.FullName)
}

func TestFollowerCountFromDescription(t *testing.T) {
	assert.Equal(t, 2300000, followerCountFromDescription("2.3M Followers, 12 Following"))
	assert.Equal(t, 0, followerCountFromDescription("sem seguidores"))
}
