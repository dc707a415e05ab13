package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"mobile with formatting", "(11) 98765-4321", "(11) 98765-4321"},
		{"mobile bare digits", "11987654321", "(11) 98765-4321"},
		{"landline bare digits", "1133334444", "(11) 3333-4444"},
		{"with country code", "+55 11 98765-4321", "(11) 98765-4321"},
		{"dots as separators", "11.98765.4321", "(11) 98765-4321"},
		{"too short passes through", "12345", "12345"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanPhone(tt.input))
		})
	}
}

func TestExtractPhone(t *testing.T) {
	text := "Ligue agora: (21) 99888-7766 ou visite nossa loja"
	assert.Equal(t, "(21) 99888-7766", ExtractPhone(text))
	assert.Equal(t, "", ExtractPhone("sem telefone aqui"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("contato@empresa.com.br"))
	assert.True(t, ValidEmail("Sales@Example.COM"))
	assert.False(t, ValidEmail("icon@2x.png"))
	assert.False(t, ValidEmail("bundle@v2.min.js"))
	assert.False(t, ValidEmail("a@b@c.com"))
}

func TestParseCompactCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1.5K", 1500},
		{"2M", 2000000},
		{"1,234", 1234},
		{"987", 987},
		{"12.3k", 12300},
		{"", 0},
		{"abc", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseCompactCount(tt.input), "input: %q", tt.input)
	}
}
