package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOriginHost(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		ok     bool
	}{
		{"https", "https://example.com", "example.com", true},
		{"http", "http://example.com", "example.com", true},
		{"with path", "https://example.com/page", "example.com", true},
		{"with port", "http://localhost:3000", "localhost:3000", true},
		{"uppercase lowered", "https://Example.COM", "example.com", true},
		{"subdomain", "https://app.example.com", "app.example.com", true},
		{"no scheme", "example.com", "", false},
		{"other scheme", "ftp://example.com", "", false},
		{"empty", "", "", false},
		{"scheme only", "https://", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, ok := parseOriginHost(tt.origin)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.host, host)
		})
	}
}

func TestDomainMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		host    string
		matches bool
	}{
		{"exact", "example.com", "example.com", true},
		{"exact mixed case pattern", "Example.com", "example.com", true},
		{"exact rejects subdomain", "example.com", "app.example.com", false},
		{"exact rejects other domain", "example.com", "other.com", false},
		{"wildcard matches subdomain", "*.example.com", "app.example.com", true},
		{"wildcard matches deep subdomain", "*.example.com", "a.b.example.com", true},
		{"wildcard mixed case", "*.Example.com", "app.example.com", true},
		{"wildcard rejects apex", "*.example.com", "example.com", false},
		{"wildcard rejects suffix without dot", "*.example.com", "badexample.com", false},
		{"wildcard rejects other domain", "*.example.com", "app.other.com", false},
		{"pattern is subdomain of host", "app.example.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, domainMatches(tt.pattern, tt.host))
		})
	}
}
