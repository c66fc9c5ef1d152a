package xlimit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder_Build(t *testing.T) {
	b, err := NewKeyBuilder("", nil)
	require.NoError(t, err)

	req := Request{
		Path:           "/api/orders",
		RemoteAddr:     "203.0.113.7:443",
		UserID:         "u-1",
		OrganizationID: "org-9",
	}

	tests := []struct {
		name   string
		policy Policy
		want   string
	}{
		{"ip only", Policy{}, "rate-limit:/api/orders:203.0.113.7"},
		{"user", Policy{ScopeByUser: true}, "rate-limit:/api/orders:203.0.113.7:user:u-1"},
		{"organization", Policy{ScopeByOrganization: true}, "rate-limit:/api/orders:203.0.113.7:org:org-9"},
		{"user and organization", Policy{ScopeByUser: true, ScopeByOrganization: true}, "rate-limit:/api/orders:203.0.113.7:user:u-1:org:org-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Build(req, tt.policy))
		})
	}
}

func TestKeyBuilder_MissingIdentityOmitted(t *testing.T) {
	b, err := NewKeyBuilder("rl:", nil)
	require.NoError(t, err)
	got := b.Build(Request{Path: "/p", RemoteAddr: "10.0.0.1"}, Policy{ScopeByUser: true, ScopeByOrganization: true})
	assert.Equal(t, "rl:/p:10.0.0.1", got)
}

func TestKeyBuilder_ClientIP(t *testing.T) {
	b, err := NewKeyBuilder("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		xff    []string
		remote string
		want   string
	}{
		{"first forwarded entry", []string{"198.51.100.1, 10.0.0.1"}, "10.0.0.2:80", "198.51.100.1"},
		{"multiple header lines", []string{"garbage", "198.51.100.2"}, "10.0.0.2:80", "198.51.100.2"},
		{"remote address", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"ipv4-mapped remote", nil, "[::ffff:192.0.2.10]:5555", "192.0.2.10"},
		{"unparseable forwarded falls back", []string{"not-an-ip"}, "192.0.2.11:1", "192.0.2.11"},
		{"placeholder", []string{"bad"}, "also-bad", "0.0.0.0"},
		{"nothing", nil, "", "0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.xff {
				h.Add(HeaderForwardedFor, v)
			}
			assert.Equal(t, tt.want, b.ClientIP(Request{Header: h, RemoteAddr: tt.remote}))
		})
	}
}

func TestKeyBuilder_TrustedProxies(t *testing.T) {
	b, err := NewKeyBuilder("", []string{"10.0.0.0/8"})
	require.NoError(t, err)

	h := http.Header{}
	h.Set(HeaderForwardedFor, "1.1.1.1, 198.51.100.9, 10.1.2.3")

	assert.Equal(t, "198.51.100.9", b.ClientIP(Request{Header: h, RemoteAddr: "10.0.0.5:80"}),
		"trusted peer: rightmost untrusted hop")
	assert.Equal(t, "203.0.113.50", b.ClientIP(Request{Header: h, RemoteAddr: "203.0.113.50:80"}),
		"untrusted peer: forwarded header ignored")
}

func TestNewKeyBuilder_InvalidProxy(t *testing.T) {
	_, err := NewKeyBuilder("", []string{"not-a-cidr"})
	assert.Error(t, err)
}
