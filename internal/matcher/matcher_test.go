package matcher

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, inet, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return inet
}

func TestCIDRMatcher(t *testing.T) {
	m := CIDRMatcher([]*net.IPNet{
		mustCIDR(t, "192.168.1.0/24"),
		mustCIDR(t, "10.0.0.64/26"),
		mustCIDR(t, "fd00:1::/64"),
	})

	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.20", true},
		{"192.168.1.20/24", true},
		{"192.168.2.20", false},
		{"10.0.0.100", true},
		{"10.0.0.10", false},
		{"fd00:1::5", true},
		{"fd00:2::5", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Match(tt.ip), tt.ip)
	}
}

func TestIPMatcher(t *testing.T) {
	m := IPMatcher([]net.IP{net.ParseIP("192.168.1.1"), net.ParseIP("fe80::1")})
	assert.True(t, m.Match("192.168.1.1"))
	assert.True(t, m.Match("FE80::1"))
	assert.False(t, m.Match("192.168.1.2"))
	assert.False(t, IPMatcher(nil).Match("192.168.1.1"))
}

func TestDomainMatcher(t *testing.T) {
	m := DomainMatcher([]string{".local", "captive.apple.com"})
	assert.True(t, m.Match("printer.local"))
	assert.True(t, m.Match("local"))
	assert.True(t, m.Match("Captive.Apple.com."))
	assert.False(t, m.Match("apple.com"))
}

func TestWildcardMatcher(t *testing.T) {
	m := WildcardMatcher([]string{"com.google.*", "[invalid"})
	assert.True(t, m.Match("com.google.Chrome"))
	assert.False(t, m.Match("COM.GOOGLE.Chrome"))

	f := FoldWildcardMatcher([]string{"*Helper*"})
	assert.True(t, f.Match("Slack helper (GPU)"))
	assert.False(t, f.Match("Slack"))

	assert.True(t, IsWildcard("com.*"))
	assert.False(t, IsWildcard("com.dropbox.Dropbox"))
}
