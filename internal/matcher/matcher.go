package matcher

import (
	"net"
	"strings"

	"github.com/gobwas/glob"
	"github.com/yl2chen/cidranger"
)

// Matcher is a generic pattern matcher,
// it gives the match result of the given pattern for specific v.
type Matcher interface {
	Match(v string) bool
}

type ipMatcher struct {
	ips map[string]struct{}
}

// IPMatcher creates a Matcher with a list of IP addresses.
// Addresses are compared in canonical form, so 192.168.001.1 does not match.
func IPMatcher(ips []net.IP) Matcher {
	matcher := &ipMatcher{
		ips: make(map[string]struct{}),
	}
	for _, ip := range ips {
		matcher.ips[ip.String()] = struct{}{}
	}
	return matcher
}

func (m *ipMatcher) Match(ip string) bool {
	if m == nil || len(m.ips) == 0 {
		return false
	}
	if v := net.ParseIP(ip); v != nil {
		ip = v.String()
	}
	_, ok := m.ips[ip]
	return ok
}

type cidrMatcher struct {
	ranger cidranger.Ranger
}

// CIDRMatcher creates a Matcher for a list of CIDR notation IP addresses.
// Containment is bitwise, for IPv4 and IPv6 alike.
func CIDRMatcher(inets []*net.IPNet) Matcher {
	ranger := cidranger.NewPCTrieRanger()
	for _, inet := range inets {
		if inet == nil {
			continue
		}
		ranger.Insert(cidranger.NewBasicRangerEntry(*inet))
	}
	return &cidrMatcher{ranger: ranger}
}

func (m *cidrMatcher) Match(ip string) bool {
	if m == nil || m.ranger == nil {
		return false
	}
	// host addresses may carry their own prefix length, e.g. 10.0.0.5/24
	if n := strings.IndexByte(ip, '/'); n >= 0 {
		ip = ip[:n]
	}
	if netIP := net.ParseIP(ip); netIP != nil {
		b, _ := m.ranger.Contains(netIP)
		return b
	}
	return false
}

type domainMatcher struct {
	domains map[string]struct{}
}

// DomainMatcher creates a Matcher for a list of domains,
// the domain should be a plain domain such as 'example.com',
// or a special pattern '.example.com' that matches 'example.com'
// and any subdomain 'abc.example.com', 'def.abc.example.com' etc.
// Matching ignores case and a trailing dot.
func DomainMatcher(domains []string) Matcher {
	matcher := &domainMatcher{
		domains: make(map[string]struct{}),
	}
	for _, domain := range domains {
		matcher.domains[normalizeDomain(domain)] = struct{}{}
	}
	return matcher
}

func (m *domainMatcher) Match(domain string) bool {
	if m == nil || len(m.domains) == 0 {
		return false
	}
	domain = normalizeDomain(domain)

	if _, ok := m.domains[domain]; ok {
		return true
	}
	if _, ok := m.domains["."+domain]; ok {
		return true
	}

	for {
		index := strings.IndexByte(domain, '.')
		if index <= 0 {
			break
		}
		if _, ok := m.domains[domain[index:]]; ok {
			return true
		}
		domain = domain[index+1:]
	}
	return false
}

func normalizeDomain(s string) string {
	return strings.ToLower(strings.TrimSuffix(s, "."))
}

type wildcardMatcher struct {
	globs      []glob.Glob
	ignoreCase bool
}

// WildcardMatcher creates a Matcher for wildcard patterns such as
// '*.example.com' or 'com.google.*'. Invalid patterns are skipped.
func WildcardMatcher(patterns []string) Matcher {
	return newWildcardMatcher(patterns, false)
}

// FoldWildcardMatcher is WildcardMatcher with case-insensitive matching.
func FoldWildcardMatcher(patterns []string) Matcher {
	return newWildcardMatcher(patterns, true)
}

func newWildcardMatcher(patterns []string, ignoreCase bool) *wildcardMatcher {
	m := &wildcardMatcher{ignoreCase: ignoreCase}
	for _, pattern := range patterns {
		if ignoreCase {
			pattern = strings.ToLower(pattern)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		m.globs = append(m.globs, g)
	}
	return m
}

func (m *wildcardMatcher) Match(v string) bool {
	if m == nil || len(m.globs) == 0 {
		return false
	}
	if m.ignoreCase {
		v = strings.ToLower(v)
	}
	for _, g := range m.globs {
		if g.Match(v) {
			return true
		}
	}
	return false
}

// IsWildcard reports whether s contains glob meta characters.
func IsWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
