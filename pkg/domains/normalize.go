package domains

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/miekg/dns"
	"github.com/weppos/publicsuffix-go/publicsuffix"
	"golang.org/x/net/idna"
)

const wildcardPrefix = "*."

var suffixOptions = &publicsuffix.FindOptions{IgnorePrivate: true, DefaultRule: publicsuffix.DefaultRule}

// Normalize turns user input such as "https://Ads.Example.com:443/x" into the
// form the vendor stores ("ads.example.com"). Internationalized names are
// converted to punycode. Bare public suffixes are rejected.
func Normalize(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", fmt.Errorf("empty domain")
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid domain %q", input)
		}
		s = u.Hostname()
	} else {
		s = strings.SplitN(s, "/", 2)[0]
		if host, _, err := net.SplitHostPort(s); err == nil {
			s = host
		}
	}
	s = strings.TrimSuffix(s, ".")

	wildcard := strings.HasPrefix(s, wildcardPrefix)
	s = strings.TrimPrefix(s, wildcardPrefix)

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", input, err)
	}
	if _, ok := dns.IsDomainName(ascii); !ok || strings.Contains(ascii, "*") || net.ParseIP(ascii) != nil {
		return "", fmt.Errorf("invalid domain %q", input)
	}

	if _, err := publicsuffix.DomainFromListWithOptions(publicsuffix.DefaultList, ascii, suffixOptions); err != nil {
		return "", fmt.Errorf("%q is a public suffix; block it with the security TLD list instead", ascii)
	}

	if wildcard {
		return wildcardPrefix + ascii, nil
	}
	return ascii, nil
}
