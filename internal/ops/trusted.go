package ops

import (
	"context"
	"net/url"
	"strings"

	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/signing"
	"github.com/sisilabsai/thesignal/internal/store"
)

// TrustedOutput is the public trusted domain list.
type TrustedOutput struct {
	Domains []string `json:"domains"`
}

// TrustedDomains returns every trusted domain in ascending order.
func TrustedDomains(ctx context.Context, s store.DomainStore) (*TrustedOutput, error) {
	domains, err := s.Domains(ctx)
	if err != nil {
		return nil, err
	}
	if domains == nil {
		domains = []string{}
	}
	return &TrustedOutput{Domains: domains}, nil
}

// TrustOutput contains the result of the Trust operation.
type TrustOutput struct {
	Domain string `json:"domain"`
	Added  bool   `json:"added"`
}

// Trust adds the domain of target, a URL or a bare host name, to the trusted
// list. Trusting a domain twice is not an error.
func Trust(ctx context.Context, s store.DomainStore, target string) (*TrustOutput, error) {
	domain, err := NormalizeDomain(target)
	if err != nil {
		return nil, err
	}
	added, err := s.AddDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	return &TrustOutput{Domain: domain, Added: added}, nil
}

// UntrustOutput contains the result of the Untrust operation.
type UntrustOutput struct {
	Domain  string `json:"domain"`
	Removed bool   `json:"removed"`
}

// Untrust removes the domain of target from the trusted list.
func Untrust(ctx context.Context, s store.DomainStore, target string) (*UntrustOutput, error) {
	domain, err := NormalizeDomain(target)
	if err != nil {
		return nil, err
	}
	removed, err := s.RemoveDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, errors.NewNotFound("domain", domain)
	}
	return &UntrustOutput{Domain: domain, Removed: true}, nil
}

// NormalizeDomain reduces an http(s) URL or a bare host name to its
// lowercase host without port or leading "www.".
func NormalizeDomain(target string) (string, error) {
	target = signing.Normalize(target)
	if target == "" {
		return "", errors.NewInvalidRequest("domain is required")
	}

	bare := !strings.Contains(target, "://")
	raw := target
	if bare {
		raw = "https://" + target
	}
	u, err := url.Parse(raw)
	if err != nil || !record.IsValidURL(raw) || u.User != nil {
		return "", errors.NewInvalidRequest("invalid domain: " + target)
	}
	// A bare host name carries nothing after the host.
	if bare && ((u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "") {
		return "", errors.NewInvalidRequest("invalid domain: " + target)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" || strings.ContainsAny(host, " /") {
		return "", errors.NewInvalidRequest("invalid domain: " + target)
	}
	return host, nil
}
