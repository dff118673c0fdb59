package identity

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validateEndpoint refuses anything but https to an allowlisted host, with
// plain http tolerated only for loopback.
func validateEndpoint(raw string, allowHosts []string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("identity endpoint is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid identity endpoint: %w", err)
	}

	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" {
		return nil, fmt.Errorf("identity endpoint missing host")
	}

	scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
	if scheme != "https" && !(scheme == "http" && isLoopbackHost(host)) {
		return nil, fmt.Errorf("refusing identity endpoint scheme %q (host=%q)", scheme, host)
	}

	if isLoopbackHost(host) {
		return u, nil
	}

	// An empty allowlist trusts whatever https host was configured.
	if len(allowHosts) == 0 {
		return u, nil
	}

	for _, allowed := range allowHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u, nil
		}
	}

	return nil, fmt.Errorf("refusing identity endpoint host %q (not allowlisted)", host)
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
