package upstream

import (
	"fmt"
	"net/url"
	"strconv"
)

// Peer describes one upstream endpoint. Peers are built once at startup and
// shared read-only by every request, so they carry no mutable state.
type Peer struct {
	Host   string
	Port   int
	Scheme string
	UseTLS bool
}

// ParsePeer builds a Peer from a URL like "http://localhost:3000". Only the
// scheme and host part are used; any path on the URL is rejected since peers
// address a server, not a resource.
func ParsePeer(rawURL string) (Peer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Peer{}, fmt.Errorf("invalid upstream URL %q: %w", rawURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return Peer{}, fmt.Errorf("invalid upstream URL %q: scheme must be http or https", rawURL)
	}

	if u.Hostname() == "" {
		return Peer{}, fmt.Errorf("invalid upstream URL %q: missing host", rawURL)
	}

	if u.Path != "" && u.Path != "/" {
		return Peer{}, fmt.Errorf("invalid upstream URL %q: must not contain a path", rawURL)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Peer{}, fmt.Errorf("invalid upstream URL %q: %w", rawURL, err)
		}
	}

	return Peer{
		Host:   u.Hostname(),
		Port:   port,
		Scheme: u.Scheme,
		UseTLS: u.Scheme == "https",
	}, nil
}

func (p Peer) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// BaseURL renders the peer as "scheme://host:port", the prefix that original
// path-and-query strings are appended to.
func (p Peer) BaseURL() *url.URL {
	return &url.URL{
		Scheme: p.Scheme,
		Host:   p.Address(),
	}
}

func (p Peer) IsZero() bool {
	return p.Host == ""
}

func (p Peer) String() string {
	return p.BaseURL().String()
}
