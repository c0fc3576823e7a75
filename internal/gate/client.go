package gate

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// maxRedirects bounds redirect chains followed by the gated client
const maxRedirects = 5

// HTTPDoer is the single network primitive rail connectors are given
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BlockedError is returned for a call the gate refused
type BlockedError struct {
	Decision Decision
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("outbound call to %q blocked: %s", e.Decision.Hostname, e.Decision.Reason)
}

// Client decorates an HTTPDoer so every request is decided before it is sent
type Client struct {
	gate *Gate
	next HTTPDoer
}

// Wrap returns a gated client around next
func (g *Gate) Wrap(next HTTPDoer) *Client {
	return &Client{gate: g, next: next}
}

// Do implements HTTPDoer
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, &BlockedError{Decision: Decision{Reason: "request has no URL"}}
	}

	d := c.gate.Decide(req.URL.Hostname())
	if !d.Allowed {
		return nil, &BlockedError{Decision: d}
	}

	return c.next.Do(req)
}

// NewHTTPClient builds the base client for Wrap. Its redirect hook consults
// the gate as well, so a redirect cannot lead a permitted call elsewhere.
func (g *Gate) NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("too many redirects")
			}
			d := g.Decide(req.URL.Hostname())
			if !d.Allowed {
				return &BlockedError{Decision: d}
			}
			return nil
		},
	}
}
