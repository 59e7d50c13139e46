// Package pihole talks to the Pi-hole v6 REST API: DNS statistics, top
// lists, blocking control and list management.
package pihole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client interacts with the Pi-hole v6 API. Sessions are established
// lazily and re-established once on a 401.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client

	mu  sync.Mutex
	sid string
}

// NewClient builds a client for the given Pi-hole base URL, e.g.
// "http://192.168.1.2".
func NewClient(baseURL, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sid != "" {
		return nil
	}
	body, err := json.Marshal(map[string]string{"password": c.password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pihole auth failed: %s", resp.Status)
	}
	var payload struct {
		Session struct {
			Valid bool   `json:"valid"`
			SID   string `json:"sid"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	if !payload.Session.Valid || payload.Session.SID == "" {
		return fmt.Errorf("pihole rejected the password")
	}
	c.sid = payload.Session.SID
	return nil
}

// do performs an authenticated request and decodes the JSON response into
// out. On a 401 the session is dropped and the request retried once.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("pihole base url not configured")
	}
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.authenticate(ctx); err != nil {
			return err
		}

		var reader *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(data)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.mu.Lock()
		req.Header.Set("sid", c.sid)
		c.mu.Unlock()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.mu.Lock()
			c.sid = ""
			c.mu.Unlock()
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("pihole %s %s: %s", method, path, resp.Status)
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return fmt.Errorf("pihole %s %s: session expired twice", method, path)
}

// Summary holds the headline DNS statistics.
type Summary struct {
	QueriesTotal   int     `json:"queriesTotal"`
	QueriesBlocked int     `json:"queriesBlocked"`
	PercentBlocked float64 `json:"percentBlocked"`
	DomainsOnLists int     `json:"domainsOnLists"`
	ActiveClients  int     `json:"activeClients"`
}

// Stats fetches today's query summary.
func (c *Client) Stats(ctx context.Context) (Summary, error) {
	var payload struct {
		Queries struct {
			Total          int     `json:"total"`
			Blocked        int     `json:"blocked"`
			PercentBlocked float64 `json:"percent_blocked"`
		} `json:"queries"`
		Gravity struct {
			DomainsBeingBlocked int `json:"domains_being_blocked"`
		} `json:"gravity"`
		Clients struct {
			Active int `json:"active"`
		} `json:"clients"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stats/summary", nil, &payload); err != nil {
		return Summary{}, err
	}
	return Summary{
		QueriesTotal:   payload.Queries.Total,
		QueriesBlocked: payload.Queries.Blocked,
		PercentBlocked: payload.Queries.PercentBlocked,
		DomainsOnLists: payload.Gravity.DomainsBeingBlocked,
		ActiveClients:  payload.Clients.Active,
	}, nil
}

// DomainCount is one entry of a top-domains list.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

func (c *Client) topDomains(ctx context.Context, blocked bool, count int) ([]DomainCount, error) {
	var payload struct {
		Domains []DomainCount `json:"domains"`
	}
	path := fmt.Sprintf("/api/stats/top_domains?blocked=%t&count=%d", blocked, count)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Domains, nil
}

// TopBlocked returns the most frequently blocked domains.
func (c *Client) TopBlocked(ctx context.Context, count int) ([]DomainCount, error) {
	return c.topDomains(ctx, true, count)
}

// TopPermitted returns the most frequently answered domains.
func (c *Client) TopPermitted(ctx context.Context, count int) ([]DomainCount, error) {
	return c.topDomains(ctx, false, count)
}

// ClientCount is one entry of the top-clients list.
type ClientCount struct {
	IP    string `json:"ip"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TopClients returns the clients issuing the most queries.
func (c *Client) TopClients(ctx context.Context, count int) ([]ClientCount, error) {
	var payload struct {
		Clients []ClientCount `json:"clients"`
	}
	path := fmt.Sprintf("/api/stats/top_clients?count=%d", count)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Clients, nil
}

// Status reports whether blocking is currently enabled.
func (c *Client) Status(ctx context.Context) (bool, error) {
	var payload struct {
		Blocking string `json:"blocking"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/dns/blocking", nil, &payload); err != nil {
		return false, err
	}
	return payload.Blocking == "enabled", nil
}

type blockingRequest struct {
	Blocking bool `json:"blocking"`
	Timer    *int `json:"timer"`
}

// Enable turns DNS blocking on.
func (c *Client) Enable(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/dns/blocking", blockingRequest{Blocking: true}, nil)
}

// Disable turns DNS blocking off, optionally for a limited number of
// seconds after which Pi-hole re-enables it on its own.
func (c *Client) Disable(ctx context.Context, seconds int) error {
	req := blockingRequest{Blocking: false}
	if seconds > 0 {
		req.Timer = &seconds
	}
	return c.do(ctx, http.MethodPost, "/api/dns/blocking", req, nil)
}

type domainRequest struct {
	Domain string `json:"domain"`
}

// BlockDomain adds an exact deny-list entry.
func (c *Client) BlockDomain(ctx context.Context, domain string) error {
	return c.do(ctx, http.MethodPost, "/api/domains/deny/exact", domainRequest{Domain: domain}, nil)
}

// AllowDomain adds an exact allow-list entry.
func (c *Client) AllowDomain(ctx context.Context, domain string) error {
	return c.do(ctx, http.MethodPost, "/api/domains/allow/exact", domainRequest{Domain: domain}, nil)
}
