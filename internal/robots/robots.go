// Package robots gates crawling on robots.txt for sites that opt in. Rules
// are cached per host with a TTL; a host whose robots.txt cannot be fetched
// at all is treated as permitted, so an unreachable policy file never makes
// a directory target silently vanish from a run.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/config"
)

// Agent answers per-URL permission checks against cached robots.txt rules.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool
	skip      map[string]struct{}

	mu    sync.Mutex
	hosts map[string]hostRules
}

type hostRules struct {
	expires time.Time
	data    *robotstxt.RobotsData
}

// NewAgent constructs a robots agent from configuration. Hosts listed as
// overrides are always permitted.
func NewAgent(cfg config.RobotsConfig, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	skip := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			skip[host] = struct{}{}
		}
	}

	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   cfg.Respect,
		skip:      skip,
		hosts:     make(map[string]hostRules),
	}
}

// Allowed reports whether the target URL is permitted for this agent's
// user agent.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if !a.respect {
		return true
	}
	if _, ok := a.skip[strings.ToLower(target.Hostname())]; ok {
		return true
	}

	data, err := a.hostData(ctx, target)
	if err != nil {
		return true
	}
	return data.TestAgent(target.Path, a.userAgent)
}

func (a *Agent) hostData(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)
	now := time.Now()

	a.mu.Lock()
	cached, ok := a.hosts[host]
	a.mu.Unlock()
	if ok && now.Before(cached.expires) {
		return cached.data, nil
	}

	data, err := a.fetch(ctx, target.Scheme+"://"+target.Host+"/robots.txt")
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.hosts[host] = hostRules{expires: now.Add(a.ttl), data: data}
	a.mu.Unlock()
	return data, nil
}

func (a *Agent) fetch(ctx context.Context, rawurl string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// FromResponse maps status codes itself: 404 permits, 401/403 forbid
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
