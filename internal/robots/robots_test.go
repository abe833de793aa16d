package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fardeen-MM/mortar-lead-scraper-sub007/internal/config"
)

func robotsServer(t *testing.T, body string) (*httptest.Server, *int) {
	t.Helper()
	fetches := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		*fetches++
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, fetches
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestAllowedFollowsRules(t *testing.T) {
	srv, _ := robotsServer(t, "User-agent: *\nDisallow: /members/\n")
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "mortar-directory-bot/1.0"}, srv.Client())

	ctx := context.Background()
	require.False(t, agent.Allowed(ctx, mustURL(t, srv.URL+"/members/search")))
	require.True(t, agent.Allowed(ctx, mustURL(t, srv.URL+"/about")))
}

func TestAgentSpecificGroupWins(t *testing.T) {
	srv, _ := robotsServer(t, "User-agent: *\nDisallow: /\n\nUser-agent: mortar-directory-bot\nAllow: /\n")
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "mortar-directory-bot/1.0"}, srv.Client())

	require.True(t, agent.Allowed(context.Background(), mustURL(t, srv.URL+"/members/search")))
}

func TestRulesAreCachedPerHost(t *testing.T) {
	srv, fetches := robotsServer(t, "User-agent: *\nDisallow: /private/\n")
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "bot"}, srv.Client())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.True(t, agent.Allowed(ctx, mustURL(t, srv.URL+"/public")))
	}
	require.Equal(t, 1, *fetches)
}

func TestMissingRobotsPermits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "bot"}, srv.Client())

	require.True(t, agent.Allowed(context.Background(), mustURL(t, srv.URL+"/anything")))
}

func TestUnreachableHostPermits(t *testing.T) {
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "bot"}, nil)
	require.True(t, agent.Allowed(context.Background(), mustURL(t, "http://127.0.0.1:1/listing")))
}

func TestOverrideHostSkipsRules(t *testing.T) {
	srv, fetches := robotsServer(t, "User-agent: *\nDisallow: /\n")
	host := mustURL(t, srv.URL).Hostname()
	agent := NewAgent(config.RobotsConfig{
		Respect:   true,
		UserAgent: "bot",
		Overrides: []string{host},
	}, srv.Client())

	require.True(t, agent.Allowed(context.Background(), mustURL(t, srv.URL+"/members/search")))
	require.Zero(t, *fetches)
}

func TestDisabledAgentPermitsEverything(t *testing.T) {
	agent := NewAgent(config.RobotsConfig{Respect: false}, nil)
	require.True(t, agent.Allowed(context.Background(), mustURL(t, "https://example.org/anywhere")))
}

func TestRelativeTargetsAreRefused(t *testing.T) {
	agent := NewAgent(config.RobotsConfig{Respect: true, UserAgent: "bot"}, nil)
	require.False(t, agent.Allowed(context.Background(), nil))
	require.False(t, agent.Allowed(context.Background(), mustURL(t, "/relative/only")))
}
