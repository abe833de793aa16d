package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return f
}

func TestCookiesPropagateAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc123", Path: "/"})
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/results", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PHPSESSID")
		if err != nil || cookie.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "records")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestFactory(t).Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	resp, err := sess.Get(context.Background(), "/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	resp, err = sess.Get(context.Background(), "/results")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "records", string(resp.Body))
}

func TestRedirectsMergeCookiesAndResolveRelativeTargets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "hop", Value: "one", Path: "/"})
		http.Redirect(w, r, "/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "hop2", Value: "two", Path: "/"})
		http.Redirect(w, r, "final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		one, err1 := r.Cookie("hop")
		two, err2 := r.Cookie("hop2")
		if err1 != nil || err2 != nil || one.Value != "one" || two.Value != "two" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestFactory(t).Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	resp, err := sess.Get(context.Background(), "/start")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.Equal(t, "landed", string(resp.Body))
	require.Equal(t, "/final", resp.FinalURL.Path)
}

func TestRedirectDepthIsBounded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := NewFactory(Options{Timeout: 5 * time.Second, MaxRedirects: 3})
	require.NoError(t, err)
	sess, err := f.Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Get(context.Background(), "/loop")
	require.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestPostRedirectDegradesToGet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		http.Redirect(w, r, "/done", http.StatusFound)
	})
	mux.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, "done")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestFactory(t).Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	resp, err := sess.PostForm(context.Background(), "/submit", url.Values{"q": {"smith"}})
	require.NoError(t, err)
	require.Equal(t, "done", string(resp.Body))
}

func TestIdentityHeaderIsAttached(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	sess, err := newTestFactory(t).Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	sess.SetIdentity("fixture-agent/2.0")
	_, err = sess.Get(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, "fixture-agent/2.0", gotUA)
}

func TestTransientClassification(t *testing.T) {
	f := newTestFactory(t)
	sess, err := f.Open("http://127.0.0.1:1") // nothing listens here
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Get(context.Background(), "/")
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestHTTPStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sess, err := newTestFactory(t).Open(srv.URL)
	require.NoError(t, err)
	defer sess.Close()

	resp, err := sess.Get(context.Background(), "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.Status)
}

var hiddenField = regexp.MustCompile(`name="state" value="([^"]*)"`)

func extractState(body []byte) (string, bool) {
	m := hiddenField.FindSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	return string(m[1]), true
}

func TestTokenStoreRetainsPreviousValueOnMiss(t *testing.T) {
	sess := &Session{tokens: map[string]string{}}

	value, ok := sess.ExtractToken("state", []byte(`<input name="state" value="v1"/>`), extractState)
	require.True(t, ok)
	require.Equal(t, "v1", value)

	// extractor misses: the previous value stays in effect
	value, ok = sess.ExtractToken("state", []byte(`<html>no form here</html>`), extractState)
	require.True(t, ok)
	require.Equal(t, "v1", value)

	stored, ok := sess.TokenValue("state")
	require.True(t, ok)
	require.Equal(t, "v1", stored)
}

func TestTokenAbsenceIsReportedNotFabricated(t *testing.T) {
	sess := &Session{tokens: map[string]string{}}
	_, ok := sess.ExtractToken("missing", []byte(`<html/>`), extractState)
	require.False(t, ok)
	_, ok = sess.TokenValue("missing")
	require.False(t, ok)
}
