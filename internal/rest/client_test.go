package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInfo struct {
	Game    string `json:"game"`
	Version string `json:"version"`
}

func TestJoin(t *testing.T) {
	cases := []struct {
		name  string
		base  string
		route string
		want  string
	}{
		{"host only", "https://doc.example.org", "index.html", "https://doc.example.org/index.html"},
		{"base path", "https://doc.example.org/rust-by-example/", "index.html", "https://doc.example.org/rust-by-example/index.html"},
		{"nested route", "https://example.com/api/", "rooms/5", "https://example.com/api/rooms/5"},
		{"empty route", "https://example.com/api/", "", "https://example.com/api/"},
		{"port", "http://localhost:8080/", "room/info/ids", "http://localhost:8080/room/info/ids"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(tc.base)
			got := c.Join(tc.route).String()
			assert.Equal(t, tc.want, got)
			if tc.route != "" {
				assert.Equal(t, c.BaseURL().String()+tc.route, got)
			}
		})
	}
}

func TestNew_Preconditions(t *testing.T) {
	assert.Panics(t, func() { New("https://example.com/api") })
	assert.Panics(t, func() { New("not a url") })
	assert.Panics(t, func() { New("https://example.com/").Join("/rooms") })
	assert.NotPanics(t, func() { New("https://example.com") })
}

func TestDoJSON_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "/route", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"game":"whist","version":"0.1.0"}`)
	}))
	defer srv.Close()

	var got echoInfo
	err := New(srv.URL).DoJSON(context.Background(), http.MethodGet, "route", nil, Empty(), &got)
	require.NoError(t, err)
	assert.Equal(t, echoInfo{Game: "whist", Version: "0.1.0"}, got)
}

func TestDo_PostJSONWithoutResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"game":"whist","version":"0.1.0"}`, string(data))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res, err := New(srv.URL).Do(context.Background(), http.MethodPost, "route", nil,
		JSON(echoInfo{Game: "whist", Version: "0.1.0"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Body)
}

func TestDo_FormAndQuery(t *testing.T) {
	type login struct {
		Username string `url:"username"`
		Password string `url:"password"`
	}
	type page struct {
		Limit int    `url:"limit"`
		Sort  string `url:"sort,omitempty"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "root", r.PostForm.Get("username"))
		assert.Equal(t, "p&ss", r.PostForm.Get("password"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.False(t, r.URL.Query().Has("sort"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Do(context.Background(), http.MethodPost, "user/auth",
		page{Limit: 10}, Form(login{Username: "root", Password: "p&ss"}))
	require.NoError(t, err)
}

func TestDo_BearerToken(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Do(ctx, http.MethodGet, "a", nil, Empty())
	require.NoError(t, err)

	c.SetToken(Token{AccessToken: "abc", TokenType: BearerTokenType})
	_, err = c.Do(ctx, http.MethodGet, "b", nil, Empty())
	require.NoError(t, err)

	c.ClearToken()
	_, err = c.Do(ctx, http.MethodGet, "c", nil, Empty())
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer abc", ""}, auth)
}

func TestDo_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "room not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Do(context.Background(), http.MethodGet, "room/info/x", nil, Empty())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, "room not found", se.Body)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.True(t, IsStatus(err, http.StatusForbidden, http.StatusNotFound))
}

func TestDoJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"game":`)
	}))
	defer srv.Close()

	var got echoInfo
	err := New(srv.URL).DoJSON(context.Background(), http.MethodGet, "", nil, Empty(), &got)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Zero(t, StatusCode(err))
}

func TestDo_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Do(context.Background(), http.MethodGet, "slow", nil, Empty())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDo_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).Do(context.Background(), http.MethodGet, "", nil, Empty())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.NotErrorIs(t, err, ErrTimeout)
}
