/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package getter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunny352/YooAsset/internal/version"
)

func TestHTTPGetter(t *testing.T) {
	g, err := NewHTTPGetter(WithURL("http://example.com"))
	require.NoError(t, err)

	_, ok := g.(*HTTPGetter)
	require.True(t, ok, "Expected NewHTTPGetter to produce an *HTTPGetter")

	timeout := time.Second * 5
	transport := &http.Transport{}

	g, err = NewHTTPGetter(
		WithBasicAuth("I", "Am"),
		WithPassCredentialsAll(false),
		WithUserAgent("Groot"),
		WithTimeout(timeout),
		WithRetryMax(4),
		WithTransport(transport),
	)
	require.NoError(t, err)

	hg := g.(*HTTPGetter)
	assert.Equal(t, "I", hg.opts.username)
	assert.Equal(t, "Am", hg.opts.password)
	assert.False(t, hg.opts.passCredentialsAll)
	assert.Equal(t, "Groot", hg.opts.userAgent)
	assert.Equal(t, timeout, hg.opts.timeout)
	assert.Equal(t, 4, hg.opts.retryMax)
	assert.Equal(t, http.RoundTripper(transport), hg.opts.transport)
}

func TestDownload(t *testing.T) {
	expect := "Call me Ishmael"
	expectedUserAgent := "I am Groot"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultUserAgent := version.GetUserAgent()
		if r.UserAgent() != defaultUserAgent && r.UserAgent() != expectedUserAgent {
			t.Errorf("Expected '%s' or '%s', got '%s'", defaultUserAgent, expectedUserAgent, r.UserAgent())
		}
		fmt.Fprint(w, expect)
	}))
	defer srv.Close()

	g, err := All().ByScheme("http")
	require.NoError(t, err)
	got, err := g.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, expect, got.String())

	got, err = g.Get(context.Background(), srv.URL, WithUserAgent(expectedUserAgent))
	require.NoError(t, err)
	assert.Equal(t, expect, got.String())
}

func TestDownloadBasicAuth(t *testing.T) {
	basicAuthSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != "username" || password != "password" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, "secret")
	}))
	defer basicAuthSrv.Close()

	g, err := NewHTTPGetter(WithURL(basicAuthSrv.URL), WithBasicAuth("username", "password"))
	require.NoError(t, err)
	got, err := g.Get(context.Background(), basicAuthSrv.URL)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.String())

	// credentials are not sent to a different host
	g, err = NewHTTPGetter(WithURL("http://other.example.com"), WithBasicAuth("username", "password"))
	require.NoError(t, err)
	_, err = g.Get(context.Background(), basicAuthSrv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDownloadRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "1.2.0")
	}))
	defer srv.Close()

	g, err := NewHTTPGetter(WithRetryMax(2), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	got, err := g.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	g, err = NewHTTPGetter(WithRetryMax(1), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)
	_, err = g.Get(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	g, err := NewHTTPGetter(WithRetryMax(3))
	require.NoError(t, err)
	_, err = g.Get(context.Background(), srv.URL+"/missing.bundle")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"), err.Error())
}

func TestDownloadProgress(t *testing.T) {
	body := strings.Repeat("x", 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	var last, total int64
	g, err := NewHTTPGetter(WithProgress(func(written, size int64) {
		last, total = written, size
	}))
	require.NoError(t, err)
	_, err = g.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), last)
	assert.Equal(t, int64(len(body)), total)
}
