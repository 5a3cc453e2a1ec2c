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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// getterOptions are generic parameters to be provided to the getter during instantiation.
//
// Getters may or may not ignore these parameters as they are passed in.
type getterOptions struct {
	url                string
	acceptHeader       string
	username           string
	password           string
	passCredentialsAll bool
	userAgent          string
	timeout            time.Duration
	retryMax           int
	retryWaitMin       time.Duration
	retryWaitMax       time.Duration
	transport          http.RoundTripper
	progress           func(written, total int64)
}

// Option allows specifying various settings configurable by the user for overriding the defaults
// used when performing Get operations with the Getter.
type Option func(*getterOptions)

// WithURL informs the getter the server name that will be used when fetching objects.
// Basic auth credentials are only sent to this server.
func WithURL(url string) Option {
	return func(opts *getterOptions) {
		opts.url = url
	}
}

// WithAcceptHeader sets the request's Accept header as some REST APIs serve multiple content types
func WithAcceptHeader(header string) Option {
	return func(opts *getterOptions) {
		opts.acceptHeader = header
	}
}

// WithBasicAuth sets the request's Authorization header to use the provided credentials
func WithBasicAuth(username, password string) Option {
	return func(opts *getterOptions) {
		opts.username = username
		opts.password = password
	}
}

func WithPassCredentialsAll(pass bool) Option {
	return func(opts *getterOptions) {
		opts.passCredentialsAll = pass
	}
}

// WithUserAgent sets the request's User-Agent header to use the provided agent name.
func WithUserAgent(userAgent string) Option {
	return func(opts *getterOptions) {
		opts.userAgent = userAgent
	}
}

// WithTimeout sets the timeout for requests
func WithTimeout(timeout time.Duration) Option {
	return func(opts *getterOptions) {
		opts.timeout = timeout
	}
}

// WithRetryMax sets how many times a request is retried after a connection
// error or a server error response.
func WithRetryMax(n int) Option {
	return func(opts *getterOptions) {
		opts.retryMax = n
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(opts *getterOptions) {
		opts.retryWaitMin = min
		opts.retryWaitMax = max
	}
}

// WithTransport sets the http.RoundTripper to allow overwriting the HTTPGetter default.
func WithTransport(transport http.RoundTripper) Option {
	return func(opts *getterOptions) {
		opts.transport = transport
	}
}

// WithProgress reports the bytes received so far. total is -1 when unknown.
func WithProgress(fn func(written, total int64)) Option {
	return func(opts *getterOptions) {
		opts.progress = fn
	}
}

// Getter is an interface to support GET to the specified URL.
type Getter interface {
	// Get file content by url string
	Get(ctx context.Context, url string, options ...Option) (*bytes.Buffer, error)
}

// Constructor is the function for every getter which creates a specific instance
// according to the configuration
type Constructor func(options ...Option) (Getter, error)

// Provider represents any getter and the schemes that it supports.
//
// For example, an HTTP provider may provide one getter that handles both
// 'http' and 'https' schemes.
type Provider struct {
	Schemes []string
	New     Constructor
}

// Provides returns true if the given scheme is supported by this Provider.
func (p Provider) Provides(scheme string) bool {
	return slices.Contains(p.Schemes, scheme)
}

// Providers is a collection of Provider objects.
type Providers []Provider

// ByScheme returns a Provider that handles the given scheme.
//
// If no provider handles this scheme, this will return an error.
func (p Providers) ByScheme(scheme string) (Getter, error) {
	for _, pp := range p {
		if pp.Provides(scheme) {
			return pp.New()
		}
	}
	return nil, fmt.Errorf("scheme %q not supported", scheme)
}

// ForURL returns a getter for the scheme of rawURL.
func (p Providers) ForURL(rawURL string) (Getter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return p.ByScheme(u.Scheme)
}

// DefaultHTTPTimeout bounds a whole request unless WithTimeout says otherwise.
const DefaultHTTPTimeout = 60 * time.Second

var defaultOptions = []Option{WithTimeout(DefaultHTTPTimeout)}

// All returns the built-in getters: http, https and file.
func All(extraOpts ...Option) Providers {
	return Providers{
		Provider{
			Schemes: []string{"http", "https"},
			New: func(options ...Option) (Getter, error) {
				opts := append([]Option{}, defaultOptions...)
				opts = append(opts, extraOpts...)
				return NewHTTPGetter(append(opts, options...)...)
			},
		},
		Provider{
			Schemes: []string{"file"},
			New: func(options ...Option) (Getter, error) {
				opts := append([]Option{}, extraOpts...)
				return NewFileGetter(append(opts, options...)...)
			},
		},
	}
}
