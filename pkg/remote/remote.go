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

package remote

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/manifest"
)

// Services locates package files on the content server.
type Services interface {
	// MainURL returns the primary URL of a file.
	MainURL(fileName string) string
	// FallbackURL returns the URL tried when the primary one fails.
	FallbackURL(fileName string) string
	// QueryLatestVersion asks the server for the newest version of a package.
	QueryLatestVersion(ctx context.Context, packageName string, appendTimestamp bool, timeout time.Duration, retries int) (string, error)
}

// FetchOptions tune Fetch.
type FetchOptions struct {
	// Timeout bounds each attempt. Zero means the getter default.
	Timeout time.Duration
	// Retries is the number of attempts after the first one.
	Retries int
	// AppendTimestamp adds a cache-busting query to every URL.
	AppendTimestamp bool
}

// Fetch downloads fileName, alternating between the main and the fallback
// URL on every attempt. The error of the last attempt is returned.
func Fetch(ctx context.Context, providers getter.Providers, svc Services, fileName string, opts FetchOptions) (*bytes.Buffer, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		href := URLForAttempt(svc, fileName, attempt)
		if opts.AppendTimestamp {
			href = withTimestamp(href)
		}
		g, err := providers.ForURL(href)
		if err != nil {
			return nil, err
		}
		var getOpts []getter.Option
		if opts.Timeout > 0 {
			getOpts = append(getOpts, getter.WithTimeout(opts.Timeout))
		}
		buf, err := g.Get(ctx, href, getOpts...)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// URLForAttempt returns the main URL on even attempts and the fallback URL
// on odd ones.
func URLForAttempt(svc Services, fileName string, attempt int) string {
	if attempt%2 == 0 {
		return svc.MainURL(fileName)
	}
	return svc.FallbackURL(fileName)
}

func withTimestamp(href string) string {
	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%d", href, sep, time.Now().UnixNano())
}

// HostServices serves package files from a main and a fallback server.
type HostServices struct {
	mainBase     string
	fallbackBase string
	providers    getter.Providers
}

// NewHostServices returns services rooted at the two server URLs. An empty
// fallback reuses the main server.
func NewHostServices(mainBase, fallbackBase string, providers getter.Providers) *HostServices {
	if fallbackBase == "" {
		fallbackBase = mainBase
	}
	if providers == nil {
		providers = getter.All()
	}
	return &HostServices{
		mainBase:     strings.TrimSuffix(mainBase, "/"),
		fallbackBase: strings.TrimSuffix(fallbackBase, "/"),
		providers:    providers,
	}
}

func (h *HostServices) MainURL(fileName string) string {
	return h.mainBase + "/" + fileName
}

func (h *HostServices) FallbackURL(fileName string) string {
	return h.fallbackBase + "/" + fileName
}

// QueryLatestVersion downloads the version file of the package.
func (h *HostServices) QueryLatestVersion(ctx context.Context, packageName string, appendTimestamp bool, timeout time.Duration, retries int) (string, error) {
	fileName := manifest.VersionFileName(packageName)
	buf, err := Fetch(ctx, h.providers, h, fileName, FetchOptions{
		Timeout:         timeout,
		Retries:         retries,
		AppendTimestamp: appendTimestamp,
	})
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(buf.String())
	if v == "" {
		return "", errors.Errorf("Remote package version is empty : %s", h.MainURL(fileName))
	}
	return v, nil
}

// Providers returns the getters used by the services.
func (h *HostServices) Providers() getter.Providers {
	return h.providers
}
