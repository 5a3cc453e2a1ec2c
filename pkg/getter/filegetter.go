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
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FileGetter reads file:// URLs from the local filesystem. It is used to
// copy built-in content into the cache.
type FileGetter struct {
	opts getterOptions
}

// NewFileGetter constructs a Getter for file:// URLs.
func NewFileGetter(options ...Option) (Getter, error) {
	var g FileGetter
	for _, opt := range options {
		opt(&g.opts)
	}
	return &g, nil
}

// Get reads the whole file named by href.
func (g *FileGetter) Get(ctx context.Context, href string, options ...Option) (*bytes.Buffer, error) {
	opts := g.opts
	for _, opt := range options {
		opt(&opts)
	}

	path, err := FilePath(href)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := int64(-1)
	if fi, err := f.Stat(); err == nil {
		total = fi.Size()
	}

	buf := bytes.NewBuffer(nil)
	var w io.Writer = buf
	if opts.progress != nil {
		w = &progressWriter{w: buf, total: total, fn: opts.progress}
	}
	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: f}); err != nil {
		return nil, err
	}
	return buf, nil
}

// FilePath converts a file:// URL to a local path.
func FilePath(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %s", href)
	}
	return filepath.FromSlash(u.Path), nil
}

// FileURL converts a local path to a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
