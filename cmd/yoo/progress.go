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

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sunny352/YooAsset/pkg/download"
)

// progress reports a batch to out. The running counter is only drawn when
// out is a terminal.
type progress struct {
	out   io.Writer
	verb  string
	live  bool
	width int
}

func newProgress(out io.Writer, verb string) *progress {
	p := &progress{out: out, verb: verb}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.live = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.width = w
		}
	}
	return p
}

func (p *progress) attach(b *download.Batch) {
	b.OnError = func(fileName, err string) {
		p.clear()
		fmt.Fprintf(p.out, "...Unable to %s %s: %s\n", lowerVerb(p.verb), fileName, err)
	}
	if !p.live {
		return
	}
	b.OnProgress = func(totalCount, currentCount int, totalBytes, currentBytes int64) {
		line := fmt.Sprintf("%sing %d/%d bundles (%s/%s)", p.verb, currentCount, totalCount,
			formatSize(currentBytes), formatSize(totalBytes))
		if p.width > 0 && len(line) >= p.width {
			line = line[:p.width-1]
		}
		fmt.Fprintf(p.out, "\r%s", line)
	}
}

func (p *progress) clear() {
	if p.live {
		fmt.Fprint(p.out, "\r\033[K")
	}
}

func lowerVerb(verb string) string {
	return strings.ToLower(verb)
}

// formatSize renders n bytes with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
