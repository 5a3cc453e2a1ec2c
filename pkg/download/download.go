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

package download

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sunny352/YooAsset/internal/logging"
	"github.com/sunny352/YooAsset/internal/monitoring"
	"github.com/sunny352/YooAsset/pkg/cacheindex"
	"github.com/sunny352/YooAsset/pkg/cacheindex/driver"
	"github.com/sunny352/YooAsset/pkg/content"
	"github.com/sunny352/YooAsset/pkg/getter"
	"github.com/sunny352/YooAsset/pkg/operation"
)

// Batch kinds, used as metric labels.
const (
	KindDownload = "download"
	KindUnpack   = "unpack"
)

const (
	DefaultMaxConcurrency  = 10
	DefaultMaxRetryPerItem = 3
	DefaultTimeout         = 60 * time.Second
)

// Options tune a Batch.
type Options struct {
	// MaxConcurrency bounds the transfers in flight.
	MaxConcurrency int
	// MaxRetryPerItem is the number of failed attempts an item may have
	// before the batch fails. Nil means DefaultMaxRetryPerItem, or the
	// package's own budget when the batch comes from a package.
	MaxRetryPerItem *int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// RequestsPerSecond throttles transfer starts. Zero disables throttling.
	RequestsPerSecond float64
}

// Retries returns a retry budget for Options.MaxRetryPerItem.
func Retries(n int) *int { return &n }

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	switch {
	case o.MaxRetryPerItem == nil:
		o.MaxRetryPerItem = Retries(DefaultMaxRetryPerItem)
	case *o.MaxRetryPerItem < 0:
		o.MaxRetryPerItem = Retries(0)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Config carries the collaborators of a Batch.
type Config struct {
	PackageName string
	Kind        string
	Scheduler   *operation.Scheduler
	Cache       *cacheindex.Cache
	Providers   getter.Providers
	Metrics     *monitoring.Metrics
	Log         logrus.FieldLogger
}

type batchStep int

const (
	stepNone batchStep = iota
	stepCheck
	stepLoading
	stepDone
)

type job struct {
	info    *content.BundleInfo
	attempt int
	started time.Time
	written atomic.Int64
}

type result struct {
	job *job
	rec *driver.Record
	err error
}

// Batch downloads or unpacks a list of bundles.
type Batch struct {
	operation.Base

	cfg  Config
	opts Options
	log  logrus.FieldLogger

	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter

	list     []*content.BundleInfo
	queue    []*job
	running  map[string]*job
	failures map[string]int
	results  chan result
	step     batchStep
	paused   atomic.Bool

	totalBytes   int64
	currentCount int
	currentBytes int64
	lastError    string

	// OnStartFile is called when a transfer of a bundle starts.
	OnStartFile func(fileName string, size int64)
	// OnProgress is called whenever a bundle finished.
	OnProgress func(totalCount, currentCount int, totalBytes, currentBytes int64)
	// OnError is called when a bundle exhausted its retries.
	OnError func(fileName, err string)
	// OnOver is called once the batch finished.
	OnOver func(succeed bool)
}

// NewBatch returns a batch over list. The batch does nothing until Begin.
func NewBatch(cfg Config, list []*content.BundleInfo, opts Options) *Batch {
	if cfg.Log == nil {
		cfg.Log = logging.Discard()
	}
	if cfg.Kind == "" {
		cfg.Kind = KindDownload
	}
	if cfg.Providers == nil {
		cfg.Providers = getter.All()
	}
	b := &Batch{
		cfg:      cfg,
		opts:     opts.withDefaults(),
		running:  map[string]*job{},
		failures: map[string]int{},
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.log = cfg.Log.WithFields(logrus.Fields{"package": cfg.PackageName, "kind": cfg.Kind})
	b.list = dedupe(list)
	for _, info := range b.list {
		b.totalBytes += info.Bundle.FileSize
	}
	return b
}

func dedupe(list []*content.BundleInfo) []*content.BundleInfo {
	seen := map[string]bool{}
	out := make([]*content.BundleInfo, 0, len(list))
	for _, info := range list {
		guid := info.Bundle.CacheGUID()
		if seen[guid] {
			continue
		}
		seen[guid] = true
		out = append(out, info)
	}
	return out
}

// TotalCount returns the number of bundles in the batch.
func (b *Batch) TotalCount() int { return len(b.list) }

// TotalBytes returns the size of all bundles in the batch.
func (b *Batch) TotalBytes() int64 { return b.totalBytes }

// CurrentCount returns the number of bundles already cached.
func (b *Batch) CurrentCount() int { return b.currentCount }

// CurrentBytes returns the size of the bundles already cached.
func (b *Batch) CurrentBytes() int64 { return b.currentBytes }

// List returns the bundles of the batch.
func (b *Batch) List() []*content.BundleInfo { return b.list }

// Combine appends the bundles of other that are not in b yet. Both batches
// must belong to the same package and b must not have begun.
func (b *Batch) Combine(other *Batch) error {
	if b.step != stepNone {
		return errors.New("cannot combine a batch that already began")
	}
	if other.cfg.PackageName != b.cfg.PackageName {
		return errors.Errorf("cannot combine batches of %s and %s", b.cfg.PackageName, other.cfg.PackageName)
	}
	before := len(b.list)
	b.list = dedupe(append(b.list, other.list...))
	for _, info := range b.list[before:] {
		b.totalBytes += info.Bundle.FileSize
	}
	return nil
}

// Begin registers the batch with its scheduler. Calling it again is a no-op.
func (b *Batch) Begin() {
	if b.Status() != operation.StatusNone {
		return
	}
	b.cfg.Scheduler.Start(b)
}

// Pause stops new transfers from starting. Transfers in flight finish.
func (b *Batch) Pause() { b.paused.Store(true) }

// Resume undoes Pause.
func (b *Batch) Resume() { b.paused.Store(false) }

// Cancel stops the batch. Transfers in flight are abandoned and their
// results are never committed.
func (b *Batch) Cancel() {
	if b.IsDone() {
		return
	}
	b.cancel()
	b.Abort()
	b.over(false)
}

func (b *Batch) Start() {
	b.results = make(chan result, len(b.list))
	if b.opts.RequestsPerSecond > 0 {
		burst := int(b.opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(b.opts.RequestsPerSecond), burst)
	}
	for _, info := range b.list {
		b.queue = append(b.queue, &job{info: info})
	}
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.BatchStarted(b.cfg.PackageName, b.cfg.Kind)
		b.OnCompleted(func() { b.cfg.Metrics.BatchFinished(b.cfg.PackageName, b.cfg.Kind) })
	}
	b.step = stepCheck
	b.log.Debugf("batch of %d bundles (%d bytes) started", len(b.list), b.totalBytes)
}

func (b *Batch) Update() {
	if b.IsDone() || b.step == stepNone || b.step == stepDone {
		return
	}

	if b.step == stepCheck {
		if len(b.list) == 0 {
			b.finish(true, "")
			return
		}
		b.step = stepLoading
	}

	if b.step == stepLoading {
		if !b.collect() {
			return
		}
		if !b.paused.Load() {
			b.dispatch()
		}
		b.SetProgress(b.progress())
		if len(b.queue) == 0 && len(b.running) == 0 {
			b.finish(true, "")
		}
	}
}

// collect handles finished transfers. It returns false once the batch failed.
func (b *Batch) collect() bool {
	for {
		select {
		case r := <-b.results:
			if !b.handle(r) {
				return false
			}
		default:
			return true
		}
	}
}

func (b *Batch) handle(r result) bool {
	guid := r.job.info.Bundle.CacheGUID()
	name := r.job.info.Bundle.BundleName
	delete(b.running, guid)

	if r.err != nil {
		b.failures[guid]++
		b.log.WithError(r.err).Debugf("attempt %d of %s failed", r.job.attempt+1, name)
		if b.failures[guid] > *b.opts.MaxRetryPerItem {
			b.lastError = r.err.Error()
			if b.cfg.Metrics != nil {
				b.cfg.Metrics.FileFailed(b.cfg.PackageName, b.cfg.Kind)
			}
			if b.OnError != nil {
				b.OnError(name, b.lastError)
			}
			b.finish(false, fmt.Sprintf("Failed to %s file : %s", b.cfg.Kind, name))
			return false
		}
		if b.cfg.Metrics != nil {
			b.cfg.Metrics.FileRetried(b.cfg.PackageName, b.cfg.Kind)
		}
		b.queue = append([]*job{{info: r.job.info, attempt: r.job.attempt + 1}}, b.queue...)
		return true
	}

	if !b.cfg.Cache.Commit(r.rec) {
		// the cache was cleared while the bundle was written
		b.log.Debugf("%s was cleared before it was committed, fetching it again", name)
		b.queue = append([]*job{{info: r.job.info, attempt: r.job.attempt}}, b.queue...)
		return true
	}
	b.currentCount++
	b.currentBytes += r.job.info.Bundle.FileSize
	if b.cfg.Metrics != nil {
		b.cfg.Metrics.FileSucceeded(b.cfg.PackageName, b.cfg.Kind, r.job.info.Bundle.FileSize, time.Since(r.job.started))
	}
	if b.OnProgress != nil {
		b.OnProgress(len(b.list), b.currentCount, b.totalBytes, b.currentBytes)
	}
	return true
}

func (b *Batch) dispatch() {
	for len(b.queue) > 0 && len(b.running) < b.opts.MaxConcurrency {
		if b.limiter != nil && !b.limiter.Allow() {
			return
		}
		j := b.queue[0]
		b.queue = b.queue[1:]
		j.started = time.Now()
		b.running[j.info.Bundle.CacheGUID()] = j
		if b.OnStartFile != nil {
			b.OnStartFile(j.info.Bundle.BundleName, j.info.Bundle.FileSize)
		}
		go func(j *job) {
			rec, err := b.transfer(b.ctx, j)
			b.results <- result{job: j, rec: rec, err: err}
		}(j)
	}
}

func (b *Batch) transfer(ctx context.Context, j *job) (*driver.Record, error) {
	href := j.info.MainURL
	if j.attempt%2 == 1 && j.info.FallbackURL != "" {
		href = j.info.FallbackURL
	}
	g, err := b.cfg.Providers.ForURL(href)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	buf, err := g.Get(ctx, href,
		getter.WithTimeout(b.opts.Timeout),
		getter.WithProgress(func(written, _ int64) { j.written.Store(written) }),
	)
	if err != nil {
		return nil, err
	}
	data := buf.Bytes()
	if err := cacheindex.Verify(j.info.Bundle, data); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.cfg.Cache.Persist(j.info.Bundle, data)
}

func (b *Batch) progress() float64 {
	if b.totalBytes == 0 {
		if len(b.list) == 0 {
			return 1
		}
		return float64(b.currentCount) / float64(len(b.list))
	}
	current := b.currentBytes
	for _, j := range b.running {
		current += j.written.Load()
	}
	if current > b.totalBytes {
		current = b.totalBytes
	}
	return float64(current) / float64(b.totalBytes)
}

func (b *Batch) finish(succeed bool, msg string) {
	b.cancel()
	b.step = stepDone
	if succeed {
		b.Succeed()
	} else {
		b.Fail(msg)
	}
	b.over(succeed)
}

func (b *Batch) over(succeed bool) {
	if b.OnOver != nil {
		b.OnOver(succeed)
	}
}

// LastError returns the error of the bundle that failed the batch.
func (b *Batch) LastError() string { return b.lastError }
