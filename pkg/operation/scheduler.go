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

package operation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sunny352/YooAsset/internal/logging"
)

// DefaultTickInterval is used by Run when no interval is given.
const DefaultTickInterval = 10 * time.Millisecond

// Scheduler advances registered operations once per Tick.
//
// Tick must only be called from one goroutine at a time. Operations started
// while a tick is in progress are first updated on the next tick.
type Scheduler struct {
	mu      sync.Mutex
	ops     []Operation
	pending []Operation
	ticking bool

	log logrus.FieldLogger
}

// NewScheduler returns an empty scheduler. A nil logger discards.
func NewScheduler(log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logging.Discard()
	}
	return &Scheduler{log: log}
}

// Start registers op and calls its Start method.
func (s *Scheduler) Start(op Operation) {
	op.base().begin()
	s.mu.Lock()
	s.pending = append(s.pending, op)
	s.mu.Unlock()
	s.log.WithField("op", op.ID()).Debugf("operation %T started", op)
	op.Start()
}

// Tick updates every registered operation that is not done, then retires
// the ones that are.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		panic("operation: Tick called re-entrantly")
	}
	s.ticking = true
	s.ops = append(s.ops, s.pending...)
	s.pending = nil
	ops := s.ops
	s.mu.Unlock()

	for _, op := range ops {
		if op.IsDone() {
			continue
		}
		op.Update()
	}

	var remaining, retired []Operation
	for _, op := range ops {
		if op.IsDone() {
			retired = append(retired, op)
			continue
		}
		remaining = append(remaining, op)
	}

	s.mu.Lock()
	s.ops = remaining
	s.ticking = false
	s.mu.Unlock()

	for _, op := range retired {
		if op.Status() == StatusFailed {
			s.log.WithField("op", op.ID()).Debugf("operation %T failed: %s", op, op.Error())
		}
		op.base().finish()
	}
}

// Len returns the number of registered operations.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops) + len(s.pending)
}

// Clear aborts and retires every registered operation.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	ops := append(s.ops, s.pending...)
	s.ops = nil
	s.pending = nil
	s.mu.Unlock()

	for _, op := range ops {
		op.Abort()
		op.base().finish()
	}
}

// Run ticks the scheduler until op is retired or ctx is done.
func (s *Scheduler) Run(ctx context.Context, op Operation, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.Tick()
		select {
		case <-op.Done():
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
