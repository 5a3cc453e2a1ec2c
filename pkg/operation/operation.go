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
	"sync"

	"github.com/google/uuid"
)

// Status is the state of an operation.
type Status int

const (
	StatusNone Status = iota
	StatusProcessing
	StatusSucceed
	StatusFailed
)

var statusNames = [...]string{"none", "processing", "succeed", "failed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// ErrAborted is the error text of an operation that was force-completed.
const ErrAborted = "user abort"

// Operation is a step-state machine driven by a Scheduler.
//
// Implementations embed Base and provide Start and Update. Update is only
// called while the operation is not done.
type Operation interface {
	Start()
	Update()

	ID() string
	Status() Status
	Error() string
	Progress() float64
	IsDone() bool
	Done() <-chan struct{}
	Abort()

	base() *Base
}

// Base carries the bookkeeping shared by all operations. Its zero value is
// ready to use.
type Base struct {
	mu        sync.RWMutex
	id        string
	status    Status
	err       string
	progress  float64
	callbacks []func()
	done      chan struct{}
	finished  bool
}

func (b *Base) base() *Base { return b }

// ID returns a unique identifier for the operation.
func (b *Base) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id == "" {
		b.id = uuid.NewString()
	}
	return b.id
}

func (b *Base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Base) Error() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

func (b *Base) Progress() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.progress
}

// IsDone reports whether the operation reached Succeed or Failed.
func (b *Base) IsDone() bool {
	s := b.Status()
	return s == StatusSucceed || s == StatusFailed
}

// Done returns a channel that is closed once the scheduler has retired the
// operation and its completion callbacks have returned.
func (b *Base) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done == nil {
		b.done = make(chan struct{})
	}
	return b.done
}

// SetProgress records progress in the range [0, 1].
func (b *Base) SetProgress(p float64) {
	b.mu.Lock()
	b.progress = p
	b.mu.Unlock()
}

// Succeed completes the operation successfully.
func (b *Base) Succeed() {
	b.complete(StatusSucceed, "")
}

// Fail completes the operation with an error message.
func (b *Base) Fail(msg string) {
	b.complete(StatusFailed, msg)
}

// Abort force-completes an unfinished operation as failed. Work it already
// handed to the I/O layer is not interrupted.
func (b *Base) Abort() {
	b.complete(StatusFailed, ErrAborted)
}

func (b *Base) complete(s Status, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusSucceed || b.status == StatusFailed {
		return
	}
	b.status = s
	b.err = msg
	if s == StatusSucceed {
		b.progress = 1
	}
}

// OnCompleted registers fn to run on the tick thread when the operation is
// retired. If it is already retired fn runs immediately.
func (b *Base) OnCompleted(fn func()) {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		fn()
		return
	}
	b.callbacks = append(b.callbacks, fn)
	b.mu.Unlock()
}

func (b *Base) begin() {
	b.mu.Lock()
	if b.status == StatusNone {
		b.status = StatusProcessing
	}
	b.mu.Unlock()
}

func (b *Base) finish() {
	b.mu.Lock()
	if b.finished {
		b.mu.Unlock()
		return
	}
	b.finished = true
	callbacks := b.callbacks
	b.callbacks = nil
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}

	b.mu.Lock()
	if b.done == nil {
		b.done = make(chan struct{})
	}
	close(b.done)
	b.mu.Unlock()
}
