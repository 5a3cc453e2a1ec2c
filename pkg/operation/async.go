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
)

type asyncResult[T any] struct {
	value T
	err   error
}

// Async runs a blocking function on its own goroutine and completes on the
// first tick after the function returns.
type Async[T any] struct {
	Base

	ctx    context.Context
	fn     func(context.Context) (T, error)
	result chan asyncResult[T]
	value  T
}

// NewAsync wraps fn. The function starts when the operation is started.
func NewAsync[T any](ctx context.Context, fn func(context.Context) (T, error)) *Async[T] {
	return &Async[T]{
		ctx:    ctx,
		fn:     fn,
		result: make(chan asyncResult[T], 1),
	}
}

func (a *Async[T]) Start() {
	go func() {
		v, err := a.fn(a.ctx)
		a.result <- asyncResult[T]{value: v, err: err}
	}()
}

func (a *Async[T]) Update() {
	select {
	case r := <-a.result:
		if r.err != nil {
			a.Fail(r.err.Error())
			return
		}
		a.value = r.value
		a.Succeed()
	default:
	}
}

// Value returns the function result once the operation succeeded.
func (a *Async[T]) Value() T {
	return a.value
}

// Completed is an operation that finishes in Start with a fixed outcome.
type Completed struct {
	Base
	err string
}

// NewCompleted returns an operation that succeeds immediately when errMsg is
// empty and fails with errMsg otherwise.
func NewCompleted(errMsg string) *Completed {
	return &Completed{err: errMsg}
}

func (c *Completed) Start() {
	if c.err != "" {
		c.Fail(c.err)
		return
	}
	c.Succeed()
}

func (c *Completed) Update() {}
