// worker.go - goroutine lifecycle helper.
// Copyright (C) 2026  the duskchan authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package worker provides the halt-channel/waitgroup helper every
// long-lived goroutine in duskchan embeds, reconstructed from its call
// sites in the teacher codebase (client2/connection.go's c.Go(...),
// c.HaltCh(); server/cborplugin/client.go's c.Go(c.reaper)) since the
// katzenpost core/worker package itself was not part of the retrieved
// source tree.
package worker

import "sync"

// Worker tracks a set of goroutines started with Go and provides a
// single shot Halt that signals them via HaltCh and waits for them to
// return.
type Worker struct {
	haltOnce sync.Once
	haltCh   chan struct{}
	initOnce sync.Once
	wg       sync.WaitGroup
}

func (w *Worker) init() {
	w.initOnce.Do(func() {
		w.haltCh = make(chan struct{})
	})
}

// HaltCh returns the channel that is closed when Halt is called.
func (w *Worker) HaltCh() <-chan struct{} {
	w.init()
	return w.haltCh
}

// Go starts fn in a goroutine tracked by this Worker's WaitGroup.
func (w *Worker) Go(fn func()) {
	w.init()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Halt closes HaltCh (idempotently) and blocks until every goroutine
// started with Go has returned.
func (w *Worker) Halt() {
	w.init()
	w.haltOnce.Do(func() {
		close(w.haltCh)
	})
	w.wg.Wait()
}

// IsHalted reports whether Halt has been called, without blocking.
func (w *Worker) IsHalted() bool {
	w.init()
	select {
	case <-w.haltCh:
		return true
	default:
		return false
	}
}
