// pump.go - serialized exact-length stream reader.
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

// Package readpump turns a byte stream that may deliver partial reads
// into a FIFO source of exact-length buffer fills. Its queueing and
// worker-loop shape follows the teacher's channel/queue idioms
// (client2/connection.go's sendCh/getConsensusCh dispatch loop), with
// the request queue itself backed by gopkg.in/eapache/channels.v1's
// InfiniteChannel rather than a hand-rolled ring buffer.
package readpump

import (
	"errors"
	"io"

	channels "gopkg.in/eapache/channels.v1"

	"github.com/nightproto/duskchan/internal/worker"
)

// ErrDisposed is returned by BeginRead once the pump has been disposed.
var ErrDisposed = errors.New("readpump: disposed")

// request is one queued "fill this buffer to exactly N bytes" job.
type request struct {
	buf        []byte
	length     int
	completion func(state interface{})
	state      interface{}
}

// Pump services begin_read requests against a single io.Reader, in
// strict FIFO order, with at most one completion callback in flight at
// a time (the two-phase BeginRead/EndRead gate described in the
// design).
type Pump struct {
	worker.Worker

	r     io.Reader
	queue *channels.InfiniteChannel
	ackCh chan struct{}

	onDisconnected func(err error)
	onPending      func(depth int)

	disposeOnce struct{ done bool }
}

// New creates a Pump over r and immediately starts its worker
// goroutine. onDisconnected, if non-nil, is invoked exactly once — from
// the pump's own worker goroutine — when r reports EOF or an I/O error.
func New(r io.Reader, onDisconnected func(err error)) *Pump {
	p := &Pump{
		r:              r,
		queue:          channels.NewInfiniteChannel(),
		ackCh:          make(chan struct{}, 1),
		onDisconnected: onDisconnected,
	}
	p.Go(p.run)
	return p
}

// OnPendingDepth registers a callback invoked after every enqueue/dequeue
// with the current request queue depth, for metrics instrumentation.
// Not part of the core read-pump contract; purely observational.
func (p *Pump) OnPendingDepth(fn func(depth int)) {
	p.onPending = fn
}

// BeginRead enqueues a request to fill buf[:length] completely, then
// invoke completion(state) from the pump's worker goroutine. It returns
// immediately; the only failure mode is the pump already being
// disposed.
func (p *Pump) BeginRead(buf []byte, length int, completion func(state interface{}), state interface{}) error {
	if p.IsHalted() {
		return ErrDisposed
	}
	req := &request{buf: buf, length: length, completion: completion, state: state}
	select {
	case p.queue.In() <- req:
	case <-p.HaltCh():
		return ErrDisposed
	}
	if p.onPending != nil {
		p.onPending(p.queue.Len())
	}
	return nil
}

// EndRead signals that the most recently delivered completion callback
// has finished processing, allowing the pump to service the next queued
// request. It must be called exactly once per completion.
func (p *Pump) EndRead() {
	select {
	case p.ackCh <- struct{}{}:
	case <-p.HaltCh():
	}
}

// Dispose stops the worker goroutine and waits for it to exit. It does
// not close the underlying reader; a worker blocked in Read exits only
// once that Read returns (wire.Channel.Dispose closes its connection
// before disposing the pump).
func (p *Pump) Dispose() {
	p.Halt()
	p.queue.Close()
}

func (p *Pump) run() {
	out := p.queue.Out()
	for {
		var raw interface{}
		var ok bool
		select {
		case <-p.HaltCh():
			return
		case raw, ok = <-out:
			if !ok {
				return
			}
		}
		req := raw.(*request)
		if p.onPending != nil {
			p.onPending(p.queue.Len())
		}

		if err := p.fill(req); err != nil {
			if p.onDisconnected != nil {
				p.onDisconnected(err)
			}
			return
		}

		req.completion(req.state)

		select {
		case <-p.ackCh:
		case <-p.HaltCh():
			return
		}
	}
}

func (p *Pump) fill(req *request) error {
	filled := 0
	for filled < req.length {
		n, err := p.r.Read(req.buf[filled:req.length])
		if n > 0 {
			filled += n
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.EOF
		}
	}
	return nil
}
