// channel.go - framed message channel over a duplex stream.
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

package wire

import (
	"io"
	"math"
	"net"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"github.com/nightproto/duskchan/internal/worker"
	"github.com/nightproto/duskchan/readpump"
)

// Metrics is the subset of metrics.Collector that Channel instruments.
// Defined here (rather than importing the metrics package) to avoid a
// dependency cycle; metrics.Collector satisfies it.
type Metrics interface {
	MessageSent(typeCode uint64)
	MessageReceived(typeCode uint64)
	ProtocolError()
	ReadPumpPending(depth int)
}

type nopMetrics struct{}

func (nopMetrics) MessageSent(uint64)   {}
func (nopMetrics) MessageReceived(uint64) {}
func (nopMetrics) ProtocolError()        {}
func (nopMetrics) ReadPumpPending(int)   {}

type sendJob struct {
	context  uint64
	typeCode uint64
	buf      []byte
}

// Channel frames and deframes messages over an already-connected
// net.Conn. The zero value is not usable; construct with NewChannel.
type Channel struct {
	worker.Worker

	conn net.Conn
	pump *readpump.Pump
	log  *charmlog.Logger
	metrics Metrics

	subs subscribers

	contextCounter uint64
	disconnected   int32 // atomic CAS flag; 0=connected, 1=disconnected
	disposed       int32

	sendCh chan *sendJob
}

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithLogger sets the charmbracelet/log logger used for this channel's
// diagnostics. The default is a logger writing nothing.
func WithLogger(l *charmlog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithHandlers registers an initial subscriber before the constructor
// returns, guaranteeing it observes every subsequent event.
func WithHandlers(h *Handlers) Option {
	return func(c *Channel) { c.subs.add(h) }
}

// NewChannel wraps an already-connected net.Conn. It starts the
// receive worker and the write worker immediately.
func NewChannel(conn net.Conn, opts ...Option) *Channel {
	c := &Channel{
		conn:   conn,
		log:    charmlog.New(io.Discard),
		metrics: nopMetrics{},
		sendCh: make(chan *sendJob, 64),
	}
	for _, o := range opts {
		o(c)
	}
	c.pump = readpump.New(conn, c.onStreamDisconnected)
	c.pump.OnPendingDepth(c.metrics.ReadPumpPending)

	c.Go(c.writeLoop)
	c.Go(c.receiveLoop)
	return c
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// AddHandlers subscribes h to this channel's events and returns a
// token for RemoveHandlers.
func (c *Channel) AddHandlers(h *Handlers) uint64 {
	return c.subs.add(h)
}

// RemoveHandlers unsubscribes a previously added Handlers set.
func (c *Channel) RemoveHandlers(id uint64) {
	c.subs.remove(id)
}

// Send assigns the next message context, serializes the message, and
// enqueues it for the single write worker to transmit in order. It
// returns the assigned context immediately; UnknownContext on
// synchronous failure.
func (c *Channel) Send(typeCode uint64, attrs *Attributes, responseContext uint64) (uint64, error) {
	if attrs == nil {
		attrs = NewAttributes()
	}
	if atomic.LoadInt32(&c.disconnected) != 0 || atomic.LoadInt32(&c.disposed) != 0 {
		err := &ChannelError{Event: MessageSendFailed, Reason: ReasonNotConnected}
		c.subs.emitError(err)
		return UnknownContext, err
	}

	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		if len(v) > math.MaxInt32 {
			err := &ChannelError{Event: MessageTooLong, Reason: ReasonSerializationOverflow}
			c.subs.emitError(err)
			return UnknownContext, err
		}
	}
	if HeaderLength+attrs.EncodedLen() > math.MaxInt32 {
		err := &ChannelError{Event: MessageSendFailed, Reason: ReasonSerializationOverflow}
		c.subs.emitError(err)
		return UnknownContext, err
	}

	ctx := atomic.AddUint64(&c.contextCounter, 1)

	buf, err := EncodeMessage(ctx, responseContext, typeCode, attrs)
	if err != nil {
		wrapped := &ChannelError{Event: MessageSendFailed, Reason: ReasonSerializationOverflow, Context: &ctx, Detail: err}
		c.subs.emitError(wrapped)
		return UnknownContext, wrapped
	}

	job := &sendJob{context: ctx, typeCode: typeCode, buf: buf}
	select {
	case c.sendCh <- job:
	case <-c.HaltCh():
		err := &ChannelError{Event: MessageSendFailed, Reason: ReasonNotConnected, Context: &ctx}
		c.subs.emitError(err)
		return UnknownContext, err
	}
	return ctx, nil
}

// Dispose marks the channel disposed, closes the underlying stream
// (unblocking any read or write in progress), stops the write worker,
// and disposes the read pump.
func (c *Channel) Dispose() {
	if !atomic.CompareAndSwapInt32(&c.disposed, 0, 1) {
		return
	}
	c.markDisconnected()
	c.conn.Close()
	c.Halt()
	c.pump.Dispose()
}

func (c *Channel) markDisconnected() bool {
	if atomic.CompareAndSwapInt32(&c.disconnected, 0, 1) {
		c.subs.emitDisconnected()
		return true
	}
	return false
}

func (c *Channel) onStreamDisconnected(err error) {
	c.log.Debug("stream disconnected", "err", err)
	c.markDisconnected()
}

func (c *Channel) writeLoop() {
	for {
		select {
		case <-c.HaltCh():
			return
		case job := <-c.sendCh:
			if _, err := c.conn.Write(job.buf); err != nil {
				c.log.Debug("write failed", "err", err)
				c.markDisconnected()
				return
			}
			c.metrics.MessageSent(job.typeCode)
			c.subs.emitSendComplete(job.context)
		}
	}
}

func (c *Channel) receiveLoop() {
	c.readHeader()
}

func (c *Channel) readHeader() {
	buf := make([]byte, HeaderLength)
	err := c.pump.BeginRead(buf, HeaderLength, func(state interface{}) {
		c.onHeader(buf)
	}, nil)
	if err != nil {
		return
	}
}

func (c *Channel) onHeader(buf []byte) {
	h, err := decodeHeader(buf)
	if err != nil {
		c.reportProtocolError(nil, err)
		c.finishFrame()
		return
	}
	payloadLen := int(h.totalLength) - HeaderLength
	if payloadLen < 0 {
		c.reportProtocolError(&h.context, ErrMalformedPayload)
		c.finishFrame()
		return
	}
	if payloadLen == 0 {
		c.deliverMessage(h, NewAttributes())
		c.finishFrame()
		return
	}

	payload := make([]byte, payloadLen)
	err = c.pump.BeginRead(payload, payloadLen, func(state interface{}) {
		c.onPayload(h, payload)
	}, nil)
	if err != nil {
		return
	}
	// The payload request is now queued behind this header completion;
	// release the pump's gate so it can be dequeued, but do not start
	// the next header read until onPayload finishes this one.
	c.pump.EndRead()
}

func (c *Channel) onPayload(h header, payload []byte) {
	attrs, err := DecodeAttributes(payload)
	if err != nil {
		c.reportProtocolError(&h.context, err)
		c.finishFrame()
		return
	}
	c.deliverMessage(h, attrs)
	c.finishFrame()
}

func (c *Channel) deliverMessage(h header, attrs *Attributes) {
	if atomic.LoadInt32(&c.disconnected) != 0 {
		return
	}
	c.metrics.MessageReceived(h.typeCode)
	c.subs.emitMessageReceived(h.context, h.typeCode, h.responseContext, attrs)
}

func (c *Channel) reportProtocolError(context *uint64, detail error) {
	c.metrics.ProtocolError()
	c.subs.emitError(&ChannelError{
		Event:  MessageReceiveFailed,
		Reason: ReasonProtocolError,
		Context: context,
		Detail: detail,
	})
}

// finishFrame acknowledges the just-delivered completion to the read
// pump and, unless the channel is disconnected or disposed, queues the
// next header read. Called once a frame is fully parsed, whether that
// took one completion (zero-length payload, or a decode error) or two
// (header then payload).
func (c *Channel) finishFrame() {
	c.pump.EndRead()
	if atomic.LoadInt32(&c.disconnected) != 0 || atomic.LoadInt32(&c.disposed) != 0 {
		return
	}
	c.readHeader()
}
