// channel.go - per-direction AES-CBC overlay on a wire.Channel.
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

// Package securechan wraps a wire.Channel with per-direction AES-CBC
// encryption, ISO10126 padding, negotiated once by the handshake
// package and never rotated. Outer framing (type-code, contexts) stays
// plaintext; only the attribute payload is encrypted, carried as the
// single "M" attribute of a type-7919 message.
package securechan

import (
	"io"
	"sync/atomic"

	"github.com/awnumar/memguard"
	charmlog "github.com/charmbracelet/log"

	"github.com/nightproto/duskchan/wire"
)

// Option configures a Channel at construction time.
type Option func(*Channel)

// WithLogger sets the charmbracelet/log logger used for diagnostics.
func WithLogger(l *charmlog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// WithHandlers registers an initial subscriber before the constructor
// returns.
func WithHandlers(h *Handlers) Option {
	return func(c *Channel) { c.subs.add(h) }
}

// Channel is a Message Channel wrapped with per-direction symmetric
// encryption. It owns the underlying wire.Channel and disposes it on
// its own Dispose.
type Channel struct {
	ch  *wire.Channel
	log *charmlog.Logger

	outboundKey, outboundIV *memguard.LockedBuffer
	inboundKey, inboundIV   *memguard.LockedBuffer

	subs subscribers
	subID uint64

	disposed int32
}

// NewChannel wraps ch, taking ownership of it, with the four pieces of
// key material negotiated by a prior handshake. It never rotates them.
func NewChannel(ch *wire.Channel, outboundKey, outboundIV, inboundKey, inboundIV *memguard.LockedBuffer, opts ...Option) *Channel {
	c := &Channel{
		ch:          ch,
		log:         charmlog.New(io.Discard),
		outboundKey: outboundKey,
		outboundIV:  outboundIV,
		inboundKey:  inboundKey,
		inboundIV:   inboundIV,
	}
	for _, o := range opts {
		o(c)
	}
	c.subID = ch.AddHandlers(&wire.Handlers{
		MessageReceived: c.onMessage,
		Disconnected:    c.onDisconnected,
		Error:           c.onChannelError,
	})
	return c
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

// Fingerprints returns sha256(key‖iv) of each direction's negotiated
// material, for an audit trail that must never see the material
// itself (see the ledger package).
func (c *Channel) Fingerprints() (outbound, inbound [32]byte) {
	outbound = fingerprint(c.outboundKey.Bytes(), c.outboundIV.Bytes())
	inbound = fingerprint(c.inboundKey.Bytes(), c.inboundIV.Bytes())
	return outbound, inbound
}

// Send encrypts attrs under the outbound cipher and transmits them as
// the single "M" attribute of a type-7919 message, returning the
// assigned outer message-context.
func (c *Channel) Send(attrs *wire.Attributes) (uint64, error) {
	if attrs == nil {
		attrs = wire.NewAttributes()
	}
	plain, err := wire.EncodeAttributes(nil, attrs)
	if err != nil {
		return wire.UnknownContext, err
	}
	ciphertext, err := encryptCBC(c.outboundKey.Bytes(), c.outboundIV.Bytes(), plain)
	if err != nil {
		return wire.UnknownContext, err
	}

	outer := wire.NewAttributes()
	outer.Set(wire.AttrSecurePayload, ciphertext)
	return c.ch.Send(wire.SecureType, outer, wire.UnknownContext)
}

// Dispose disposes the underlying wire.Channel and destroys the key
// material this channel was constructed with.
func (c *Channel) Dispose() {
	if !atomic.CompareAndSwapInt32(&c.disposed, 0, 1) {
		return
	}
	c.ch.RemoveHandlers(c.subID)
	c.ch.Dispose()
	c.outboundKey.Destroy()
	c.outboundIV.Destroy()
	c.inboundKey.Destroy()
	c.inboundIV.Destroy()
}

func (c *Channel) onMessage(context, typeCode, responseContext uint64, attrs *wire.Attributes) {
	if typeCode != wire.SecureType || attrs.Len() != 1 {
		c.subs.emitErrored(&Error{Kind: FormatError, Context: &context})
		return
	}
	ciphertext, ok := attrs.Get(wire.AttrSecurePayload)
	if !ok {
		c.subs.emitErrored(&Error{Kind: FormatError, Context: &context})
		return
	}

	plain, err := decryptCBC(c.inboundKey.Bytes(), c.inboundIV.Bytes(), ciphertext)
	if err != nil {
		c.subs.emitErrored(&Error{Kind: CryptographyError, Context: &context, Detail: err})
		return
	}

	inner, err := wire.DecodeAttributes(plain)
	if err != nil {
		c.subs.emitErrored(&Error{Kind: FormatError, Context: &context, Detail: err})
		return
	}
	c.subs.emitMessageReceived(context, inner)
}

func (c *Channel) onDisconnected() {
	c.subs.emitDisconnected()
}

func (c *Channel) onChannelError(err *wire.ChannelError) {
	c.subs.emitErrored(&Error{Kind: Unknown, Context: err.Context, Detail: err})
}
