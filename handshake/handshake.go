// handshake.go - two-message, two-direction RSA/AES key exchange.
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

// Package handshake runs the RSA-wrapped AES key exchange over a
// plaintext wire.Channel and hands off a ready securechan.Channel. Its
// shape (construct over an already-open channel, subscribe handlers,
// drive a small completion state machine, dispose itself once done)
// follows client2/connection.go's handshake/registration bootstrap in
// the teacher codebase; the completion rendezvous itself is built on
// golang.org/x/sync/errgroup rather than a hand-rolled countdown latch.
package handshake

import (
	"context"
	"crypto/rsa"
	"io"
	"sync"

	"github.com/awnumar/memguard"
	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nightproto/duskchan/securechan"
	"github.com/nightproto/duskchan/wire"
)

// Handlers is the event set a Handshaker reports to. Completed carries
// the ready secure channel; Errored reports any terminal failure. At
// most one of the two ever fires, exactly once.
type Handlers struct {
	Completed func(sc *securechan.Channel)
	Errored   func(err *Error)
}

// Option configures a Handshaker at construction time.
type Option func(*Handshaker)

// WithLogger sets the charmbracelet/log logger used for diagnostics.
func WithLogger(l *charmlog.Logger) Option {
	return func(h *Handshaker) { h.log = l }
}

// WithHandlers sets the event sink. Required in practice; without it a
// Handshaker completes or fails silently.
func WithHandlers(handlers Handlers) Option {
	return func(h *Handshaker) { h.handlers = handlers }
}

// Handshaker runs one handshake to completion over ch and then becomes
// disposable. It is not reusable.
type Handshaker struct {
	ch  *wire.Channel
	log *charmlog.Logger

	handlers Handlers

	priv        *rsa.PrivateKey
	outboundPub *rsa.PublicKey // peer's public key, learned on RSA_TYPE receipt

	outboundKey, outboundIV *memguard.LockedBuffer // generated locally
	inboundKey, inboundIV   *memguard.LockedBuffer // received, decrypted

	outboundDone chan struct{}
	inboundDone  chan struct{}
	abort        chan struct{}

	subID uint64

	failMu  sync.Mutex
	failure *Error

	disposeOnce sync.Once
	abortOnce   sync.Once
}

// New generates a fresh inbound keypair and outbound symmetric material,
// subscribes to ch's events, and starts the completion rendezvous. It
// does not send anything until Initiate is called.
func New(ch *wire.Channel, opts ...Option) (*Handshaker, error) {
	priv, err := generateKeyPair()
	if err != nil {
		return nil, err
	}
	outboundKey, outboundIV, err := generateSymmetric()
	if err != nil {
		return nil, err
	}

	h := &Handshaker{
		ch:           ch,
		log:          charmlog.New(io.Discard),
		priv:         priv,
		outboundKey:  outboundKey,
		outboundIV:   outboundIV,
		outboundDone: make(chan struct{}),
		inboundDone:  make(chan struct{}),
		abort:        make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}

	h.subID = ch.AddHandlers(&wire.Handlers{
		MessageReceived: h.onMessage,
		Disconnected:    h.onDisconnected,
		Error:           h.onChannelError,
	})

	go h.rendezvous()
	return h, nil
}

// Initiate sends the local public key as an RSA_TYPE handshake message,
// starting the exchange from this side. Both endpoints must call
// Initiate for the handshake to complete: each side's inbound-complete
// signal fires only once it receives the peer's AES_TYPE reply, which
// the peer sends only after receiving this side's RSA_TYPE message.
func (h *Handshaker) Initiate() error {
	blob, err := encodePublicKey(&h.priv.PublicKey)
	if err != nil {
		h.fail(ReasonFormatError, err)
		return err
	}
	attrs := wire.NewAttributes()
	attrs.Set(wire.AttrRSAPublicKey, blob)
	_, err = h.ch.Send(wire.RSAType, attrs, wire.UnknownContext)
	if err != nil {
		h.fail(ReasonChannelError, err)
		return err
	}
	return nil
}

func (h *Handshaker) onMessage(context, typeCode, responseContext uint64, attrs *wire.Attributes) {
	switch typeCode {
	case wire.RSAType:
		h.onRSAMessage(attrs)
	case wire.AESType:
		h.onAESMessage(attrs)
	default:
		// Not a handshake message; ignore. The application's own
		// handlers (added after HandshakeCompleted) see post-handshake
		// traffic, not this one.
	}
}

func (h *Handshaker) onRSAMessage(attrs *wire.Attributes) {
	if attrs.Len() != 1 {
		h.fail(ReasonFormatError, ErrFormatError)
		return
	}
	blob, ok := attrs.Get(wire.AttrRSAPublicKey)
	if !ok {
		h.fail(ReasonFormatError, ErrFormatError)
		return
	}
	pub, err := decodePublicKey(blob)
	if err != nil {
		h.fail(ReasonFormatError, err)
		return
	}
	h.outboundPub = pub

	encKey, err := oaepEncrypt(pub, h.outboundKey.Bytes())
	if err != nil {
		h.fail(ReasonRSADecryptionFailed, err)
		return
	}
	encIV, err := oaepEncrypt(pub, h.outboundIV.Bytes())
	if err != nil {
		h.fail(ReasonRSADecryptionFailed, err)
		return
	}

	reply := wire.NewAttributes()
	reply.Set(wire.AttrAESIV, encIV)
	reply.Set(wire.AttrAESKey, encKey)
	if _, err := h.ch.Send(wire.AESType, reply, wire.UnknownContext); err != nil {
		h.fail(ReasonChannelError, err)
		return
	}
	close(h.outboundDone)
}

func (h *Handshaker) onAESMessage(attrs *wire.Attributes) {
	if attrs.Len() != 2 {
		h.fail(ReasonFormatError, ErrFormatError)
		return
	}
	encIV, ok := attrs.Get(wire.AttrAESIV)
	if !ok {
		h.fail(ReasonFormatError, ErrFormatError)
		return
	}
	encKey, ok := attrs.Get(wire.AttrAESKey)
	if !ok {
		h.fail(ReasonFormatError, ErrFormatError)
		return
	}

	key, err := oaepDecrypt(h.priv, encKey)
	if err != nil {
		h.fail(ReasonRSADecryptionFailed, err)
		return
	}
	iv, err := oaepDecrypt(h.priv, encIV)
	if err != nil {
		h.fail(ReasonRSADecryptionFailed, err)
		return
	}
	h.inboundKey = memguard.NewBufferFromBytes(key)
	h.inboundIV = memguard.NewBufferFromBytes(iv)
	close(h.inboundDone)
}

// Dispose aborts an in-progress handshake, waking the rendezvous so it
// reports an error and releases the key material it generated. It is a
// no-op once the handshake has already completed or failed.
func (h *Handshaker) Dispose() {
	h.fail(ReasonChannelDisconnected, nil)
}

func (h *Handshaker) onDisconnected() {
	h.fail(ReasonChannelDisconnected, nil)
}

func (h *Handshaker) onChannelError(err *wire.ChannelError) {
	h.fail(ReasonChannelError, err)
}

// fail records the first failure reason and aborts the rendezvous. Only
// the first call has any effect; a handshake fails for exactly one
// reason.
func (h *Handshaker) fail(reason Reason, detail error) {
	h.failMu.Lock()
	if h.failure == nil {
		h.failure = &Error{Reason: reason, Detail: detail}
	}
	h.failMu.Unlock()
	h.abortOnce.Do(func() { close(h.abort) })
}

// rendezvous is the coordinator: it joins the outbound- and
// inbound-complete signals (or the abort signal) via errgroup, then
// either constructs the secure channel and fires Completed, or fires
// Errored with the recorded failure.
func (h *Handshaker) rendezvous() {
	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		select {
		case <-h.outboundDone:
			return nil
		case <-h.abort:
			return errAborted
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		select {
		case <-h.inboundDone:
			return nil
		case <-h.abort:
			return errAborted
		case <-gctx.Done():
			return nil
		}
	})

	err := g.Wait()

	h.ch.RemoveHandlers(h.subID)

	h.failMu.Lock()
	failure := h.failure
	h.failMu.Unlock()

	if err != nil || failure != nil {
		if failure == nil {
			failure = &Error{Reason: ReasonChannelError, Detail: err}
		}
		h.destroyMaterial()
		if h.handlers.Errored != nil {
			h.handlers.Errored(failure)
		}
		return
	}

	sc := securechan.NewChannel(h.ch, h.outboundKey, h.outboundIV, h.inboundKey, h.inboundIV,
		securechan.WithLogger(h.log))
	if h.handlers.Completed != nil {
		h.handlers.Completed(sc)
	}
}

func (h *Handshaker) destroyMaterial() {
	h.disposeOnce.Do(func() {
		h.outboundKey.Destroy()
		h.outboundIV.Destroy()
		if h.inboundKey != nil {
			h.inboundKey.Destroy()
		}
		if h.inboundIV != nil {
			h.inboundIV.Destroy()
		}
	})
}

var errAborted = &abortError{}

type abortError struct{}

func (*abortError) Error() string { return "handshake: aborted" }
