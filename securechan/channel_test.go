// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package securechan

import (
	"net"
	"testing"
	"time"

	"github.com/awnumar/memguard"
	"github.com/stretchr/testify/require"

	"github.com/nightproto/duskchan/wire"
)

func newCrossedPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	connA, connB := net.Pipe()
	wireA := wire.NewChannel(connA)
	wireB := wire.NewChannel(connB)

	aOutKey := memguard.NewBufferFromBytes([]byte("0123456789abcdef0123456789abcdef"[:32]))
	aOutIV := memguard.NewBufferFromBytes([]byte("aaaaaaaaaaaaaaaa"[:16]))
	bOutKey := memguard.NewBufferFromBytes([]byte("fedcba9876543210fedcba9876543210"[:32]))
	bOutIV := memguard.NewBufferFromBytes([]byte("bbbbbbbbbbbbbbbb"[:16]))

	// A's outbound material is B's inbound, and vice versa, matching
	// what a completed handshake would produce.
	a := NewChannel(wireA, aOutKey, aOutIV, dup(t, bOutKey), dup(t, bOutIV))
	b := NewChannel(wireB, bOutKey, bOutIV, dup(t, aOutKey), dup(t, aOutIV))
	return a, b
}

func dup(t *testing.T, b *memguard.LockedBuffer) *memguard.LockedBuffer {
	t.Helper()
	return memguard.NewBufferFromBytes(append([]byte(nil), b.Bytes()...))
}

func TestSecureChannelRoundTrip(t *testing.T) {
	a, b := newCrossedPair(t)
	defer a.Dispose()
	defer b.Dispose()

	received := make(chan *wire.Attributes, 1)
	b.AddHandlers(&Handlers{
		MessageReceived: func(context uint64, attrs *wire.Attributes) {
			received <- attrs
		},
	})

	attrs := wire.NewAttributes()
	attrs.Set("hello", []byte("world"))
	_, err := a.Send(attrs)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.True(t, attrs.Equal(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for secure message")
	}
}

func TestSecureChannelRejectsWrongTypeCode(t *testing.T) {
	a, b := newCrossedPair(t)
	defer a.Dispose()
	defer b.Dispose()

	errs := make(chan *Error, 1)
	b.AddHandlers(&Handlers{
		Errored: func(err *Error) { errs <- err },
	})

	outer := wire.NewAttributes()
	outer.Set(wire.AttrSecurePayload, []byte("not really ciphertext"))
	_, err := a.ch.Send(1234, outer, wire.UnknownContext)
	require.NoError(t, err)

	select {
	case got := <-errs:
		require.Equal(t, FormatError, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for format error")
	}
}

func TestSecureChannelRejectsBadCiphertext(t *testing.T) {
	a, b := newCrossedPair(t)
	defer a.Dispose()
	defer b.Dispose()

	errs := make(chan *Error, 1)
	b.AddHandlers(&Handlers{
		Errored: func(err *Error) { errs <- err },
	})

	outer := wire.NewAttributes()
	// Not a multiple of the AES block size: decryptCBC must reject this
	// deterministically before it decrypts any block.
	outer.Set(wire.AttrSecurePayload, []byte("0123456789abcdef0"))
	_, err := a.ch.Send(wire.SecureType, outer, wire.UnknownContext)
	require.NoError(t, err)

	select {
	case got := <-errs:
		require.Equal(t, CryptographyError, got.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cryptography error")
	}
}
