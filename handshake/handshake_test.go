// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package handshake

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightproto/duskchan/securechan"
	"github.com/nightproto/duskchan/wire"
)

func TestHandshakeSucceeds(t *testing.T) {
	connA, connB := net.Pipe()
	wireA := wire.NewChannel(connA)
	wireB := wire.NewChannel(connB)

	aDone := make(chan *securechan.Channel, 1)
	bDone := make(chan *securechan.Channel, 1)
	aErr := make(chan *Error, 1)
	bErr := make(chan *Error, 1)

	a, err := New(wireA, WithHandlers(Handlers{
		Completed: func(sc *securechan.Channel) { aDone <- sc },
		Errored:   func(e *Error) { aErr <- e },
	}))
	require.NoError(t, err)

	b, err := New(wireB, WithHandlers(Handlers{
		Completed: func(sc *securechan.Channel) { bDone <- sc },
		Errored:   func(e *Error) { bErr <- e },
	}))
	require.NoError(t, err)

	// Both sides must initiate: each endpoint's outbound-complete signal
	// depends on receiving the peer's RSA_TYPE message, which only
	// happens if the peer also calls Initiate.
	require.NoError(t, a.Initiate())
	require.NoError(t, b.Initiate())

	var aSC, bSC *securechan.Channel
	for aSC == nil || bSC == nil {
		select {
		case aSC = <-aDone:
		case bSC = <-bDone:
		case e := <-aErr:
			t.Fatalf("A errored: %v", e)
		case e := <-bErr:
			t.Fatalf("B errored: %v", e)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for handshake completion")
		}
	}
	defer aSC.Dispose()
	defer bSC.Dispose()

	received := make(chan *wire.Attributes, 1)
	bSC.AddHandlers(&securechan.Handlers{
		MessageReceived: func(context uint64, attrs *wire.Attributes) {
			received <- attrs
		},
	})

	attrs := wire.NewAttributes()
	attrs.Set("hello", []byte("world"))
	_, err = aSC.Send(attrs)
	require.NoError(t, err)

	select {
	case got := <-received:
		require.True(t, attrs.Equal(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for secure round trip")
	}
}

func TestHandshakeFailsOnMalformedRSAMessage(t *testing.T) {
	connA, connB := net.Pipe()
	wireA := wire.NewChannel(connA)
	wireB := wire.NewChannel(connB)
	defer wireA.Dispose()
	defer wireB.Dispose()

	bErr := make(chan *Error, 1)
	_, err := New(wireB, WithHandlers(Handlers{
		Errored: func(e *Error) { bErr <- e },
	}))
	require.NoError(t, err)

	bad := wire.NewAttributes()
	bad.Set(wire.AttrRSAPublicKey, []byte("not a key"))
	bad.Set("extra", []byte("x"))
	_, err = wireA.Send(wire.RSAType, bad, wire.UnknownContext)
	require.NoError(t, err)

	select {
	case e := <-bErr:
		require.Equal(t, ReasonFormatError, e.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for format error")
	}
}
