// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package listener

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nightproto/duskchan/wire"
)

func TestListenerAcceptsAndWrapsConnections(t *testing.T) {
	l, err := NewListener("127.0.0.1:0")
	require.NoError(t, err)

	accepted := make(chan *wire.Channel, 1)
	l.Start(func(ch *wire.Channel) { accepted <- ch })
	defer l.Stop()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case ch := <-accepted:
		require.NotNil(t, ch)
		ch.Dispose()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection")
	}
}

func TestListenerStopUnblocksAcceptLoop(t *testing.T) {
	l, err := NewListener("127.0.0.1:0")
	require.NoError(t, err)

	l.Start(func(ch *wire.Channel) {})

	done := make(chan error, 1)
	go func() { done <- l.Stop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; accept loop did not exit")
	}
}
