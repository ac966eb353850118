// listener.go - TCP accept loop producing one wire.Channel per connection.
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

// Package listener accepts raw TCP connections and hands each one to
// the application as a plaintext wire.Channel. Its accept-loop shape —
// a single worker goroutine calling Accept in a loop, logging and
// wrapping each connection, with Stop closing the listener to unblock
// Accept — follows server/cborplugin's connection server in the
// teacher codebase.
package listener

import (
	"net"

	logging "gopkg.in/op/go-logging.v1"

	ilog "github.com/nightproto/duskchan/internal/log"
	"github.com/nightproto/duskchan/internal/worker"
	"github.com/nightproto/duskchan/wire"
)

// Option configures a Listener at construction time.
type Option func(*Listener)

// WithLogBackend sets the internal/log backend used for diagnostics.
func WithLogBackend(b *ilog.Backend) Option {
	return func(l *Listener) { l.log = b.GetLogger("listener") }
}

// WithChannelOptions passes through options applied to every accepted
// connection's wire.Channel (e.g. wire.WithMetrics).
func WithChannelOptions(opts ...wire.Option) Option {
	return func(l *Listener) { l.chanOpts = opts }
}

// Listener accepts connections on a net.Listener and constructs one
// wire.Channel per accepted connection.
type Listener struct {
	worker.Worker

	ln       net.Listener
	log      *logging.Logger
	chanOpts []wire.Option
}

// NewListener opens a TCP listener on addr. It does not start
// accepting until Start is called.
func NewListener(addr string, opts ...Option) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = ilog.NewNop().GetLogger("listener")
	}
	return l, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Start runs the accept loop; onAccept is invoked on its own goroutine
// for each accepted connection so one slow handler cannot stall the
// accept loop.
func (l *Listener) Start(onAccept func(*wire.Channel)) {
	l.Go(func() { l.acceptLoop(onAccept) })
}

// Stop closes the underlying net.Listener, which unblocks Accept with
// an error the accept loop treats as its halt signal, then waits for
// the accept loop to exit.
func (l *Listener) Stop() error {
	err := l.ln.Close()
	l.Halt()
	return err
}

func (l *Listener) acceptLoop(onAccept func(*wire.Channel)) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.HaltCh():
				return
			default:
				l.log.Warningf("accept failed: %v", err)
				return
			}
		}
		l.log.Debugf("accepted connection from %v", conn.RemoteAddr())
		ch := wire.NewChannel(conn, l.chanOpts...)
		go onAccept(ch)
	}
}
