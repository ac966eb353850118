// backend.go - server-facing logging backend.
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

// Package log is a thin Backend over gopkg.in/op/go-logging.v1, in the
// shape server/cborplugin/client.go expects of it
// (logBackend.GetLogger(name) *logging.Logger). The listener package
// uses this backend; the client-facing packages (wire, handshake,
// securechan) use charmbracelet/log directly instead, matching the
// split already present between the teacher's client2 and
// server/cborplugin packages.
package log

import (
	"io"
	"os"

	logging "gopkg.in/op/go-logging.v1"
)

// Backend mints named *logging.Logger instances that all share one
// format and output destination.
type Backend struct {
	backend logging.LeveledBackend
}

// New creates a Backend writing to w at the given level ("DEBUG",
// "INFO", "WARNING", "ERROR", "CRITICAL"). An empty level defaults to
// "INFO". A nil w defaults to os.Stderr.
func New(w io.Writer, level string) (*Backend, error) {
	if w == nil {
		w = os.Stderr
	}
	if level == "" {
		level = "INFO"
	}
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return nil, err
	}
	format := logging.MustStringFormatter(
		"%{time:2006-01-02 15:04:05.000} %{level:.4s} %{module}: %{message}",
	)
	base := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(base, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")
	return &Backend{backend: leveled}, nil
}

// NewNop returns a Backend that discards everything, used as the
// default when a caller does not supply one.
func NewNop() *Backend {
	b, err := New(io.Discard, "CRITICAL")
	if err != nil {
		panic(err)
	}
	return b
}

// GetLogger returns a named logger bound to this backend.
func (b *Backend) GetLogger(name string) *logging.Logger {
	l := logging.MustGetLogger(name)
	l.SetBackend(b.backend)
	return l
}
