// events.go - secure channel event subscription.
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

package securechan

import (
	"sync"

	"github.com/nightproto/duskchan/wire"
)

// Handlers is one subscriber's set of event callbacks. Any field may be
// left nil to ignore that event.
type Handlers struct {
	MessageReceived func(context uint64, attrs *wire.Attributes)
	Errored         func(err *Error)
	Disconnected    func()
}

type subscription struct {
	id uint64
	h  *Handlers
}

type subscribers struct {
	mu   sync.Mutex
	next uint64
	items []subscription
}

func (s *subscribers) add(h *Handlers) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	next := make([]subscription, len(s.items), len(s.items)+1)
	copy(next, s.items)
	s.items = append(next, subscription{id: id, h: h})
	return id
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]subscription, 0, len(s.items))
	for _, sub := range s.items {
		if sub.id != id {
			next = append(next, sub)
		}
	}
	s.items = next
}

func (s *subscribers) snapshot() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

func (s *subscribers) emitMessageReceived(context uint64, attrs *wire.Attributes) {
	for _, sub := range s.snapshot() {
		if sub.h.MessageReceived != nil {
			sub.h.MessageReceived(context, attrs)
		}
	}
}

func (s *subscribers) emitErrored(err *Error) {
	for _, sub := range s.snapshot() {
		if sub.h.Errored != nil {
			sub.h.Errored(err)
		}
	}
}

func (s *subscribers) emitDisconnected() {
	for _, sub := range s.snapshot() {
		if sub.h.Disconnected != nil {
			sub.h.Disconnected()
		}
	}
}
