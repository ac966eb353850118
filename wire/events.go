// events.go - message channel event subscription.
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

import "sync"

// Handlers is one subscriber's set of event callbacks. Any field may be
// left nil to ignore that event. Callbacks run inline on the goroutine
// that produced the event: the read pump's worker for received messages
// and protocol errors, the write worker for send completions, and the
// calling goroutine for Send failures and Dispose. A slow handler delays
// that goroutine.
type Handlers struct {
	MessageReceived     func(context, typeCode, responseContext uint64, attrs *Attributes)
	MessageSendComplete func(context uint64)
	Error               func(err *ChannelError)
	Disconnected        func()
}

type subscription struct {
	id uint64
	h  *Handlers
}

// subscribers is an append-only-on-write pub/sub list: mutation copies
// the backing slice so dispatch never holds mu while running
// callbacks, and RemoveHandlers never blocks on a publishing worker.
type subscribers struct {
	mu    sync.Mutex
	next  uint64
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

func (s *subscribers) emitMessageReceived(context, typeCode, responseContext uint64, attrs *Attributes) {
	for _, sub := range s.snapshot() {
		if sub.h.MessageReceived != nil {
			sub.h.MessageReceived(context, typeCode, responseContext, attrs)
		}
	}
}

func (s *subscribers) emitSendComplete(context uint64) {
	for _, sub := range s.snapshot() {
		if sub.h.MessageSendComplete != nil {
			sub.h.MessageSendComplete(context)
		}
	}
}

func (s *subscribers) emitError(err *ChannelError) {
	for _, sub := range s.snapshot() {
		if sub.h.Error != nil {
			sub.h.Error(err)
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
