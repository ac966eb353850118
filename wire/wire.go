// wire.go - wire protocol constants and attribute codec.
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

// Package wire frames and deframes the duskchan message channel wire
// format: a fixed 29-byte header (start byte, total length, message
// context, response context, type code) followed by a sequence of
// length-prefixed (key, value) attribute records. It layers this
// framing over readpump.Pump for reads and writes directly to the
// stream, following the shape of client2/connection.go's wire.Session
// usage in the teacher codebase (a per-connection object that sends
// typed commands and dispatches typed events from a receive loop).
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	// StartByte marks the beginning of every framed message.
	StartByte byte = 0x47

	// HeaderLength is the fixed size, in bytes, of a message header:
	// start byte (1) + total length (4) + message context (8) +
	// response context (8) + type code (8).
	HeaderLength = 1 + 4 + 8 + 8 + 8

	// UnknownContext is the sentinel response-context meaning "this
	// message is not a reply to anything". It is never a valid
	// message-context.
	UnknownContext uint64 = 1<<64 - 1

	// RSAType is the handshake message carrying the initiator's RSA
	// public key.
	RSAType uint64 = 4391

	// AESType is the handshake message carrying the wrapped AES
	// key/IV.
	AESType uint64 = 4392

	// SecureType is the inner type code used for every message sent
	// through a securechan.Channel.
	SecureType uint64 = 7919
)

// Reserved attribute names used by the handshake and secure channel
// layers. Applications may use any other attribute name.
const (
	AttrRSAPublicKey = "R"
	AttrAESIV        = "V"
	AttrAESKey       = "K"
	AttrSecurePayload = "M"
)

var (
	// ErrAttributeTooLong is returned by EncodeAttributes when a value's
	// length does not fit in a signed 32-bit integer.
	ErrAttributeTooLong = errors.New("wire: attribute value exceeds int32 length")

	// ErrMalformedPayload is returned by DecodeAttributes on any
	// truncated record or a negative declared length.
	ErrMalformedPayload = errors.New("wire: malformed attribute payload")

	// ErrBadStartByte is returned when a decoded header's start byte
	// does not equal StartByte.
	ErrBadStartByte = errors.New("wire: unexpected start byte")
)

// Attributes is an ordered set of unique ASCII-keyed byte-string
// attributes. Encode/Decode preserve insertion order, though the wire
// format does not require it.
type Attributes struct {
	keys   []string
	values map[string][]byte
}

// NewAttributes returns an empty, ready to use Attributes set.
func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string][]byte)}
}

// Set assigns value to key, preserving first-insertion order for keys
// that did not already exist.
func (a *Attributes) Set(key string, value []byte) {
	if a.values == nil {
		a.values = make(map[string][]byte)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key and whether it was present.
func (a *Attributes) Get(key string) ([]byte, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.keys)
}

// Keys returns the attribute keys in insertion order. The returned
// slice must not be mutated.
func (a *Attributes) Keys() []string {
	return a.keys
}

// Equal reports whether a and b hold the same key/value pairs,
// irrespective of order.
func (a *Attributes) Equal(b *Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	for k, v := range a.values {
		bv, ok := b.values[k]
		if !ok || len(bv) != len(v) {
			return false
		}
		for i := range v {
			if v[i] != bv[i] {
				return false
			}
		}
	}
	return true
}

// EncodedLen returns the number of bytes EncodeAttributes would
// produce for a.
func (a *Attributes) EncodedLen() int {
	n := 0
	for _, k := range a.keys {
		n += 4 + len(k) + 4 + len(a.values[k])
	}
	return n
}

// EncodeAttributes appends the §3 wire representation of a to dst and
// returns the extended slice.
func EncodeAttributes(dst []byte, a *Attributes) ([]byte, error) {
	for _, k := range a.keys {
		v := a.values[k]
		if len(v) > 1<<31-1 {
			return nil, ErrAttributeTooLong
		}
		var lbuf [4]byte

		binary.LittleEndian.PutUint32(lbuf[:], uint32(len(k)))
		dst = append(dst, lbuf[:]...)
		dst = append(dst, k...)

		binary.LittleEndian.PutUint32(lbuf[:], uint32(len(v)))
		dst = append(dst, lbuf[:]...)
		dst = append(dst, v...)
	}
	return dst, nil
}

// DecodeAttributes parses the §3 wire representation of an attribute
// sequence from buf, which must contain exactly the payload bytes (no
// trailing data).
func DecodeAttributes(buf []byte) (*Attributes, error) {
	a := NewAttributes()
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, ErrMalformedPayload
		}
		klen := int32(binary.LittleEndian.Uint32(buf[:4]))
		buf = buf[4:]
		if klen < 0 || int(klen) > len(buf) {
			return nil, ErrMalformedPayload
		}
		key := string(buf[:klen])
		buf = buf[klen:]

		if len(buf) < 4 {
			return nil, ErrMalformedPayload
		}
		vlen := int32(binary.LittleEndian.Uint32(buf[:4]))
		buf = buf[4:]
		if vlen < 0 || int(vlen) > len(buf) {
			return nil, ErrMalformedPayload
		}
		value := make([]byte, vlen)
		copy(value, buf[:vlen])
		buf = buf[vlen:]

		if _, dup := a.Get(key); dup {
			return nil, ErrMalformedPayload
		}
		a.Set(key, value)
	}
	return a, nil
}
