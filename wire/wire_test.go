// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttributesRoundTripEmpty(t *testing.T) {
	a := NewAttributes()
	buf, err := EncodeAttributes(nil, a)
	require.NoError(t, err)
	require.Empty(t, buf)

	decoded, err := DecodeAttributes(buf)
	require.NoError(t, err)
	require.True(t, a.Equal(decoded))
}

func TestAttributesRoundTripTwo(t *testing.T) {
	a := NewAttributes()
	a.Set("subject", []byte("hello"))
	a.Set("body", []byte("world of attributes"))

	buf, err := EncodeAttributes(nil, a)
	require.NoError(t, err)
	require.Len(t, buf, a.EncodedLen())

	decoded, err := DecodeAttributes(buf)
	require.NoError(t, err)
	require.True(t, a.Equal(decoded))
	require.Equal(t, []string{"subject", "body"}, decoded.Keys())
}

func TestAttributesRoundTripEmptyValue(t *testing.T) {
	a := NewAttributes()
	a.Set("k", []byte{})

	buf, err := EncodeAttributes(nil, a)
	require.NoError(t, err)

	decoded, err := DecodeAttributes(buf)
	require.NoError(t, err)
	v, ok := decoded.Get("k")
	require.True(t, ok)
	require.Empty(t, v)
}

func TestDecodeAttributesRejectsNegativeKeyLength(t *testing.T) {
	buf := []byte{0xff, 0xff, 0xff, 0xff}
	_, err := DecodeAttributes(buf)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAttributesRejectsNegativeValueLength(t *testing.T) {
	a := NewAttributes()
	a.Set("k", nil)
	buf, err := EncodeAttributes(nil, a)
	require.NoError(t, err)

	// Corrupt the value-length field (the 4 bytes right after the key)
	// to a negative int32.
	vlenOffset := 4 + len("k")
	buf[vlenOffset] = 0xff
	buf[vlenOffset+1] = 0xff
	buf[vlenOffset+2] = 0xff
	buf[vlenOffset+3] = 0xff

	_, err = DecodeAttributes(buf)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAttributesRejectsDuplicateKeys(t *testing.T) {
	a1 := NewAttributes()
	a1.Set("k", []byte("first"))
	buf, err := EncodeAttributes(nil, a1)
	require.NoError(t, err)

	a2 := NewAttributes()
	a2.Set("k", []byte("second"))
	buf, err = EncodeAttributes(buf, a2)
	require.NoError(t, err)

	_, err = DecodeAttributes(buf)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeAttributesRejectsTruncatedPayload(t *testing.T) {
	a := NewAttributes()
	a.Set("subject", []byte("hello"))
	buf, err := EncodeAttributes(nil, a)
	require.NoError(t, err)

	_, err = DecodeAttributes(buf[:len(buf)-2])
	require.ErrorIs(t, err, ErrMalformedPayload)
}
