// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	h := header{
		totalLength:     HeaderLength + 10,
		context:         42,
		responseContext: UnknownContext,
		typeCode:        7919,
	}
	buf := make([]byte, HeaderLength)
	encodeHeader(buf, h)

	decoded, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestDecodeHeaderRejectsBadStartByte(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf[0] = 0x00
	_, err := decodeHeader(buf)
	require.ErrorIs(t, err, ErrBadStartByte)
}

func TestEncodeMessageZeroAttributes(t *testing.T) {
	buf, err := EncodeMessage(1, UnknownContext, RSAType, nil)
	require.NoError(t, err)
	require.Len(t, buf, HeaderLength)
	require.Equal(t, StartByte, buf[0])

	h, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, int32(HeaderLength), h.totalLength)
	require.Equal(t, uint64(1), h.context)
	require.Equal(t, UnknownContext, h.responseContext)
	require.Equal(t, RSAType, h.typeCode)
}

func TestEncodeMessageWithAttributes(t *testing.T) {
	attrs := NewAttributes()
	attrs.Set("a", []byte("1"))
	attrs.Set("b", []byte("22"))

	buf, err := EncodeMessage(7, 3, SecureType, attrs)
	require.NoError(t, err)

	h, err := decodeHeader(buf[:HeaderLength])
	require.NoError(t, err)
	require.Equal(t, int32(len(buf)), h.totalLength)
	require.Equal(t, uint64(7), h.context)
	require.Equal(t, uint64(3), h.responseContext)
	require.Equal(t, SecureType, h.typeCode)

	decoded, err := DecodeAttributes(buf[HeaderLength:])
	require.NoError(t, err)
	require.True(t, attrs.Equal(decoded))
}
