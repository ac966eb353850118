// message.go - message header framing.
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

import "encoding/binary"

// header is the fixed-size, decoded form of a message's 29-byte prefix.
type header struct {
	totalLength     int32
	context         uint64
	responseContext uint64
	typeCode        uint64
}

// encodeHeader writes a complete header into dst, which must be at
// least HeaderLength bytes.
func encodeHeader(dst []byte, h header) {
	dst[0] = StartByte
	binary.LittleEndian.PutUint32(dst[1:5], uint32(h.totalLength))
	binary.LittleEndian.PutUint64(dst[5:13], h.context)
	binary.LittleEndian.PutUint64(dst[13:21], h.responseContext)
	binary.LittleEndian.PutUint64(dst[21:29], h.typeCode)
}

// decodeHeader parses exactly HeaderLength bytes into a header,
// validating the start byte.
func decodeHeader(buf []byte) (header, error) {
	if buf[0] != StartByte {
		return header{}, ErrBadStartByte
	}
	return header{
		totalLength:     int32(binary.LittleEndian.Uint32(buf[1:5])),
		context:         binary.LittleEndian.Uint64(buf[5:13]),
		responseContext: binary.LittleEndian.Uint64(buf[13:21]),
		typeCode:        binary.LittleEndian.Uint64(buf[21:29]),
	}, nil
}

// EncodeMessage serializes a complete framed message: header followed
// by the §3 attribute payload.
func EncodeMessage(context, responseContext, typeCode uint64, attrs *Attributes) ([]byte, error) {
	if attrs == nil {
		attrs = NewAttributes()
	}
	payloadLen := attrs.EncodedLen()
	total := HeaderLength + payloadLen
	buf := make([]byte, HeaderLength, total)
	encodeHeader(buf, header{
		totalLength:     int32(total),
		context:         context,
		responseContext: responseContext,
		typeCode:        typeCode,
	})
	buf, err := EncodeAttributes(buf, attrs)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
