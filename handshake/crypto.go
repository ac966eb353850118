// crypto.go - asymmetric wrapping and symmetric material generation.
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

package handshake

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"

	"github.com/awnumar/memguard"
	"github.com/fxamacker/cbor/v2"
)

// RSAKeyBits is the modulus size used for every inbound keypair.
const RSAKeyBits = 3072

// AESKeySize and AESIVSize are the generated symmetric material's sizes:
// a 256-bit key and a 128-bit (one AES block) IV.
const (
	AESKeySize = 32
	AESIVSize  = 16
)

// publicKeyBlob is the portable, CBOR-encoded form of an RSA public key
// carried in a handshake message's "R" attribute.
type publicKeyBlob struct {
	N []byte `cbor:"n"`
	E int    `cbor:"e"`
}

func encodePublicKey(pub *rsa.PublicKey) ([]byte, error) {
	blob := publicKeyBlob{N: pub.N.Bytes(), E: pub.E}
	return cbor.Marshal(blob)
}

func decodePublicKey(buf []byte) (*rsa.PublicKey, error) {
	var blob publicKeyBlob
	if err := cbor.Unmarshal(buf, &blob); err != nil {
		return nil, ErrFormatError
	}
	if len(blob.N) == 0 || blob.E == 0 {
		return nil, ErrFormatError
	}
	n := new(big.Int).SetBytes(blob.N)
	return &rsa.PublicKey{N: n, E: blob.E}, nil
}

func generateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, RSAKeyBits)
}

// generateSymmetric returns fresh, memguard-locked key and IV buffers.
// The plaintext slices memguard copies from are wiped as part of the
// NewBufferFromBytes call, following ratchet.go's construction idiom.
func generateSymmetric() (key, iv *memguard.LockedBuffer, err error) {
	keyBuf := make([]byte, AESKeySize)
	if _, err = rand.Read(keyBuf); err != nil {
		return nil, nil, err
	}
	ivBuf := make([]byte, AESIVSize)
	if _, err = rand.Read(ivBuf); err != nil {
		return nil, nil, err
	}
	return memguard.NewBufferFromBytes(keyBuf), memguard.NewBufferFromBytes(ivBuf), nil
}

func oaepEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
}

func oaepDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
}
