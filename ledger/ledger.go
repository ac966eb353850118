// ledger.go - bbolt-backed handshake completion audit trail.
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

// Package ledger records a fingerprint of every completed handshake to
// a local bbolt database, so an operator can later confirm a given
// connection negotiated distinct key material without the ledger ever
// holding the material itself.
package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
)

// Fingerprint returns sha256(key‖iv), the only derivative of a
// direction's key material the ledger ever stores.
func Fingerprint(key, iv []byte) [32]byte {
	h := sha256.New()
	h.Write(key)
	h.Write(iv)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

var bucketName = []byte("handshakes")

// Entry is one completed handshake's audit record. The fingerprints
// are sha256(key‖iv) of each negotiated direction; Record never
// receives or stores the key material itself.
type Entry struct {
	When                int64 `cbor:"when"`
	OutboundFingerprint [32]byte `cbor:"out"`
	InboundFingerprint  [32]byte `cbor:"in"`
}

// Ledger is a bbolt database with a single bucket keyed by a monotonic
// counter prefix, so iteration order matches completion order.
type Ledger struct {
	db  *bolt.DB
	seq uint64
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	var seq uint64
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		if k, _ := b.Cursor().Last(); k != nil {
			seq = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, seq: seq}, nil
}

// Record writes one completed handshake's fingerprints. Write failures
// are the caller's to log; they must never fail the handshake itself.
func (l *Ledger) Record(outboundFingerprint, inboundFingerprint [32]byte) error {
	entry := Entry{
		When:                time.Now().Unix(),
		OutboundFingerprint: outboundFingerprint,
		InboundFingerprint:  inboundFingerprint,
	}
	buf, err := cbor.Marshal(entry)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		l.seq++
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, l.seq)
		return b.Put(key, buf)
	})
}

// Entries returns every recorded entry in completion order.
func (l *Ledger) Entries() ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := cbor.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
