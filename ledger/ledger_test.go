// SPDX-FileCopyrightText: © 2026 the duskchan authors
// SPDX-License-Identifier: AGPL-3.0-only
package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	out := Fingerprint([]byte("outbound-key"), []byte("outbound-iv"))
	in := Fingerprint([]byte("inbound-key"), []byte("inbound-iv"))
	require.NoError(t, l.Record(out, in))
	require.NoError(t, l.Record(out, in))

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, out, entries[0].OutboundFingerprint)
	require.Equal(t, in, entries[0].InboundFingerprint)
}

func TestFingerprintIsDeterministicAndKeyed(t *testing.T) {
	a := Fingerprint([]byte("key"), []byte("iv"))
	b := Fingerprint([]byte("key"), []byte("iv"))
	c := Fingerprint([]byte("key"), []byte("different-iv"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
