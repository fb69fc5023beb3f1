package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optifreight/liboptifreight-go/auth"
)

func newKey(t *testing.T) *auth.Key {
	t.Helper()
	k, err := auth.NewKey()
	require.NoError(t, err)
	return k
}

// ---------------------------------------------------------------------------
// EncryptKey / DecryptKey
// ---------------------------------------------------------------------------

func TestEncryptDecryptRoundTrip(t *testing.T) {
	k := newKey(t)

	data, err := EncryptKey(k, "correct horse")
	require.NoError(t, err)
	assert.Len(t, data, SaltLen+NonceLen+auth.PrivateKeySize+ChecksumLen+16)

	got, err := DecryptKey(data, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, k.Address(), got.Address())
	assert.Equal(t, k.Bytes(), got.Bytes())
}

func TestEncryptKey_FreshSalt(t *testing.T) {
	k := newKey(t)
	a, err := EncryptKey(k, "pw")
	require.NoError(t, err)
	b, err := EncryptKey(k, "pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptKey_EmptyPassword(t *testing.T) {
	_, err := EncryptKey(newKey(t), "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestDecryptKey_Failures(t *testing.T) {
	data, err := EncryptKey(newKey(t), "pw")
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     []byte
		password string
	}{
		{"wrong password", data, "wrong"},
		{"truncated", data[:SaltLen+NonceLen], "pw"},
		{"tampered", func() []byte {
			c := append([]byte(nil), data...)
			c[len(c)-1] ^= 0xFF
			return c
		}(), "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptKey(tt.data, tt.password)
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_SaveLoad(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "keys"))
	require.NoError(t, err)
	k := newKey(t)

	require.NoError(t, s.Save("issuer", k, "pw"))

	info, err := os.Stat(filepath.Join(s.Dir(), "issuer.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := s.Load("issuer", "pw")
	require.NoError(t, err)
	assert.Equal(t, k.Address(), got.Address())

	_, err = s.Load("issuer", "nope")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestStore_Errors(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	k := newKey(t)

	require.NoError(t, s.Save("a", k, "pw"))
	assert.ErrorIs(t, s.Save("a", k, "pw"), ErrKeyExists)

	_, err = s.Load("missing", "pw")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	for _, name := range []string{"", "../escape", "Upper", "has space"} {
		assert.ErrorIs(t, s.Save(name, k, "pw"), ErrInvalidName, name)
	}
}

func TestStore_Names(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"seller", "buyer", "issuer"} {
		require.NoError(t, s.Save(name, newKey(t), "pw"))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0600))

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer", "issuer", "seller"}, names)
}
