package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saif727/hedera-wallet-backend/models"
)

var testCreds = models.Credentials{
	AccountID:  "0.0.1001",
	PrivateKey: "302e020100300506032b657004220420aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
}

func openTestStore(t *testing.T, dir, passphrase string) *CredentialStore {
	t.Helper()
	s, err := Open(filepath.Join(dir, "credentials"), passphrase, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openTestStore(t, t.TempDir(), "")
	creds, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestSaveLoadClear(t *testing.T) {
	s := openTestStore(t, t.TempDir(), "")
	require.NoError(t, s.Save(testCreds))

	creds, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, testCreds, *creds)

	require.NoError(t, s.Clear())
	creds, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCredentialsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "credentials"), "", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(testCreds))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir, "")
	creds, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, testCreds.AccountID, creds.AccountID)
}

func TestSealedPrivateKey(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "credentials"), "correct horse", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(testCreds))

	raw, err := s.db.Get([]byte(PrivateKeyKey), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), sealedPrefix))
	assert.NotContains(t, string(raw), testCreds.PrivateKey)

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, testCreds.PrivateKey, creds.PrivateKey)
	require.NoError(t, s.Close())

	t.Run("no passphrase", func(t *testing.T) {
		s := openTestStore(t, dir, "")
		_, err := s.Load()
		assert.ErrorIs(t, err, ErrPassphraseRequired)
	})
}

func TestWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "credentials"), "first", nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(testCreds))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir, "second")
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestUnsealRejectsGarbage(t *testing.T) {
	_, err := unseal("x", []byte("plain"))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)

	_, err = unseal("x", []byte(sealedPrefix+"{not json"))
	assert.ErrorIs(t, err, ErrInvalidEnvelope)
}
