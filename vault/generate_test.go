package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassphraseMeetsRequestedShape(t *testing.T) {
	pw, err := GeneratePassphrase(16, 2, 2)
	require.NoError(t, err)
	assert.Len(t, pw, 16)

	v := New(NewMemStore())
	require.NoError(t, v.InitializeVault("master123"))
	_, err = v.AddKey(AddKeyInput{Name: "generated", Kind: KindPassphrase, Secret: []byte(pw)})
	require.NoError(t, err)
}

func TestGenerateRawKeyIsUsableAsStoredKey(t *testing.T) {
	raw, err := GenerateRawKey()
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	v := New(NewMemStore())
	require.NoError(t, v.InitializeVault("master123"))
	_, err = v.AddKey(AddKeyInput{Name: "rawkey", Kind: KindRaw256, Secret: raw})
	require.NoError(t, err)
}

func TestValidateMasterPasswordRejectsShortPasswords(t *testing.T) {
	err := ValidateMasterPassword("short")
	require.Error(t, err)

	err = ValidateMasterPassword("long-enough-pw")
	require.NoError(t, err)
}

func TestInitializeVaultRejectsWeakMasterPassword(t *testing.T) {
	v := New(NewMemStore())
	err := v.InitializeVault("weak")
	require.Error(t, err)
}

func TestRenameKey(t *testing.T) {
	v := New(NewMemStore())
	require.NoError(t, v.InitializeVault("master123"))
	created, err := v.AddKey(AddKeyInput{Name: "original", Kind: KindPassphrase, Secret: []byte("12345678")})
	require.NoError(t, err)

	renamed, err := v.Rename(created.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Name)
}

func TestLockIfIdle(t *testing.T) {
	v := New(NewMemStore())
	require.NoError(t, v.InitializeVault("master123"))

	assert.False(t, v.LockIfIdle(time.Hour))
	assert.False(t, v.IsLocked())

	locked := v.LockIfIdle(0)
	assert.True(t, locked)
	assert.True(t, v.IsLocked())
}
