package kdf

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfluger/encyphrix/xerr"
)

func randSalt(t *testing.T) [SaltSize]byte {
	t.Helper()
	var salt [SaltSize]byte
	_, err := rand.Read(salt[:])
	require.NoError(t, err)
	return salt
}

func TestDeriveIsDeterministic(t *testing.T) {
	salt := randSalt(t)
	params := ParamsForProfile(ProfileInteractive)

	k1, err := Derive("correct horse", salt, params)
	require.NoError(t, err)
	k2, err := Derive("correct horse", salt, params)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
}

func TestDeriveDiffersByPasswordAndSalt(t *testing.T) {
	salt1 := randSalt(t)
	salt2 := randSalt(t)
	params := ParamsForProfile(ProfileInteractive)

	k1, err := Derive("pw-a", salt1, params)
	require.NoError(t, err)
	k2, err := Derive("pw-b", salt1, params)
	require.NoError(t, err)
	k3, err := Derive("pw-a", salt2, params)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestEnsureValidRejectsWeakParams(t *testing.T) {
	cases := []Params{
		{AlgID: AlgArgon2id13, Opslimit: 0, Memlimit: 256 * 1024 * 1024},
		{AlgID: AlgArgon2id13, Opslimit: 3, Memlimit: 1024},
		{AlgID: 99, Opslimit: 3, Memlimit: 256 * 1024 * 1024},
	}
	for _, p := range cases {
		err := p.EnsureValid()
		require.Error(t, err)
		assert.True(t, xerr.Is(err, xerr.KindInvalidInput))
	}
}

func TestParamsForProfileDefaultsGracefully(t *testing.T) {
	p := ParamsForProfile(Profile(999))
	assert.Equal(t, ParamsForProfile(DefaultProfile), p)
}

func TestEmptyPasswordStillDerives(t *testing.T) {
	salt := randSalt(t)
	_, err := Derive("", salt, ParamsForProfile(ProfileInteractive))
	assert.NoError(t, err)
}
