package vault

import (
	"crypto/rand"
	"io"

	"github.com/sethvargo/go-password/password"

	"github.com/jpfluger/encyphrix/xerr"
)

// GeneratePassphrase produces a random passphrase suitable as a
// StoredKey of kind passphrase: length characters, with numDigits
// digits and numSymbols symbols among them, upper- and lowercase
// letters otherwise, no repeated characters.
func GeneratePassphrase(length, numDigits, numSymbols int) (string, error) {
	pw, err := password.Generate(length, numDigits, numSymbols, false, false)
	if err != nil {
		return "", xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to generate passphrase")
	}
	return pw, nil
}

// GenerateRawKey produces a fresh 32-byte key suitable as a
// StoredKey of kind raw256.
func GenerateRawKey() ([]byte, error) {
	b := make([]byte, raw256Len)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to generate raw key")
	}
	return b, nil
}
