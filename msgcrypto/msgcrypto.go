// Package msgcrypto implements the public encrypt/decrypt surface
// for one-off messages: password-based AES-256-GCM with optional
// duress, self-destruct, and stealth framing, delegating wire layout
// to codec.
package msgcrypto

import (
	"github.com/jpfluger/encyphrix/codec"
	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/xerr"
)

// Stealth selects which stealth framing, if any, an Encrypt call
// applies. The zero value, StealthNone, applies neither.
type Stealth int

const (
	StealthNone Stealth = iota
	StealthNoise
	StealthPadding
	StealthCombined
)

// Options is the closed set of knobs Encrypt accepts: exactly the
// four fields the format defines. There is no escape hatch for
// additional fields.
type Options struct {
	DuressPassword string
	FakePlaintext  string
	SelfDestruct   bool
	Stealth        Stealth
}

// Result is what Decrypt returns on success.
type Result struct {
	Plaintext    string
	SelfDestruct bool
}

// Encrypt seals plaintext under password and returns a Base64
// envelope. When opts.DuressPassword is non-empty, a second record
// encrypting opts.FakePlaintext under that password is embedded
// alongside the real one.
func Encrypt(plaintext string, password string, opts Options) (string, error) {
	if opts.DuressPassword != "" && opts.FakePlaintext == "" {
		return "", xerr.New(xerr.KindInvalidInput, "msgcrypto: fakePlaintext is required when duressPassword is set")
	}
	if opts.DuressPassword == "" && opts.FakePlaintext != "" {
		return "", xerr.New(xerr.KindInvalidInput, "msgcrypto: fakePlaintext is only meaningful alongside duressPassword")
	}

	req := codec.EncodeRequest{
		Real:         codec.Record{Password: password, Plaintext: []byte(plaintext)},
		SelfDestruct: opts.SelfDestruct,
		Params:       kdf.ParamsForProfile(kdf.DefaultProfile),
	}

	switch opts.Stealth {
	case StealthNoise:
		req.StealthNoise = true
	case StealthPadding:
		req.StealthPadding = true
	case StealthCombined:
		req.StealthNoise = true
		req.StealthPadding = true
	}

	if opts.DuressPassword != "" {
		req.Duress = &codec.Record{
			Password:  opts.DuressPassword,
			Plaintext: []byte(opts.FakePlaintext),
		}
	}

	return codec.Encode(req)
}

// Decrypt opens blob with password, trying the real record first and
// the duress record second when present. Every failure — bad Base64,
// malformed header, bad password, tampered tag, corrupt body —
// surfaces as the same xerr.KindDecryptFailed, so callers cannot
// distinguish "wrong password" from "corrupt ciphertext".
func Decrypt(blob string, password string) (Result, error) {
	res, err := codec.Decode(blob, password)
	if err != nil {
		if xerr.Is(err, xerr.KindDecryptFailed) {
			return Result{}, err
		}
		return Result{}, xerr.New(xerr.KindDecryptFailed, "msgcrypto: decryption failed")
	}
	return Result{Plaintext: string(res.Plaintext), SelfDestruct: res.SelfDestruct}, nil
}

// CheckSelfDestruct reports whether blob's header carries the
// self-destruct flag, without attempting decryption.
func CheckSelfDestruct(blob string) (bool, error) {
	return codec.CheckSelfDestruct(blob)
}
