// Package kdf derives symmetric keys from a password using Argon2id,
// the sole key-derivation function the crypto core supports.
package kdf

import (
	"golang.org/x/crypto/argon2"

	"github.com/jpfluger/encyphrix/xerr"
)

// AlgID identifies the KDF algorithm embedded in a ciphertext or
// vault header. Argon2id is the only supported algorithm; the field
// exists so the wire format can reject anything else explicitly.
type AlgID uint8

const (
	AlgArgon2id13 AlgID = 2
)

// KeySize is the length in bytes of every key this package derives:
// exactly enough for AES-256.
const KeySize = 32

// SaltSize is the fixed length of an Argon2id salt used throughout
// the core.
const SaltSize = 16

// minMemlimitBytes and minOpslimit bound what EnsureValid accepts, in
// bytes and iterations respectively (memlimit is stored as bytes on
// the wire; see Params.Memlimit).
const (
	minMemlimitBytes uint64 = 8 * 1024 * 1024
	minOpslimit      uint32 = 1
)

// Key32 is a derived 256-bit key.
type Key32 = [KeySize]byte

// Params holds the Argon2id parameters embedded alongside a
// ciphertext or vault so it can be re-derived identically on decode,
// even if the caller's default preset changes later.
type Params struct {
	AlgID    AlgID
	Opslimit uint32 // Argon2 "time" parameter.
	Memlimit uint64 // Argon2 memory parameter, in bytes.
}

// Profile names a preset Params, following the teacher's pattern of
// naming Argon2 presets by use case rather than exposing raw knobs.
type Profile int

const (
	// ProfileInteractive favors responsiveness: suitable for
	// frequent unlocks on a client device.
	ProfileInteractive Profile = iota
	// ProfileModerate matches libsodium's "moderate" preset
	// (opslimit=3, ~256MiB) and is the default for new ciphertexts
	// per spec.
	ProfileModerate
	// ProfileSensitive is for vaults protecting especially
	// high-value secrets, at higher time/memory cost.
	ProfileSensitive
)

var presets = map[Profile]Params{
	ProfileInteractive: {AlgID: AlgArgon2id13, Opslimit: 2, Memlimit: 64 * 1024 * 1024},
	ProfileModerate:    {AlgID: AlgArgon2id13, Opslimit: 3, Memlimit: 256 * 1024 * 1024},
	ProfileSensitive:   {AlgID: AlgArgon2id13, Opslimit: 4, Memlimit: 1024 * 1024 * 1024},
}

// DefaultProfile is used whenever a caller does not specify one; it
// corresponds to libsodium's "moderate" preset as spec.md requires
// for new ciphertexts.
const DefaultProfile = ProfileModerate

// ParamsForProfile returns the fixed Params for a named profile.
func ParamsForProfile(p Profile) Params {
	params, ok := presets[p]
	if !ok {
		return presets[DefaultProfile]
	}
	return params
}

// EnsureValid checks that Params meet the KDF's minimum security
// floor, returning xerr.KindInvalidInput otherwise. It is called on
// both encode (new ciphertexts must meet the floor) and decode
// (embedded params, however old, must still meet the floor — the
// spec permits weaker *presets* on decode, not arbitrarily weak ones).
func (p Params) EnsureValid() error {
	if p.AlgID != AlgArgon2id13 {
		return xerr.New(xerr.KindInvalidInput, "kdf: unknown algorithm id %d", p.AlgID)
	}
	if p.Opslimit < minOpslimit {
		return xerr.New(xerr.KindInvalidInput, "kdf: opslimit %d below minimum %d", p.Opslimit, minOpslimit)
	}
	if p.Memlimit < minMemlimitBytes {
		return xerr.New(xerr.KindInvalidInput, "kdf: memlimit %d below minimum %d bytes", p.Memlimit, minMemlimitBytes)
	}
	return nil
}

// argonThreads is fixed at 1: the core runs on a single host thread
// per the concurrency model (§5), so Argon2's parallelism parameter
// is not exposed as a tunable.
const argonThreads uint8 = 1

// Derive produces a 32-byte AES-256 key from password, salt, and
// params via Argon2id v1.3. It is deterministic: the same inputs
// always yield the same key. Derivation is the core's only expensive
// operation — callers invoking it on a UI thread should offload it.
func Derive(password string, salt [SaltSize]byte, params Params) (Key32, error) {
	var key Key32
	if err := params.EnsureValid(); err != nil {
		return key, err
	}
	// Memlimit is stored in bytes on the wire; Argon2's API takes KiB.
	memKiB := uint32(params.Memlimit / 1024)
	derived := argon2.IDKey([]byte(password), salt[:], params.Opslimit, memKiB, argonThreads, KeySize)
	copy(key[:], derived)
	return key, nil
}
