package vault

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/jpfluger/encyphrix/aead"
	"github.com/jpfluger/encyphrix/idgen"
	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/xerr"
)

// vaultMagic is the 4-byte persisted-vault tag "ECV1".
var vaultMagic = [4]byte{'E', 'C', 'V', '1'}

// outerHeaderLen is magic(4) + algId(1) + opslimit(4) + memlimit(8).
const outerHeaderLen = 4 + 1 + 4 + 8

// outerAADLen is the region of the persisted blob authenticated by
// the outer seal: header + outerSalt(16) + outerNonce(12). The
// governing design note calls this "the first 29 bytes (header +
// salt + nonce)"; the actual structural length of that region, given
// the field widths fixed earlier in the same layout, is 45 bytes —
// see DESIGN.md for the reconciliation. This implementation binds the
// full structural region, which is the stronger and evidently
// intended property.
const outerAADLen = outerHeaderLen + 16 + 12

// buildOuterBlob composes the persisted-vault byte layout:
// "ECV1" || algId || opslimit || memlimit || outerSalt || outerNonce
// || payload_len || payload.
func buildOuterBlob(params kdf.Params, salt [16]byte, nonce [aead.NonceSize]byte, payload []byte) []byte {
	out := make([]byte, 0, outerAADLen+4+len(payload))
	out = append(out, vaultMagic[:]...)
	out = append(out, uint8(params.AlgID))
	out = appendU32(out, params.Opslimit)
	out = appendU64(out, params.Memlimit)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = appendU32(out, uint32(len(payload)))
	out = append(out, payload...)
	return out
}

// outerAAD returns the AAD region at the front of a blob produced by
// buildOuterBlob.
func outerAAD(raw []byte) []byte {
	if len(raw) < outerAADLen {
		return raw
	}
	return raw[:outerAADLen]
}

// parseOuterBlob validates and decomposes a persisted-vault blob.
func parseOuterBlob(raw []byte) (params kdf.Params, salt [16]byte, nonce [aead.NonceSize]byte, payload []byte, err error) {
	if len(raw) < outerAADLen+4 {
		return params, salt, nonce, nil, xerr.New(xerr.KindMalformedVault, "vault: blob shorter than header")
	}
	if raw[0] != vaultMagic[0] || raw[1] != vaultMagic[1] || raw[2] != vaultMagic[2] || raw[3] != vaultMagic[3] {
		return params, salt, nonce, nil, xerr.New(xerr.KindMalformedVault, "vault: bad magic")
	}
	params = kdf.Params{
		AlgID:    kdf.AlgID(raw[4]),
		Opslimit: binary.LittleEndian.Uint32(raw[5:9]),
		Memlimit: binary.LittleEndian.Uint64(raw[9:17]),
	}
	if err := params.EnsureValid(); err != nil {
		return kdf.Params{}, salt, nonce, nil, err
	}
	copy(salt[:], raw[17:33])
	copy(nonce[:], raw[33:45])

	payloadLen := int(binary.LittleEndian.Uint32(raw[45:49]))
	if len(raw)-49 < payloadLen {
		return kdf.Params{}, salt, nonce, nil, xerr.New(xerr.KindMalformedVault, "vault: payload length exceeds blob")
	}
	payload = raw[49 : 49+payloadLen]
	return params, salt, nonce, payload, nil
}

// storedKeyWire is the canonical on-disk representation of a
// StoredKey: raw256 secrets are hex-encoded so the payload stays
// text-safe.
type storedKeyWire struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	Secret     string    `json:"secret"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

type payloadDoc struct {
	Keys []storedKeyWire `json:"keys"`
}

func encodePayload(keys []StoredKey) ([]byte, error) {
	doc := payloadDoc{Keys: make([]storedKeyWire, len(keys))}
	for i, k := range keys {
		var secret string
		switch k.Kind {
		case KindRaw256:
			secret = hex.EncodeToString(k.Secret)
		default:
			secret = string(k.Secret)
		}
		doc.Keys[i] = storedKeyWire{
			ID:         k.ID,
			Name:       k.Name,
			Kind:       k.Kind,
			Secret:     secret,
			CreatedAt:  k.CreatedAt,
			LastUsedAt: k.LastUsedAt,
		}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindInvalidInput, err, "vault: failed to serialize payload")
	}
	return b, nil
}

func decodePayload(b []byte) ([]StoredKey, error) {
	var doc payloadDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, xerr.Wrap(xerr.KindMalformedVault, err, "vault: failed to parse payload")
	}
	out := make([]StoredKey, len(doc.Keys))
	for i, w := range doc.Keys {
		if !idgen.IsValidID(w.ID) {
			return nil, xerr.New(xerr.KindMalformedVault, "vault: key %q has a malformed id", w.Name)
		}
		var secret []byte
		switch w.Kind {
		case KindRaw256:
			s, err := hex.DecodeString(w.Secret)
			if err != nil {
				return nil, xerr.Wrap(xerr.KindMalformedVault, err, "vault: invalid raw256 hex encoding")
			}
			secret = s
		default:
			secret = []byte(w.Secret)
		}
		out[i] = StoredKey{
			ID:         w.ID,
			Name:       w.Name,
			Kind:       w.Kind,
			Secret:     secret,
			CreatedAt:  w.CreatedAt,
			LastUsedAt: w.LastUsedAt,
		}
	}
	return out, nil
}

func encodeExport(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeExport(blob string) ([]byte, error) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, blob)
	raw, err := base64.StdEncoding.DecodeString(stripped)
	if err == nil {
		return raw, nil
	}
	raw, err2 := base64.RawStdEncoding.DecodeString(stripped)
	if err2 == nil {
		return raw, nil
	}
	return nil, xerr.Wrap(xerr.KindMalformedVault, err, "vault: invalid base64")
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
