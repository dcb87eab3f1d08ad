// Package codec implements the core's binary ciphertext envelope:
// header, flags, one or two salt/nonce/length/data records, and the
// optional stealth noise and padding sections, Base64-transported.
package codec

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"io"
	"strings"

	"github.com/jpfluger/encyphrix/aead"
	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/xerr"
)

// magic is the 4-byte envelope tag "ECYP".
var magic = [4]byte{0x45, 0x43, 0x59, 0x50}

// Version is the only wire version this codec emits or accepts.
const Version uint8 = 2

// Flag bits, per the wire format's header byte.
const (
	FlagHasDuress      uint8 = 0x01
	FlagSelfDestruct   uint8 = 0x02
	FlagStealthNoise   uint8 = 0x04
	FlagStealthPadding uint8 = 0x08
)

// headerLen is magic(4) + version(1) + flags(1) + algId(1) +
// opslimit(4) + memlimit(8).
const headerLen = 4 + 1 + 1 + 1 + 4 + 8

// aadLen is the portion of the header authenticated by every record:
// magic + version + flags, per spec.
const aadLen = 4 + 1 + 1

// recordFixedLen is salt(16) + nonce(12) + len(4), preceding the
// variable-length data field.
const recordFixedLen = kdf.SaltSize + aead.NonceSize + 4

// Noise bounds for encode; decode enforces the wider MaxNoiseLenDecode
// ceiling to bound allocation regardless of what an encoder chose.
const (
	MinNoiseLen       = 8
	MaxNoiseLen       = 256
	MaxNoiseLenDecode = 4096
)

// DefaultPadBlockSize is the block size stealth padding rounds the
// total envelope length up to. EncodeRequest.PadBlockSize may select a
// smaller block for one call; larger blocks are rejected, because
// Decode refuses any padding of DefaultPadBlockSize bytes or more.
const DefaultPadBlockSize = 256

// Record is one encrypted slot in the envelope: a password/plaintext
// pair to be sealed under a freshly derived key and salt.
type Record struct {
	Password  string
	Plaintext []byte
}

// EncodeRequest describes one envelope to produce. Duress is nil for
// a single-record (no-duress) message.
type EncodeRequest struct {
	Real           Record
	Duress         *Record
	SelfDestruct   bool
	StealthNoise   bool
	StealthPadding bool
	Params         kdf.Params
	PadBlockSize   int // 0 means DefaultPadBlockSize
}

// Result is what Decode returns on a successful open.
type Result struct {
	Plaintext    []byte
	SelfDestruct bool
}

// Encode builds the binary envelope for req and returns it as
// standard Base64.
func Encode(req EncodeRequest) (string, error) {
	if req.Duress != nil && req.Duress.Password == req.Real.Password {
		return "", xerr.New(xerr.KindInvalidInput, "codec: duress password equals primary password")
	}
	if err := req.Params.EnsureValid(); err != nil {
		return "", err
	}
	if req.PadBlockSize > DefaultPadBlockSize {
		return "", xerr.New(xerr.KindInvalidInput, "codec: pad block size %d exceeds %d", req.PadBlockSize, DefaultPadBlockSize)
	}

	flags := uint8(0)
	if req.Duress != nil {
		flags |= FlagHasDuress
	}
	if req.SelfDestruct {
		flags |= FlagSelfDestruct
	}
	if req.StealthNoise {
		flags |= FlagStealthNoise
	}
	if req.StealthPadding {
		flags |= FlagStealthPadding
	}

	header := encodeHeader(flags, req.Params)
	aad := header[:aadLen]

	var noise []byte
	if req.StealthNoise {
		n, err := randNoiseLen()
		if err != nil {
			return "", err
		}
		noise = make([]byte, n)
		if _, err := io.ReadFull(rand.Reader, noise); err != nil {
			return "", xerr.Wrap(xerr.KindInvalidInput, err, "codec: failed to generate stealth noise")
		}
	}

	realRecord, err := sealRecord(req.Real, req.Params, aad)
	if err != nil {
		return "", err
	}

	var duressRecord []byte
	if req.Duress != nil {
		duressRecord, err = sealRecord(*req.Duress, req.Params, aad)
		if err != nil {
			return "", err
		}
	}

	blob := make([]byte, 0, headerLen+len(noise)+len(realRecord)+len(duressRecord)+2)
	blob = append(blob, header...)
	if req.StealthNoise {
		blob = appendU16(blob, uint16(len(noise)))
		blob = append(blob, noise...)
	}
	blob = append(blob, realRecord...)
	blob = append(blob, duressRecord...)

	if req.StealthPadding {
		blockSize := req.PadBlockSize
		if blockSize <= 0 {
			blockSize = DefaultPadBlockSize
		}
		padLen := paddingFor(len(blob)+2, blockSize)
		pad := make([]byte, padLen)
		if _, err := io.ReadFull(rand.Reader, pad); err != nil {
			return "", xerr.Wrap(xerr.KindInvalidInput, err, "codec: failed to generate stealth padding")
		}
		blob = appendU16(blob, uint16(padLen))
		blob = append(blob, pad...)
	}

	return base64.StdEncoding.EncodeToString(blob), nil
}

// paddingFor returns the padding length needed so that base+padLen is
// a multiple of blockSize.
func paddingFor(base, blockSize int) int {
	rem := base % blockSize
	if rem == 0 {
		return 0
	}
	return blockSize - rem
}

func randNoiseLen() (int, error) {
	var b [1]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return 0, xerr.Wrap(xerr.KindInvalidInput, err, "codec: failed to size stealth noise")
	}
	// Map a random byte into [MinNoiseLen, MaxNoiseLen].
	span := MaxNoiseLen - MinNoiseLen + 1
	return MinNoiseLen + int(b[0])%span, nil
}

func encodeHeader(flags uint8, params kdf.Params) []byte {
	h := make([]byte, 0, headerLen)
	h = append(h, magic[:]...)
	h = append(h, Version, flags, uint8(params.AlgID))
	h = appendU32(h, params.Opslimit)
	h = appendU64(h, params.Memlimit)
	return h
}

func sealRecord(rec Record, params kdf.Params, aad []byte) ([]byte, error) {
	var salt [kdf.SaltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, xerr.Wrap(xerr.KindInvalidInput, err, "codec: failed to generate salt")
	}
	nonce, err := aead.NewNonce()
	if err != nil {
		return nil, err
	}
	key, err := kdf.Derive(rec.Password, salt, params)
	if err != nil {
		return nil, err
	}
	data, err := aead.Seal(key, nonce, aad, rec.Plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, recordFixedLen+len(data))
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = appendU32(out, uint32(len(data)))
	out = append(out, data...)
	return out, nil
}

// frame is a fully parsed envelope: header fields plus the one or two
// records present in the body, padding and noise already accounted
// for.
type frame struct {
	flags  uint8
	params kdf.Params
	rec1   parsedRecord
	rec2   *parsedRecord
}

// parse decodes blob into a frame, validating the header, skipping
// stealth noise, reading the record(s) indicated by has_duress, and
// validating any trailing stealth padding section.
func parse(blob string) (frame, error) {
	raw, err := decodeBase64(blob)
	if err != nil {
		return frame{}, err
	}
	if len(raw) < headerLen {
		return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: envelope shorter than header")
	}
	if raw[0] != magic[0] || raw[1] != magic[1] || raw[2] != magic[2] || raw[3] != magic[3] {
		return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: bad magic")
	}
	version := raw[4]
	if version != Version {
		return frame{}, xerr.New(xerr.KindUnsupportedVersion, "codec: unsupported version %d", version)
	}
	flags := raw[5]
	params := kdf.Params{
		AlgID:    kdf.AlgID(raw[6]),
		Opslimit: binary.LittleEndian.Uint32(raw[7:11]),
		Memlimit: binary.LittleEndian.Uint64(raw[11:19]),
	}
	if err := params.EnsureValid(); err != nil {
		return frame{}, err
	}

	rest := raw[headerLen:]
	if flags&FlagStealthNoise != 0 {
		if len(rest) < 2 {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: truncated noise length")
		}
		noiseLen := int(binary.LittleEndian.Uint16(rest[:2]))
		if noiseLen > MaxNoiseLenDecode {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: noise length %d exceeds maximum", noiseLen)
		}
		rest = rest[2:]
		if len(rest) < noiseLen {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: truncated noise")
		}
		rest = rest[noiseLen:]
	}

	rec1, rest, err := readRecord(rest)
	if err != nil {
		return frame{}, err
	}

	var rec2 *parsedRecord
	if flags&FlagHasDuress != 0 {
		r2, remaining, err := readRecord(rest)
		if err != nil {
			return frame{}, err
		}
		rec2 = &r2
		rest = remaining
	}

	if flags&FlagStealthPadding != 0 {
		if len(rest) < 2 {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: truncated padding length")
		}
		padLen := int(binary.LittleEndian.Uint16(rest[:2]))
		if padLen >= DefaultPadBlockSize {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: padding length %d exceeds maximum", padLen)
		}
		rest = rest[2:]
		if len(rest) != padLen {
			return frame{}, xerr.New(xerr.KindMalformedCiphertext, "codec: padding length does not match envelope size")
		}
	}

	return frame{flags: flags, params: params, rec1: rec1, rec2: rec2}, nil
}

// Decode parses blob, attempting password against the real record
// first and, if present, the duress record second. It returns
// xerr.KindDecryptFailed if neither record opens.
func Decode(blob string, password string) (Result, error) {
	f, err := parse(blob)
	if err != nil {
		return Result{}, err
	}

	hdr := encodeHeader(f.flags, f.params)
	aad := hdr[:aadLen]

	if key, derr := kdf.Derive(password, f.rec1.salt, f.params); derr == nil {
		if pt, oerr := aead.Open(key, f.rec1.nonce, aad, f.rec1.data); oerr == nil {
			return Result{Plaintext: pt, SelfDestruct: f.flags&FlagSelfDestruct != 0}, nil
		}
	}

	if f.rec2 != nil {
		if key, derr := kdf.Derive(password, f.rec2.salt, f.params); derr == nil {
			if pt, oerr := aead.Open(key, f.rec2.nonce, aad, f.rec2.data); oerr == nil {
				return Result{Plaintext: pt, SelfDestruct: false}, nil
			}
		}
	}

	return Result{}, xerr.New(xerr.KindDecryptFailed, "codec: no record authenticated under supplied password")
}

// CheckSelfDestruct parses the envelope and returns the self_destruct
// bit read from the header, without deriving a key or opening either
// record. It runs the same structural parse as Decode (noise, records
// and padding included), so an envelope with a truncated or
// inconsistent body is reported as malformed even though the flag
// itself sits in the header.
func CheckSelfDestruct(blob string) (bool, error) {
	f, err := parse(blob)
	if err != nil {
		return false, err
	}
	return f.flags&FlagSelfDestruct != 0, nil
}

type parsedRecord struct {
	salt  [kdf.SaltSize]byte
	nonce [aead.NonceSize]byte
	data  []byte
}

// readRecord parses one record from the front of b, returning the
// record and the remaining bytes after it.
func readRecord(b []byte) (parsedRecord, []byte, error) {
	var rec parsedRecord
	if len(b) < recordFixedLen {
		return rec, nil, xerr.New(xerr.KindMalformedCiphertext, "codec: truncated record")
	}
	copy(rec.salt[:], b[:kdf.SaltSize])
	off := kdf.SaltSize
	copy(rec.nonce[:], b[off:off+aead.NonceSize])
	off += aead.NonceSize
	dataLen := int(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4
	if len(b)-off < dataLen {
		return rec, nil, xerr.New(xerr.KindMalformedCiphertext, "codec: record data length exceeds envelope")
	}
	rec.data = b[off : off+dataLen]
	return rec, b[off+dataLen:], nil
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
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

// decodeBase64 strips whitespace (legacy tolerance) and decodes with
// StdEncoding, falling back to RawStdEncoding for unpadded input.
func decodeBase64(s string) ([]byte, error) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)

	raw, err := base64.StdEncoding.DecodeString(stripped)
	if err == nil {
		return raw, nil
	}
	raw, err2 := base64.RawStdEncoding.DecodeString(stripped)
	if err2 == nil {
		return raw, nil
	}
	return nil, xerr.Wrap(xerr.KindMalformedCiphertext, err, "codec: invalid base64")
}
