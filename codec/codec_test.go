package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfluger/encyphrix/kdf"
	"github.com/jpfluger/encyphrix/xerr"
)

func testParams() kdf.Params {
	return kdf.ParamsForProfile(kdf.ProfileInteractive)
}

func TestEncodeDecodeRoundTripNoDuress(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hello")},
		Params: testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Plaintext))
	assert.False(t, res.SelfDestruct)
}

func TestEncodeDecodeDuressScenario(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "real", Plaintext: []byte("secret")},
		Duress: &Record{Password: "fake-pw", Plaintext: []byte("nothing here")},
		Params: testParams(),
	})
	require.NoError(t, err)

	real, err := Decode(blob, "real")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(real.Plaintext))

	fake, err := Decode(blob, "fake-pw")
	require.NoError(t, err)
	assert.Equal(t, "nothing here", string(fake.Plaintext))
	assert.False(t, fake.SelfDestruct)
}

func TestSelfDestructFlagAndDuressNeverSelfDestructs(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:         Record{Password: "pw", Plaintext: []byte("burn")},
		Duress:       &Record{Password: "other", Plaintext: []byte("decoy")},
		SelfDestruct: true,
		Params:       testParams(),
	})
	require.NoError(t, err)

	burn, err := CheckSelfDestruct(blob)
	require.NoError(t, err)
	assert.True(t, burn)

	real, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.True(t, real.SelfDestruct)

	decoy, err := Decode(blob, "other")
	require.NoError(t, err)
	assert.False(t, decoy.SelfDestruct)
}

func TestCheckSelfDestructDoesNotAttemptDecryption(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:         Record{Password: "pw", Plaintext: []byte("x")},
		SelfDestruct: true,
		Params:       testParams(),
	})
	require.NoError(t, err)

	ok, err := CheckSelfDestruct(blob)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecodeFailsOnWrongPassword(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hi")},
		Params: testParams(),
	})
	require.NoError(t, err)

	_, err = Decode(blob, "wrong")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindDecryptFailed))
}

func TestEncodeRejectsEqualDuressAndPrimaryPasswords(t *testing.T) {
	_, err := Encode(EncodeRequest{
		Real:   Record{Password: "same", Plaintext: []byte("a")},
		Duress: &Record{Password: "same", Plaintext: []byte("b")},
		Params: testParams(),
	})
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindInvalidInput))
}

func TestEmptyPlaintextRoundTrips(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte{}},
		Params: testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Empty(t, res.Plaintext)
}

func TestLargePlaintextRoundTrips(t *testing.T) {
	big := strings.Repeat("x", 1<<20)
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte(big)},
		Params: testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, big, string(res.Plaintext))
}

func TestUTF8AstralPlaneRoundTrips(t *testing.T) {
	text := "hello \U0001F600 world \U0001F512"
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte(text)},
		Params: testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, text, string(res.Plaintext))
}

func TestStealthNoiseAndPaddingRoundTrip(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:           Record{Password: "pw", Plaintext: []byte("stealthy")},
		StealthNoise:   true,
		StealthPadding: true,
		Params:         testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, "stealthy", string(res.Plaintext))
}

func TestStealthPaddingOnlyRoundTripsSmallPlaintext(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:           Record{Password: "pw", Plaintext: []byte("hello")},
		StealthPadding: true,
		Params:         testParams(),
	})
	require.NoError(t, err)

	res, err := Decode(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Plaintext))
}

func TestDecodeToleratesEmbeddedWhitespace(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hello")},
		Params: testParams(),
	})
	require.NoError(t, err)

	var sb strings.Builder
	for i, r := range blob {
		sb.WriteRune(r)
		if i%8 == 0 {
			sb.WriteByte('\n')
		}
	}

	res, err := Decode(sb.String(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Plaintext))
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hello")},
		Params: testParams(),
	})
	require.NoError(t, err)

	raw, err := decodeBase64(blob)
	require.NoError(t, err)
	raw[0] ^= 0xFF
	tampered := base64StdEncode(raw)

	_, err = Decode(tampered, "pw")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindMalformedCiphertext))
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hello")},
		Params: testParams(),
	})
	require.NoError(t, err)

	raw, err := decodeBase64(blob)
	require.NoError(t, err)
	raw[4] = 99
	tampered := base64StdEncode(raw)

	_, err = Decode(tampered, "pw")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindUnsupportedVersion))
}

func TestDecodeRejectsTamperedCiphertext(t *testing.T) {
	blob, err := Encode(EncodeRequest{
		Real:   Record{Password: "pw", Plaintext: []byte("hello world")},
		Params: testParams(),
	})
	require.NoError(t, err)

	raw, err := decodeBase64(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64StdEncode(raw)

	_, err = Decode(tampered, "pw")
	require.Error(t, err)
}

func TestDecodeRejectsOversizedNoiseLength(t *testing.T) {
	raw := []byte{}
	raw = append(raw, magic[:]...)
	raw = append(raw, Version, FlagStealthNoise, uint8(kdf.AlgArgon2id13))
	raw = appendU32(raw, testParams().Opslimit)
	raw = appendU64(raw, testParams().Memlimit)
	raw = appendU16(raw, 0xFFFF) // far beyond MaxNoiseLenDecode

	blob := base64StdEncode(raw)
	_, err := Decode(blob, "pw")
	require.Error(t, err)
	assert.True(t, xerr.Is(err, xerr.KindMalformedCiphertext))
}

func base64StdEncode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
