package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMasterKey = "test-master-key-with-enough-length"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testMasterKey)
	require.NoError(t, err)
	return c
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plain := range []string{"r2-secret-value", "smtp päss wörd", "", strings.Repeat("x", 4096)} {
		enc, err := c.Encrypt(plain)
		require.NoError(t, err)
		require.True(t, IsEncrypted(enc) || plain == "")

		got, err := c.Decrypt(enc)
		require.NoError(t, err)
		require.Equal(t, plain, got)
	}
}

func TestEncryptFormat(t *testing.T) {
	c := newTestCipher(t)

	enc, err := c.Encrypt("value")
	require.NoError(t, err)

	parts := strings.Split(enc, ":")
	require.Len(t, parts, 4)
	require.Len(t, parts[0], saltLength*2)
	require.Len(t, parts[1], ivLength*2)
	require.Len(t, parts[2], tagLength*2)
	require.True(t, IsEncrypted(enc))
}

func TestEncryptUsesFreshSaltAndIV(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptKnownVector(t *testing.T) {
	c := newTestCipher(t)

	const vector = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f" +
		"202122232425262728292a2b2c2d2e2f303132333435363738393a3b3c3d3e3f:" +
		"000102030405060708090a0b0c0d0e0f:" +
		"2f8d6324c8b898852d8a9ef8e31f859b:" +
		"aed03f3ac21a9f5947ba1117b56f2f"

	got, err := c.Decrypt(vector)
	require.NoError(t, err)
	require.Equal(t, "r2-secret-value", got)
}

func TestDecryptWrongKey(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("value")
	require.NoError(t, err)

	other, err := New("a-completely-different-master-key")
	require.NoError(t, err)

	_, err = other.Decrypt(enc)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptTampered(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("value")
	require.NoError(t, err)

	parts := strings.Split(enc, ":")
	last := []byte(parts[3])
	if last[0] == '0' {
		last[0] = '1'
	} else {
		last[0] = '0'
	}
	parts[3] = string(last)

	_, err = c.Decrypt(strings.Join(parts, ":"))
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestDecryptMalformed(t *testing.T) {
	c := newTestCipher(t)

	for _, v := range []string{"", "plain", "a:b:c", "zz:00:00:00", "00:0011:00112233445566778899aabbccddeeff:00"} {
		_, err := c.Decrypt(v)
		require.ErrorIs(t, err, ErrInvalidFormat, v)
	}
}

func TestIsEncrypted(t *testing.T) {
	require.False(t, IsEncrypted(""))
	require.False(t, IsEncrypted("plain-text"))
	require.False(t, IsEncrypted("ab:cd:ef"))
	require.False(t, IsEncrypted("ab:cd:ef:gh"))
	require.False(t, IsEncrypted("ab::ef:01"))
	require.True(t, IsEncrypted("ab:cd:ef:01"))
}

func TestNewRejectsEmptyKey(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrEmptyMasterKey)
}
