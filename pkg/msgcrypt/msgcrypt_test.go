package msgcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := New(testKey())
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("hello")
	require.NoError(t, err)
	require.Contains(t, sealed, ":")
	require.NotContains(t, sealed, "hello")

	opened, err := cipher.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "hello", opened)
}

func TestCipherFreshNoncePerMessage(t *testing.T) {
	cipher, err := New(testKey())
	require.NoError(t, err)

	first, err := cipher.Encrypt("same text")
	require.NoError(t, err)
	second, err := cipher.Encrypt("same text")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.NotEqual(t, strings.SplitN(first, ":", 2)[0], strings.SplitN(second, ":", 2)[0])
}

func TestCipherRejectsWrongKey(t *testing.T) {
	cipher, err := New(testKey())
	require.NoError(t, err)

	sealed, err := cipher.Encrypt("secret")
	require.NoError(t, err)

	other, err := New([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipherRejectsMalformedInput(t *testing.T) {
	cipher, err := New(testKey())
	require.NoError(t, err)

	for _, input := range []string{"", "no-delimiter", "!!!:???", "YWJj:YWJj"} {
		_, err := cipher.Decrypt(input)
		require.ErrorIs(t, err, ErrDecryptionFailed, "input %q", input)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("too short"))
	require.Error(t, err)
}
