package crypto

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestAesGcm_EncryptDecryptRoundtrip(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	plaintext := "refresh-token-secret-12345"

	ciphertext, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)
	assert.Greater(t, len(ciphertext), len(plaintext))

	decrypted, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAesGcm_EncryptIsNotDeterministic(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	first, err := svc.Encrypt("same input")
	require.NoError(t, err)
	second, err := svc.Encrypt("same input")
	require.NoError(t, err)

	// Random nonce means identical plaintexts yield different ciphertexts.
	assert.NotEqual(t, first, second)
}

func TestAesGcm_DecryptInvalidHex(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	_, err = svc.Decrypt("not-hex!!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestAesGcm_DecryptTooShort(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	_, err = svc.Decrypt(hex.EncodeToString([]byte{1, 2, 3}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestAesGcm_DecryptTamperedCiphertext(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("access-token")
	require.NoError(t, err)

	// Flip the last hex digit to corrupt the GCM tag.
	last := ciphertext[len(ciphertext)-1]
	flipped := "0"
	if last == '0' {
		flipped = "1"
	}
	tampered := ciphertext[:len(ciphertext)-1] + flipped

	_, err = svc.Decrypt(tampered)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestAesGcm_WrongKeyFailsDecryption(t *testing.T) {
	svc, err := NewAesGcmCryptoService(testKeyHex)
	require.NoError(t, err)

	otherKey := strings.Repeat("ff", 32)
	other, err := NewAesGcmCryptoService(otherKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("token")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecrypt))
}

func TestNewAesGcmCryptoService_InvalidKey(t *testing.T) {
	_, err := NewAesGcmCryptoService("zz")
	assert.Error(t, err)

	_, err = NewAesGcmCryptoService("abcd") // 2 bytes, not a valid AES key size
	assert.Error(t, err)
}

func TestNoopService_PassesThrough(t *testing.T) {
	svc := NoopService{}

	ciphertext, err := svc.Encrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", ciphertext)

	plaintext, err := svc.Decrypt("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", plaintext)
}
