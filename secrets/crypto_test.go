package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	token := "ya29.a0AfH6SMBx-example-access-token"

	encrypted, err := Encrypt(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, encrypted)

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, token, decrypted)
}

// 同一明文两次加密得到不同密文（IV 随机）
func TestEncrypt_RandomIV(t *testing.T) {
	a, err := Encrypt("refresh-token-1")
	require.NoError(t, err)
	b, err := Encrypt("refresh-token-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

// 密钥轮换：旧数据用兜底密钥加密，新配置密钥上线后仍能解开
func TestDecrypt_FallbackKeyFirst(t *testing.T) {
	old, err := EncryptWithKey("legacy-token", fallbackKey())
	require.NoError(t, err)

	t.Setenv("TOKEN_ENCRYPTION_KEY", "rotated-key-material")

	decrypted, err := Decrypt(old)
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", decrypted)
}

func TestDecrypt_ConfiguredKey(t *testing.T) {
	t.Setenv("TOKEN_ENCRYPTION_KEY", "rotated-key-material")

	encrypted, err := Encrypt("new-token")
	require.NoError(t, err)

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "new-token", decrypted)
}

func TestDecrypt_InvalidInput(t *testing.T) {
	_, err := Decrypt("not-base64!!!")
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=") // 太短，不足一个块
	assert.Error(t, err)
}

func TestEncryptDecrypt_EmptyString(t *testing.T) {
	encrypted, err := Encrypt("")
	require.NoError(t, err)

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}
