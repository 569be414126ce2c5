//OAuth 令牌落库加密：base64(IV ‖ AES-256-CBC 密文)
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
)

// 密钥轮换前的旧数据用这把兜底密钥加密，解密时先试它
const fallbackKeyMaterial = "review-hub-default-token-key"

// EncryptionKey 从环境变量取配置密钥，未配置时用兜底密钥
// 任意长度的密钥材料经 SHA-256 归一为 32 字节（AES-256）
func EncryptionKey() []byte {
	material := os.Getenv("TOKEN_ENCRYPTION_KEY")
	if material == "" {
		material = fallbackKeyMaterial
	}
	return deriveKey(material)
}

func fallbackKey() []byte {
	return deriveKey(fallbackKeyMaterial)
}

func deriveKey(material string) []byte {
	sum := sha256.Sum256([]byte(material))
	return sum[:]
}

// Encrypt 用配置密钥加密明文，输出 base64(IV ‖ 密文)
func Encrypt(plaintext string) (string, error) {
	return EncryptWithKey(plaintext, EncryptionKey())
}

// EncryptWithKey 指定密钥加密
func EncryptWithKey(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("初始化加密器失败: %v", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("生成IV失败: %v", err)
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt 解密，先试兜底密钥再试配置密钥
// 兼容密钥轮换之前加密的数据
func Decrypt(encoded string) (string, error) {
	if plaintext, err := DecryptWithKey(encoded, fallbackKey()); err == nil {
		return plaintext, nil
	}
	return DecryptWithKey(encoded, EncryptionKey())
}

// DecryptWithKey 指定密钥解密
func DecryptWithKey(encoded string, key []byte) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64解码失败: %v", err)
	}
	if len(raw) < aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("密文长度不合法")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("初始化解密器失败: %v", err)
	}

	iv := raw[:aes.BlockSize]
	ciphertext := raw[aes.BlockSize:]

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("数据为空")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return "", fmt.Errorf("填充不合法")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return "", fmt.Errorf("填充不合法")
		}
	}
	return string(data[:len(data)-padding]), nil
}
