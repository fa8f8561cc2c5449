package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Codec 静态数据编码边界：入库前 Encode，出库后 Decode
// 必须是纯函数、可逆、无副作用；业务逻辑不得依赖编码是否生效
// （聚合、回填等逻辑在 Identity 和 AES 下行为必须一致）
type Codec interface {
	Encode(plain string) string
	Decode(stored string) string
}

// Identity 不做任何变换（未配置 AES_KEY 时使用）
type Identity struct{}

func (Identity) Encode(s string) string { return s }
func (Identity) Decode(s string) string { return s }

// AES AES-256-CBC，存储格式 "ivhex:cipherhex"
// Decode 对不符合该格式的值原样返回，以容忍历史明文数据
type AES struct {
	key []byte
}

// NewAES key 必须为 32 字节（AES-256）
func NewAES(key []byte) (*AES, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
	}
	k := make([]byte, 32)
	copy(k, key)
	return &AES{key: k}, nil
}

// FromKey 根据 base64 key 构造 Codec；空 key 返回 Identity
func FromKey(b64 string) (Codec, error) {
	if b64 == "" {
		return Identity{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 aes key: %w", err)
	}
	return NewAES(key)
}

func (a *AES) Encode(plain string) string {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return plain
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return plain
	}
	padded := pkcs7Pad([]byte(plain), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct)
}

func (a *AES) Decode(stored string) string {
	idx := strings.IndexByte(stored, ':')
	// 16 字节 IV 的 hex 表示固定 32 字符；形状不对视为明文
	if idx != 32 {
		return stored
	}
	iv, err := hex.DecodeString(stored[:idx])
	if err != nil {
		return stored
	}
	ct, err := hex.DecodeString(stored[idx+1:])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return stored
	}
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return stored
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return stored
	}
	return string(unpadded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
