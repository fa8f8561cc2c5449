package codec

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestAESRoundTrip(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	for _, plain := range []string{"21.5", "0", "-3.25", "fall", "a longer value that spans multiple aes blocks"} {
		stored := c.Encode(plain)
		assert.NotEqual(t, plain, stored)
		assert.Equal(t, 32, strings.IndexByte(stored, ':'), "iv hex must be 32 chars")
		assert.Equal(t, plain, c.Decode(stored))
	}
}

func TestAESEncodeNotDeterministic(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	// 随机 IV：同一明文两次编码结果不同，但都能解回
	a := c.Encode("21.5")
	b := c.Encode("21.5")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "21.5", c.Decode(a))
	assert.Equal(t, "21.5", c.Decode(b))
}

func TestAESDecodePassthrough(t *testing.T) {
	c, err := NewAES(testKey())
	require.NoError(t, err)

	// 历史明文数据：不符合 "ivhex:cthex" 形状的值原样返回
	for _, stored := range []string{
		"21.5",
		"",
		"not:encrypted",
		"deadbeef:deadbeef",
		strings.Repeat("z", 32) + ":deadbeef", // IV 不是合法 hex
		strings.Repeat("ab", 16) + ":xyz",     // 密文不是合法 hex
		strings.Repeat("ab", 16) + ":" + "ab", // 密文长度不是块倍数
	} {
		assert.Equal(t, stored, c.Decode(stored))
	}
}

func TestIdentity(t *testing.T) {
	c := Identity{}
	assert.Equal(t, "21.5", c.Encode("21.5"))
	assert.Equal(t, "21.5", c.Decode("21.5"))
}

func TestNewAESRejectsBadKeyLength(t *testing.T) {
	_, err := NewAES([]byte("short"))
	assert.Error(t, err)
}

func TestFromKey(t *testing.T) {
	c, err := FromKey("")
	require.NoError(t, err)
	assert.IsType(t, Identity{}, c)

	c, err = FromKey(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)
	assert.IsType(t, &AES{}, c)

	_, err = FromKey("not base64!!!")
	assert.Error(t, err)

	_, err = FromKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
}
