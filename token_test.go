package apns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceTokenToBinary(t *testing.T) {
	token, err := DeviceTokenToBinary(testToken)
	require.NoError(t, err)
	require.Len(t, token, DeviceBinarySize)
	for i := 0; i < DeviceBinarySize; i++ {
		assert.Equal(t, byte(i+1), token[i])
	}
}

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := DeviceTokenToBinary(testToken)
	require.NoError(t, err)
	// round trip equals the lowercased input with spaces stripped
	assert.Equal(t,
		"0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
		DeviceTokenFromBinary(token))

	upper, err := DeviceTokenToBinary("A1B2C3D4E5F60708090A0B0C0D0E0F101112131415161718191A1B1C1D1E1F20")
	require.NoError(t, err)
	assert.Equal(t,
		"a1b2c3d4e5f60708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
		DeviceTokenFromBinary(upper))
}

func TestRandomDeviceTokenRoundTrip(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 8; i++ {
		token := RandomDeviceToken()
		require.Len(t, token, 64)
		binary, err := DeviceTokenToBinary(token)
		require.NoError(t, err)
		assert.Equal(t, token, DeviceTokenFromBinary(binary))
		assert.False(t, seen[token])
		seen[token] = true
	}

	// spaces and case do not change the decoded token
	token := RandomDeviceToken()
	spaced := strings.ToUpper(token[:16] + " " + token[16:32] + " " + token[32:])
	binary, err := DeviceTokenToBinary(spaced)
	require.NoError(t, err)
	assert.Equal(t, token, DeviceTokenFromBinary(binary))
}

func TestDeviceTokenToBinaryInvalid(t *testing.T) {
	_, err := DeviceTokenToBinary("0102")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = DeviceTokenToBinary("zz02030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = DeviceTokenToBinary("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSafeBinaryOutput(t *testing.T) {
	assert.Equal(t, "abc", safeBinaryOutput([]byte("abc")))
	assert.Equal(t, "01ff{}", safeBinaryOutput([]byte{0x01, 0xff, '{', '}'}))
}
