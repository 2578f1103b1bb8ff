package apns

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// DeviceTokenToBinary разбирает шестнадцатеричное представление токена
// устройства в его бинарный вид. Interior spaces are tolerated, as tokens
// copied from device logs usually carry them.
func DeviceTokenToBinary(token string) ([]byte, error) {
	token = strings.Map(func(r rune) rune {
		if r == ' ' {
			return -1
		}
		return r
	}, token)
	data, err := hex.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(data) != DeviceBinarySize {
		return nil, ErrInvalidToken
	}
	return data, nil
}

// DeviceTokenFromBinary возвращает строковое представление бинарного токена:
// 64 lowercase hex characters, no separators.
func DeviceTokenFromBinary(token []byte) string {
	return hex.EncodeToString(token)
}

// RandomDeviceToken возвращает случайный токен устройства в виде 64
// шестнадцатеричных символов. Useful for exercising the codec and transport
// paths without a real device.
func RandomDeviceToken() string {
	token := make([]byte, DeviceBinarySize)
	if _, err := rand.Read(token); err != nil {
		panic(err)
	}
	return hex.EncodeToString(token)
}

// safeBinaryOutput renders a byte slice for logging: printable ASCII stays
// as is, everything else becomes a two-digit hex escape.
func safeBinaryOutput(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%02x", c)
		}
	}
	return b.String()
}
