package apns

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadSimple(t *testing.T) {
	msg := NewMessage(testToken, "hi")
	msg.BadgeNumber = 3
	payload, err := msg.Payload()
	require.NoError(t, err)
	assert.Equal(t, `{"aps":{"alert":"hi","badge":3}}`, string(payload))
}

func TestPayloadFullShape(t *testing.T) {
	msg := NewMessage(testToken, "hello")
	msg.ActionKeyCaption = "Open"
	msg.SoundName = "ding.aiff"
	msg.BadgeNumber = 1
	msg.CustomIdentifier = "m-42"
	payload, err := msg.Payload()
	require.NoError(t, err)
	assert.Equal(t,
		`{"aps":{"alert":{"body":"hello","action-loc-key":"Open"},"sound":"ding.aiff","badge":1},"id":"m-42"}`,
		string(payload))
}

func TestPayloadOmissions(t *testing.T) {
	msg := NewMessage(testToken, "hi")
	payload, err := msg.Payload()
	require.NoError(t, err)
	// badge is negative by default, sound and id are empty
	assert.Equal(t, `{"aps":{"alert":"hi"}}`, string(payload))

	msg.BadgeNumber = 0
	payload, err = msg.Payload()
	require.NoError(t, err)
	assert.Equal(t, `{"aps":{"alert":"hi","badge":0}}`, string(payload))
}

func TestPayloadEscapes(t *testing.T) {
	text := "a\"b\\c\nd\te\x01f"
	msg := NewMessage(testToken, text)
	payload, err := msg.Payload()
	require.NoError(t, err)
	expected := "{\"aps\":{\"alert\":\"a\\\"b\\\\c\\nd\\te\\u0001f\"}}"
	assert.Equal(t, expected, string(payload))

	// the escaped form still decodes to the original text
	var decoded struct {
		Aps struct {
			Alert string `json:"alert"`
		} `json:"aps"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, text, decoded.Aps.Alert)
}

func TestPayloadTooLarge(t *testing.T) {
	msg := NewMessage(testToken, stringOfAs(300))
	msg.BadgeNumber = 0
	_, err := msg.Payload()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPayloadAtTheCap(t *testing.T) {
	// overhead of {"aps":{"alert":""}} is 20 bytes
	msg := NewMessage(testToken, stringOfAs(MaxPayloadSize-20))
	payload, err := msg.Payload()
	require.NoError(t, err)
	assert.Len(t, payload, MaxPayloadSize)

	msg.Text += "A"
	_, err = msg.Payload()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}
