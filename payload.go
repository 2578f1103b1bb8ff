package apns

import (
	"bytes"
	"encoding/json"
)

// payloadAlert is the nested alert dictionary used when an action button
// caption is present. Without a caption the alert is a bare string.
type payloadAlert struct {
	Body         string `json:"body"`
	ActionLocKey string `json:"action-loc-key"`
}

type payloadAps struct {
	Alert interface{} `json:"alert"`
	Sound string      `json:"sound,omitempty"`
	Badge *int        `json:"badge,omitempty"`
}

type payloadBody struct {
	Aps payloadAps `json:"aps"`
	Id  string     `json:"id,omitempty"`
}

// Payload возвращает JSON-представление уведомления в формате APNS.
//
// The alert is serialized as a bare string unless ActionKeyCaption is set,
// sound is omitted when empty, badge when negative and id when empty.
// Returns ErrPayloadTooLarge if the serialized form exceeds MaxPayloadSize;
// APNS validates the cap strictly and reports status 7 for oversized
// payloads, so there is no point transmitting one.
func (msg *Message) Payload() ([]byte, error) {
	var body payloadBody
	if msg.ActionKeyCaption != "" {
		body.Aps.Alert = &payloadAlert{
			Body:         msg.Text,
			ActionLocKey: msg.ActionKeyCaption,
		}
	} else {
		body.Aps.Alert = msg.Text
	}
	body.Aps.Sound = msg.SoundName
	if msg.BadgeNumber >= 0 {
		badge := msg.BadgeNumber
		body.Aps.Badge = &badge
	}
	body.Id = msg.CustomIdentifier

	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(&body); err != nil {
		return nil, err
	}
	payload := bytes.TrimRight(buf.Bytes(), "\n")
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	return payload, nil
}
