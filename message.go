package apns

import (
	"fmt"
	"time"
)

// Message описывает push-сообщение для отправки.
//
// The exported fields configure delivery and may be set freely before the
// message is added to a PushEngine. The engine assigns the identifier and
// tracks retries and the APNS status afterwards.
type Message struct {
	// Sandbox selects the development environment. It only documents the
	// intended endpoint: the engine delivers to whatever host it was
	// constructed with.
	Sandbox bool
	// DeviceToken is the 64-character hex token of the target device.
	// Interior spaces are tolerated and case is ignored.
	DeviceToken string
	// Text is the user-visible alert body.
	Text string
	// SoundName is an optional sound file key.
	SoundName string
	// ActionKeyCaption is an optional localized action-button caption.
	ActionKeyCaption string
	// CustomIdentifier is an opaque caller-supplied string carried in the
	// payload under the "id" key.
	CustomIdentifier string
	// BadgeNumber is the badge to set; negative means "do not set".
	BadgeNumber int
	// MaxRetries bounds transmission attempts.
	MaxRetries uint
	// Expiry is the absolute time after which the message is discarded
	// without sending. Zero disables expiry.
	Expiry time.Time

	id      uint32 // идентификатор (назначается при добавлении в очередь)
	retries uint   // счетчик попыток отправки
	status  uint8  // статус ошибки APNS, 0 если ошибки не было
}

// NewMessage возвращает новое сообщение с указанным токеном и текстом.
func NewMessage(deviceToken, text string) *Message {
	return &Message{
		DeviceToken: deviceToken,
		Text:        text,
		BadgeNumber: -1,
		MaxRetries:  DefaultMaxRetries,
		Expiry:      time.Now().Add(DefaultExpiry),
	}
}

// Id возвращает уникальный идентификатор сообщения.
func (msg *Message) Id() uint32 { return msg.id }

// Retries returns how many transmission attempts have been made.
func (msg *Message) Retries() uint { return msg.retries }

// Status returns the APNS error status byte, 0 if none was received.
func (msg *Message) Status() uint8 { return msg.status }

// tryRetry charges one transmission attempt. It reports false once the
// attempt count exceeds MaxRetries, at which point the message must be
// discarded rather than framed.
func (msg *Message) tryRetry() bool {
	msg.retries++
	return msg.retries <= msg.MaxRetries
}

// isExpired возвращает true, если сообщение устарело.
func (msg *Message) isExpired(now time.Time) bool {
	return !msg.Expiry.IsZero() && now.After(msg.Expiry)
}

// String возвращает короткое строковое описание сообщения в виде токена и
// номера сообщения.
func (msg *Message) String() string {
	if msg.DeviceToken == "" {
		return fmt.Sprintf("untokened message [%d]", msg.id)
	}
	return fmt.Sprintf("%s [%d]", msg.DeviceToken, msg.id)
}
