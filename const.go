package apns

import (
	"errors"
	"time"
)

// Адреса APNS и Feedback серверов.
const (
	ServerApns            = "gateway.push.apple.com"
	ServerApnsSandbox     = "gateway.sandbox.push.apple.com"
	ServerFeedback        = "feedback.push.apple.com"
	ServerFeedbackSandbox = "feedback.sandbox.push.apple.com"

	PortApns     = 2195
	PortFeedback = 2196
)

// Wire format sizes and commands of the legacy binary protocol.
const (
	DeviceBinarySize     = 32  // binary device token length
	MaxPayloadSize       = 256 // maximum serialized payload length
	ErrorResponseSize    = 6   // command + status + identifier
	ErrorResponseCommand = 8
	FeedbackResponseSize = 38 // timestamp + token length + token

	commandPushEnhanced = 1
)

// Используемые сервисом времена задержек и ожиданий.
var (
	// TimeoutConnect указывает время ожидания ответа от сервера при соединении.
	TimeoutConnect = 30 * time.Second
	// TimeoutRead is the poll window of a single non-blocking read.
	TimeoutRead = 100 * time.Millisecond
	// TimeoutWrite bounds a single packet write.
	TimeoutWrite = 10 * time.Second
	// ConnectRetryTimeout is the default backoff after a failed connect.
	ConnectRetryTimeout = 60 * time.Second
	// LogStatsInterval is the default period between stats log lines.
	LogStatsInterval = 3600 * time.Second
	// PacketExpiry is the on-wire grace period sent in every enhanced packet.
	PacketExpiry = 300 * time.Second
)

// Defaults applied to new messages.
var (
	// DefaultMaxRetries bounds transmission attempts per message.
	DefaultMaxRetries uint = 2
	// DefaultExpiry is how long a new message stays deliverable.
	DefaultExpiry = time.Hour
)

// APNS error response status codes.
const (
	StatusNoErrors           uint8 = 0
	StatusProcessingError    uint8 = 1
	StatusMissingDeviceToken uint8 = 2
	StatusMissingTopic       uint8 = 3
	StatusMissingPayload     uint8 = 4
	StatusInvalidTokenSize   uint8 = 5
	StatusInvalidTopicSize   uint8 = 6
	StatusInvalidPayloadSize uint8 = 7
	StatusInvalidToken       uint8 = 8
	StatusUnknown            uint8 = 255
)

var apnsStatusMessages = map[uint8]string{
	StatusNoErrors:           "NO ERROR",
	StatusProcessingError:    "PROCESSING ERROR",
	StatusMissingDeviceToken: "MISSING DEVICE TOKEN",
	StatusMissingTopic:       "MISSING TOPIC",
	StatusMissingPayload:     "MISSING PAYLOAD",
	StatusInvalidTokenSize:   "INVALID TOKEN SIZE",
	StatusInvalidTopicSize:   "INVALID TOPIC SIZE",
	StatusInvalidPayloadSize: "INVALID PAYLOAD SIZE",
	StatusInvalidToken:       "INVALID TOKEN",
	StatusUnknown:            "NONE UNKNOWN",
}

// StatusText returns the log description of an APNS status byte.
func StatusText(status uint8) string {
	if text, ok := apnsStatusMessages[status]; ok {
		return text
	}
	return apnsStatusMessages[StatusUnknown]
}

// Ошибки, возвращаемые при подготовке уведомлений к отправке.
var (
	ErrInvalidToken    = errors.New("device token does not decode to 32 bytes")
	ErrPayloadEmpty    = errors.New("payload is empty")
	ErrPayloadTooLarge = errors.New("payload is too large")
	ErrNotConnected    = errors.New("not connected")
)
