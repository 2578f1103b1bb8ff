package apns

import (
	"encoding/binary"
	"sync"
	"time"
)

const feedbackLogId = "feedback"

// FeedbackRecord описывает один элемент ответа feedback-сервера: токен
// устройства, ставший недоступным, и момент, когда APNS это установил.
type FeedbackRecord struct {
	Timestamp   time.Time
	TokenLen    uint16
	DeviceToken string // 64 lowercase hex characters
}

// String возвращает строковое представление токена.
func (r *FeedbackRecord) String() string { return r.DeviceToken }

// FeedbackEngine периодически опрашивает feedback-сервер APNS и отдает
// полученные записи обработчику.
//
// The feedback channel is short-lived by protocol: each poll opens a fresh
// connection, drains every pending 38-byte record and disconnects. Records
// go to the handler when one is set, otherwise they accumulate on an
// internal queue the caller drains with Feedback.
type FeedbackEngine struct {
	transport   Transport
	timeout     time.Duration // интервал между опросами
	nextCheckTs time.Time
	handler     func(*FeedbackRecord)
	records     []*FeedbackRecord
	now         func() time.Time
	mu          sync.Mutex
}

// NewFeedbackEngine возвращает инициализированный движок опроса
// feedback-сервера. handler может быть nil.
func NewFeedbackEngine(config *Config, handler func(*FeedbackRecord)) *FeedbackEngine {
	transport := newTLSTransport(config, config.FeedbackAddr(), feedbackLogId)
	return newFeedbackEngine(transport, config.Timeout, handler)
}

func newFeedbackEngine(transport Transport, timeout time.Duration, handler func(*FeedbackRecord)) *FeedbackEngine {
	engine := &FeedbackEngine{
		transport: transport,
		timeout:   timeout,
		handler:   handler,
		now:       time.Now,
	}
	engine.nextCheckTs = engine.now().Add(timeout)
	return engine
}

// Run выполняет один тик движка. Если время очередного опроса еще не
// наступило, возвращает false.
func (engine *FeedbackEngine) Run() bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	if engine.now().Before(engine.nextCheckTs) {
		return false
	}
	engine.nextCheckTs = engine.now().Add(engine.timeout)

	if !engine.transport.IsConnected() {
		if err := engine.transport.Connect(); err != nil {
			logWarn(feedbackLogId, "Could not connect to feedback server, will try again later.")
			return false
		}
	}
	logNotice(feedbackLogId, "Checking APNS feedback servers after %s.", engine.timeout)
	engine.readFeedbackFromApns()
	engine.transport.Disconnect()
	return true
}

// Feedback возвращает накопленные записи и очищает внутреннюю очередь.
func (engine *FeedbackEngine) Feedback() []*FeedbackRecord {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	records := engine.records
	engine.records = nil
	return records
}

// readFeedbackFromApns drains complete 38-byte records until the read
// reports no more data.
func (engine *FeedbackEngine) readFeedbackFromApns() {
	response := make([]byte, FeedbackResponseSize)
	for {
		ret := engine.transport.Read(response)
		if ret < 1 {
			return
		}
		logDebug(feedbackLogId, "Received feedback from APNS that was %d bytes.", ret)
		if ret < FeedbackResponseSize {
			logWarn(feedbackLogId, "Short feedback record: %d bytes.", ret)
			return
		}
		engine.processFeedbackFromApns(response)
	}
}

// processFeedbackFromApns разбирает запись feedback-сервера:
//
//	timestamp(4) tokenLen(2) deviceToken(32)
//
// in network byte order, and emits it.
func (engine *FeedbackEngine) processFeedbackFromApns(response []byte) {
	timestamp := binary.BigEndian.Uint32(response[0:4])
	tokenLen := binary.BigEndian.Uint16(response[4:6])
	deviceToken := DeviceTokenFromBinary(response[6 : 6+DeviceBinarySize])

	record := &FeedbackRecord{
		Timestamp:   time.Unix(int64(timestamp), 0).UTC(),
		TokenLen:    tokenLen,
		DeviceToken: deviceToken,
	}
	logInfo(feedbackLogId, "Feedback response: timestamp(%d) tokenLen(%d) deviceToken(%s)",
		timestamp, tokenLen, deviceToken)

	if engine.handler != nil {
		engine.handler(record)
		return
	}
	engine.records = append(engine.records, record)
}
