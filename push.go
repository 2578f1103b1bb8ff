package apns

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"
)

const pushLogId = "push"

// пул байтовых буферов для формирования пакетов
var bufferPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}

// PushEngine delivers queued messages to an APNS gateway over a persistent
// TLS connection, framing each one as an enhanced-format packet.
//
// The engine is driven by Run, which the host calls on every tick of its own
// loop. Messages move between three queues: added messages wait in the send
// queue, written ones sit in the stage queue until their fate is known, and
// messages APNS rejected are parked in the error queue with their status
// byte until they expire.
type PushEngine struct {
	transport Transport
	table     *messageTable
	lastId    uint32

	timeout             time.Duration // закрытие неактивного соединения, 0 отключает
	connectRetryTimeout time.Duration
	logStatsInterval    time.Duration

	lastActivityTs time.Time
	connectRetryTs time.Time
	logStatsTs     time.Time

	numStatsSent         uint
	numStatsError        uint
	numStatsDisconnected uint

	now func() time.Time
	mu  sync.Mutex
}

// NewPushEngine возвращает инициализированный движок отправки уведомлений.
// Подключение к APNS произойдет на первом тике, на котором очередь отправки
// не пуста.
func NewPushEngine(config *Config) *PushEngine {
	transport := newTLSTransport(config, config.GatewayAddr(), pushLogId)
	return newPushEngine(transport, config.Timeout)
}

func newPushEngine(transport Transport, timeout time.Duration) *PushEngine {
	engine := &PushEngine{
		transport:           transport,
		table:               newMessageTable(),
		timeout:             timeout,
		connectRetryTimeout: ConnectRetryTimeout,
		logStatsInterval:    LogStatsInterval,
		now:                 time.Now,
	}
	engine.lastActivityTs = engine.now()
	engine.logStatsTs = engine.now().Add(engine.logStatsInterval)
	return engine
}

// Add присваивает сообщению идентификатор и помещает его в очередь на
// отправку.
func (engine *PushEngine) Add(msg *Message) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.lastId++
	msg.id = engine.lastId
	engine.lastActivityTs = engine.now()
	engine.table.add(msg)
}

// Remove удаляет сообщение из очереди на отправку. Messages already written
// or parked in the error queue are not touched.
func (engine *PushEngine) Remove(msg *Message) bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if _, q := engine.table.byId(msg.id); q != queueSend {
		return false
	}
	return engine.table.remove(msg.id)
}

// SendQueueSize возвращает количество сообщений в очереди на отправку.
func (engine *PushEngine) SendQueueSize() int {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	return engine.table.len(queueSend)
}

// SetTimeout задает время закрытия неактивного соединения. 0 отключает.
func (engine *PushEngine) SetTimeout(timeout time.Duration) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.timeout = timeout
}

// SetConnectRetryTimeout задает задержку перед повторной попыткой соединения.
func (engine *PushEngine) SetConnectRetryTimeout(timeout time.Duration) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.connectRetryTimeout = timeout
}

// SetLogStatsInterval задает интервал вывода статистики в лог.
func (engine *PushEngine) SetLogStatsInterval(interval time.Duration) {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	engine.logStatsInterval = interval
	engine.logStatsTs = engine.now().Add(interval)
}

// Run выполняет один тик движка: отправляет накопленные сообщения, проверяет
// ответы сервера и удаляет устаревшие сообщения. Возвращает false, если тик
// был пропущен из-за задержки переподключения.
func (engine *PushEngine) Run() bool {
	engine.mu.Lock()
	defer engine.mu.Unlock()

	now := engine.now()
	if now.Before(engine.connectRetryTs) {
		return false
	}
	if now.After(engine.logStatsTs) {
		engine.logStats()
	}
	engine.processMessageSendQueue()
	engine.expireIdleConnection()
	if numRows := engine.removeExpiredMessages(queueStage); numRows > 0 {
		logNotice(pushLogId, "Expired %d message(s) from stage queue.", numRows)
	}
	if numRows := engine.removeExpiredMessages(queueError); numRows > 0 {
		logNotice(pushLogId, "Expired %d message(s) from error queue.", numRows)
	}
	return true
}

// Close освобождает все очереди и закрывает соединение.
func (engine *PushEngine) Close() {
	engine.mu.Lock()
	defer engine.mu.Unlock()
	for _, q := range []queueName{queueSend, queueStage, queueError} {
		for _, id := range engine.table.snapshot(q) {
			engine.table.remove(id)
		}
	}
	engine.transport.Disconnect()
}

// processMessageSendQueue drains the send queue while the connection holds.
// Any response from APNS names a failed message and tears down the stream,
// so the drain stops there and the remaining messages wait for the next
// tick.
func (engine *PushEngine) processMessageSendQueue() {
	if engine.table.len(queueSend) == 0 {
		return
	}
	if !engine.transport.IsConnected() {
		if err := engine.transport.Connect(); err != nil {
			logWarn(pushLogId, "Messages (%d) ready to send but unable connect, will retry in %s.",
				engine.table.len(queueSend), engine.connectRetryTimeout)
			engine.connectRetryTs = engine.now().Add(engine.connectRetryTimeout)
			return
		}
	}
	logInfo(pushLogId, "Sending message queue: %d message(s) left in queue.",
		engine.table.len(queueSend))

	for _, id := range engine.table.snapshot(queueSend) {
		if !engine.transport.IsConnected() {
			break
		}
		msg, q := engine.table.byId(id)
		if msg == nil || q != queueSend {
			continue
		}
		engine.table.move(id, queueStage)
		engine.sendPayload(msg)
		if numBytes := engine.readResponseFromApns(); numBytes > 0 {
			logNotice(pushLogId, "Detected a response with %d bytes to [custom identifier: %d], deferring %d queued for reconnect.",
				numBytes, id, engine.table.len(queueSend))
			engine.transport.Disconnect()
			engine.numStatsDisconnected++
			engine.numStatsError++
			break
		}
	}
}

// sendPayload frames and writes one message. Every attempt is charged
// against the retry budget before framing; a short write pushes the message
// back to the send queue for the next tick.
func (engine *PushEngine) sendPayload(msg *Message) bool {
	now := engine.now()
	if msg.isExpired(now) {
		logNotice(pushLogId, "Expired message [custom identifier: %d]: removed from queue.", msg.id)
		engine.table.remove(msg.id)
		return false
	}
	if !msg.tryRetry() {
		logWarn(pushLogId, "Giving up on message [custom identifier: %d] after retry (%d) count expired.",
			msg.id, msg.retries)
		engine.table.remove(msg.id)
		return false
	}

	payload, err := msg.Payload()
	if err != nil {
		logWarn(pushLogId, "Message removed [custom identifier: %d]: %v", msg.id, err)
		msg.status = StatusInvalidPayloadSize
		engine.table.move(msg.id, queueError)
		return false
	}
	token, err := DeviceTokenToBinary(msg.DeviceToken)
	if err != nil {
		logWarn(pushLogId, "Message removed [custom identifier: %d]: %v", msg.id, err)
		msg.status = StatusInvalidToken
		engine.table.move(msg.id, queueError)
		return false
	}

	packet := framePacket(msg.id, uint32(now.Add(PacketExpiry).Unix()), token, payload)
	ret := engine.transport.Write(packet)
	logDebug(pushLogId, "Write returned: %d", ret)
	if ret != len(packet) {
		engine.table.move(msg.id, queueSend)
		logWarn(pushLogId, "Unable to send message [custom identifier: %d]. Wrote %d of %d bytes, pushing back to send queue.",
			msg.id, ret, len(packet))
		return false
	}

	logDebug(pushLogId, "TX |%s| bytes(%d)", safeBinaryOutput(packet), len(packet))
	logNotice(pushLogId, "Sending message [custom identifier: %d]: %d bytes, try #%d",
		msg.id, len(packet), msg.retries)
	engine.numStatsSent++
	engine.lastActivityTs = now
	return true
}

// framePacket assembles one enhanced-format push packet:
//
//	command(1) identifier(4) expiry(4) tokenLen(2) token(32) payloadLen(2) payload
//
// All multi-byte integers are network byte order.
func framePacket(id, expiry uint32, token, payload []byte) []byte {
	buf := getBuffer()
	defer putBuffer(buf)
	binary.Write(buf, binary.BigEndian, uint8(commandPushEnhanced))
	binary.Write(buf, binary.BigEndian, id)
	binary.Write(buf, binary.BigEndian, expiry)
	binary.Write(buf, binary.BigEndian, uint16(DeviceBinarySize))
	buf.Write(token)
	binary.Write(buf, binary.BigEndian, uint16(len(payload)))
	buf.Write(payload)
	packet := make([]byte, buf.Len())
	copy(packet, buf.Bytes())
	return packet
}

// readResponseFromApns performs the single bounded read that follows every
// written packet. Returns the number of bytes consumed, 0 when the server
// had nothing to say.
func (engine *PushEngine) readResponseFromApns() int {
	response := make([]byte, ErrorResponseSize)
	ret := engine.transport.Read(response)
	if ret < 1 {
		return 0
	}
	logInfo(pushLogId, "Received response from APNS that was %d bytes.", ret)
	engine.processResponseFromApns(response[:ret])
	return ret
}

// processResponseFromApns разбирает ответ сервера об ошибке и перемещает
// сообщение с указанным идентификатором в очередь ошибок. Staged messages
// written after the offender were dropped by APNS together with the stream
// and are returned to the send queue for retransmission.
func (engine *PushEngine) processResponseFromApns(response []byte) {
	logDebug(pushLogId, "RX |%s| bytes(%d)", safeBinaryOutput(response), len(response))
	if len(response) < ErrorResponseSize {
		logWarn(pushLogId, "Short response from APNS: %d bytes.", len(response))
		return
	}
	command := response[0]
	status := response[1]
	identifier := binary.BigEndian.Uint32(response[2:6])

	if command != ErrorResponseCommand {
		logWarn(pushLogId, "Response command unknown: %d for [custom identifier: %d]",
			command, identifier)
		return
	}

	if msg, q := engine.table.byId(identifier); msg != nil && q == queueStage {
		msg.status = status
		engine.table.move(identifier, queueError)
	}
	if resend := engine.table.stageAfter(identifier); len(resend) > 0 {
		for _, id := range resend {
			engine.table.move(id, queueSend)
		}
		logNotice(pushLogId, "Returning %d staged message(s) after [custom identifier: %d] to send queue.",
			len(resend), identifier)
	}

	if status == StatusNoErrors {
		logInfo(pushLogId, "Message response [custom identifier: %d]: %s (%d)",
			identifier, StatusText(status), status)
		return
	}
	logWarn(pushLogId, "Message response [custom identifier: %d]: %s (%d)",
		identifier, StatusText(status), status)
}

// expireIdleConnection закрывает соединение, если оно не активно дольше
// заданного времени.
func (engine *PushEngine) expireIdleConnection() {
	if engine.timeout == 0 || !engine.transport.IsConnected() {
		return
	}
	if engine.now().Before(engine.lastActivityTs.Add(engine.timeout)) {
		return
	}
	logNotice(pushLogId, "Connection expired after %s.", engine.timeout)
	engine.transport.Disconnect()
}

// removeExpiredMessages удаляет из очереди устаревшие сообщения.
func (engine *PushEngine) removeExpiredMessages(q queueName) int {
	now := engine.now()
	var numRows int
	for _, id := range engine.table.snapshot(q) {
		if msg, _ := engine.table.byId(id); msg != nil && msg.isExpired(now) {
			engine.table.remove(id)
			numRows++
		}
	}
	return numRows
}

// logStats выводит в лог счетчики отправленных сообщений, ошибок и
// разрывов соединения и сбрасывает их.
func (engine *PushEngine) logStats() {
	engine.logStatsTs = engine.now().Add(engine.logStatsInterval)
	logNotice(pushLogId, "Statistics Sent(%d) Errors(%d) Disconnects(%d) next in %s",
		engine.numStatsSent, engine.numStatsError, engine.numStatsDisconnected,
		engine.logStatsInterval)
	engine.numStatsSent = 0
	engine.numStatsError = 0
	engine.numStatsDisconnected = 0
}
