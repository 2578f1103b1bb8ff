package apns

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Transport is the capability boundary between an engine and its TLS
// connection. Tests substitute in-memory fakes.
//
// Write returns the number of bytes written, 0 when the connection would
// block (retry on the next tick) and -1 on fatal errors, which disconnect.
// Read polls for up to TimeoutRead and returns the number of bytes read, or
// -1 when no data is ready or the connection has closed.
type Transport interface {
	Connect() error
	Write(packet []byte) int
	Read(buf []byte) int
	Disconnect()
	IsConnected() bool
}

// tlsTransport is the TLS 1.2 client transport used by both the push and
// the feedback channels. The TLS configuration is assembled on the first
// Connect from the client certificate pair and the CA directory; the server
// name is always verified against the certificate during the handshake.
type tlsTransport struct {
	addr      string
	config    *Config
	logId     string
	tlsConfig *tls.Config
	conn      *tls.Conn
	connected bool
	mu        sync.Mutex
}

func newTLSTransport(config *Config, addr, logId string) *tlsTransport {
	return &tlsTransport{
		addr:   addr,
		config: config,
		logId:  logId,
	}
}

// initialize assembles the TLS client configuration and keeps it for later
// connects. Certificate, key and CA failures are returned before any dial;
// nothing is kept after a failure, so the next Connect tries again.
func (t *tlsTransport) initialize() error {
	if t.tlsConfig != nil {
		return nil
	}
	cert := t.config.Certificate
	if cert == nil {
		pair, err := tls.LoadX509KeyPair(t.config.CertFile, t.config.KeyFile)
		if err != nil {
			return fmt.Errorf("load certificate pair: %w", err)
		}
		cert = &pair
	}
	serverName, _, err := net.SplitHostPort(t.addr)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}
	if t.config.CAPath != "" {
		pool, err := loadCAPath(t.config.CAPath)
		if err != nil {
			return fmt.Errorf("load CA path %s: %w", t.config.CAPath, err)
		}
		tlsConfig.RootCAs = pool
	}
	t.tlsConfig = tlsConfig
	return nil
}

// Connect устанавливает соединение с APNS-сервисом.
func (t *tlsTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}
	if err := t.initialize(); err != nil {
		logError(t.logId, "Could not initialize TLS context: %v", err)
		return err
	}
	logNotice(t.logId, "Connecting to %s", t.addr)
	dialer := &net.Dialer{Timeout: TimeoutConnect}
	// APNS gateways are IPv4 only.
	conn, err := tls.DialWithDialer(dialer, "tcp4", t.addr, t.tlsConfig)
	if err != nil {
		logError(t.logId, "Could not connect to %s: %v", t.addr, err)
		return err
	}
	logNotice(t.logId, "Connected to %s", t.addr)
	logDebug(t.logId, "%s", tlsConnectionStateString(conn))
	t.conn = conn
	t.connected = true
	return nil
}

// Write записывает пакет в установленное соединение.
func (t *tlsTransport) Write(packet []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return -1
	}
	t.conn.SetWriteDeadline(time.Now().Add(TimeoutWrite))
	n, err := t.conn.Write(packet)
	if err == nil {
		return n
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logDebug(t.logId, "(TLS+TX) Want Write")
		return 0
	}
	logDebug(t.logId, "(TLS+TX) %v", err)
	t.disconnect()
	return -1
}

// Read опрашивает соединение и читает из него не более len(buf) байт.
func (t *tlsTransport) Read(buf []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return -1
	}
	t.conn.SetReadDeadline(time.Now().Add(TimeoutRead))
	n, err := t.conn.Read(buf)
	if n > 0 {
		return n
	}
	if err == nil {
		return 0
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		// nothing to read within the poll window
		return -1
	}
	logDebug(t.logId, "(TLS+RX) %v", err)
	t.disconnect()
	return -1
}

// Disconnect закрывает соединение. Idempotent.
func (t *tlsTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnect()
}

func (t *tlsTransport) disconnect() {
	if t.conn == nil {
		t.connected = false
		return
	}
	logNotice(t.logId, "Disconnecting from %s", t.addr)
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logError(t.logId, "Could not close connection to %s: %v", t.addr, err)
	}
	t.conn = nil
	t.connected = false
}

// IsConnected отражает последнее наблюдаемое состояние соединения.
func (t *tlsTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// tlsConnectionStateString выводит в лог информацию о TLS-соединении.
func tlsConnectionStateString(conn *tls.Conn) string {
	state := conn.ConnectionState()
	return fmt.Sprint("Connection state:",
		"\n------------------------------------------------------------",
		"\n  Local Address:       ", conn.LocalAddr(),
		"\n  Remote Address:      ", conn.RemoteAddr(),
		"\n  TLS version:         ", state.Version,
		"\n  Handshake Complete:  ", state.HandshakeComplete,
		"\n  Did Resume:          ", state.DidResume,
		"\n  Cipher Suite:        ", state.CipherSuite,
		"\n------------------------------------------------------------")
}
