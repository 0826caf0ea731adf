// Package apclient keeps one websocket to a multiworld server alive. It owns
// the socket and the retry bookkeeping; tracker state lives elsewhere and is
// only ever touched from the handler callbacks.
package apclient

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"celestetracker.ai/internal/protocol"
)

type State string

const (
	StateDisconnected         State = "disconnected"
	StateConnecting           State = "connecting"
	StateOpen                 State = "open"
	StateManuallyDisconnected State = "manually_disconnected"
)

const (
	DefaultRetryInterval = 5 * time.Second
	DefaultMaxRetries    = 10

	manualCloseReason = "Manual disconnect"
)

var ErrNotConnected = errors.New("not connected")

// Config zero values take the package defaults.
type Config struct {
	URL              string
	RetryInterval    time.Duration
	MaxRetries       int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadTimeout of zero waits forever; the server does not ping.
	ReadTimeout time.Duration
	Logger      *log.Logger
}

// Handlers run one at a time on the manager's delivery goroutine, in the
// order the events happened. Any of them may be nil.
type Handlers struct {
	OnOpen      func()
	OnMessages  func(msgs []protocol.Inbound)
	OnClose     func(code int, reconnecting bool)
	OnExhausted func(attempts int)
	OnState     func(s State)
}

type Manager struct {
	cfg Config
	h   Handlers

	mu      sync.Mutex
	url     string
	state   State
	conn    *websocket.Conn
	retries int
	timer   *time.Timer
	closed  bool
	// gen identifies the current dial. Disconnect, Connect and reconnect
	// bump it, so callbacks from an older socket are ignored.
	gen uint64
	// notify holds state changes made under mu, flushed by unlock.
	notify []State

	writeMu sync.Mutex

	events    chan func()
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(cfg Config, h Handlers) *Manager {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	m := &Manager{
		cfg:    cfg,
		h:      h,
		url:    cfg.URL,
		state:  StateDisconnected,
		events: make(chan func(), 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.deliver()
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Retries is the number of reconnects scheduled since the last open.
func (m *Manager) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Connect dials url, or the last used URL when url is empty. It is a no-op
// while a dial is in flight or the socket is open.
func (m *Manager) Connect(url string) {
	m.mu.Lock()
	if m.closed || m.state == StateConnecting || m.state == StateOpen {
		m.unlock()
		return
	}
	if url != "" {
		m.url = url
	}
	if m.state == StateManuallyDisconnected {
		m.retries = 0
	}
	m.stopTimerLocked()
	m.setStateLocked(StateConnecting)
	m.gen++
	gen, target := m.gen, m.url
	m.unlock()

	go m.dial(target, gen)
}

// Disconnect closes the socket with a normal closure and stops retrying
// until the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.unlock()
		return
	}
	m.retries = m.cfg.MaxRetries
	m.stopTimerLocked()
	m.setStateLocked(StateManuallyDisconnected)
	m.gen++
	c := m.conn
	m.conn = nil
	m.unlock()

	if c != nil {
		m.closeConn(c, websocket.CloseNormalClosure, manualCloseReason)
		m.logf("closed code=%d manual=true", websocket.CloseNormalClosure)
		m.emitClose(websocket.CloseNormalClosure, false)
	}
}

// Send writes msgs as one frame. It reports false when the socket is not
// open or the write fails.
func (m *Manager) Send(msgs ...protocol.Outbound) bool {
	return m.SendErr(msgs...) == nil
}

func (m *Manager) SendErr(msgs ...protocol.Outbound) error {
	m.mu.Lock()
	c := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()
	if c == nil || !open {
		return ErrNotConnected
	}
	b, err := protocol.EncodeFrame(msgs...)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
		m.logf("send_failed err=%v", err)
		return err
	}
	return nil
}

// Close cancels any pending reconnect, detaches the handlers and closes the
// socket. The manager cannot be reused. Close waits for the handler in
// flight, so handlers must not call it.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.gen++
		m.stopTimerLocked()
		c := m.conn
		m.conn = nil
		m.state = StateDisconnected
		m.mu.Unlock()

		close(m.stop)
		if c != nil {
			m.closeConn(c, websocket.CloseNormalClosure, "")
		}
		<-m.done
	})
}

func (m *Manager) dial(url string, gen uint64) {
	d := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, resp, err := d.Dial(url, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.logf("dial_failed url=%s err=%v", url, err)
		m.lost(gen, websocket.CloseAbnormalClosure)
		return
	}

	m.mu.Lock()
	if m.closed || m.gen != gen {
		// Disconnected, redialed or closed while the handshake was in flight.
		m.unlock()
		m.closeConn(conn, websocket.CloseNormalClosure, manualCloseReason)
		return
	}
	m.conn = conn
	m.retries = 0
	m.setStateLocked(StateOpen)
	m.unlock()

	m.logf("open url=%s", url)
	if m.h.OnOpen != nil {
		m.emit(m.h.OnOpen)
	}
	go m.readLoop(conn, gen)
}

func (m *Manager) readLoop(c *websocket.Conn, gen uint64) {
	for {
		if m.cfg.ReadTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}
		_, b, err := c.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code = ce.Code
			}
			_ = c.Close()
			m.lost(gen, code)
			return
		}
		msgs, err := protocol.DecodeFrame(b)
		if err != nil {
			m.logf("frame_invalid bytes=%d err=%v", len(b), err)
			continue
		}
		if len(msgs) == 0 || m.h.OnMessages == nil {
			continue
		}
		m.emit(func() { m.h.OnMessages(msgs) })
	}
}

// lost handles the end of a connection or a failed dial started as gen.
func (m *Manager) lost(gen uint64, code int) {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.unlock()
		return
	}
	m.conn = nil
	m.setStateLocked(StateDisconnected)

	reconnecting := false
	exhausted := 0
	switch {
	case code == websocket.CloseNormalClosure:
	case m.retries < m.cfg.MaxRetries:
		m.retries++
		reconnecting = true
		m.stopTimerLocked()
		m.timer = time.AfterFunc(m.cfg.RetryInterval, m.reconnect)
	default:
		exhausted = m.retries
	}
	attempt := m.retries
	m.unlock()

	m.logf("closed code=%d reconnecting=%v attempt=%d max=%d", code, reconnecting, attempt, m.cfg.MaxRetries)
	m.emitClose(code, reconnecting)
	if exhausted > 0 {
		m.logf("reconnect_exhausted attempts=%d", exhausted)
		if m.h.OnExhausted != nil {
			m.emit(func() { m.h.OnExhausted(exhausted) })
		}
	}
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	m.timer = nil
	if m.closed || m.state != StateDisconnected {
		m.unlock()
		return
	}
	m.setStateLocked(StateConnecting)
	m.gen++
	gen, url := m.gen, m.url
	m.unlock()

	m.dial(url, gen)
}

func (m *Manager) closeConn(c *websocket.Conn, code int, reason string) {
	m.writeMu.Lock()
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	m.writeMu.Unlock()
	_ = c.Close()
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.h.OnState != nil {
		m.notify = append(m.notify, s)
	}
}

// unlock releases mu and then queues the state changes made while holding
// it, so emit never blocks with the lock held.
func (m *Manager) unlock() {
	n := m.notify
	m.notify = nil
	m.mu.Unlock()
	for _, s := range n {
		m.emit(func() { m.h.OnState(s) })
	}
}

func (m *Manager) emitClose(code int, reconnecting bool) {
	if m.h.OnClose != nil {
		m.emit(func() { m.h.OnClose(code, reconnecting) })
	}
}

// emit queues f for the delivery goroutine. It drops f once the manager is
// closed.
func (m *Manager) emit(f func()) {
	select {
	case m.events <- f:
	case <-m.stop:
	}
}

func (m *Manager) deliver() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case f := <-m.events:
			f()
		}
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}
