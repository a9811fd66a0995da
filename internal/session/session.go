// Package session implements the AgentX session state machine: transport
// connect, Open handshake, sub-tree registration, the request loop,
// notification emission, and reconnect-with-backoff.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
)

// State is one of the AgentX session lifecycle states.
type State int

const (
	Disconnected State = iota
	Connecting
	Handshaking
	Registering
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Handshaking:
		return "HANDSHAKING"
	case Registering:
		return "REGISTERING"
	case Ready:
		return "READY"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Subtree is one OID sub-tree this agent registers ownership of at startup.
type Subtree struct {
	Prefix   agentx.OID
	Priority byte
}

// Dispatcher turns one incoming request PDU into a Response PDU. Request
// dispatch logic (MIB lookups, VarBind assembly) lives in package dispatch;
// Session only needs this narrow interface to avoid importing it, since
// dispatch itself has no need to import session.
type Dispatcher interface {
	Dispatch(msg agentx.Message, sysUpTime uint32) agentx.ResponseMessage
}

// Config configures a Session.
type Config struct {
	DaemonConfigPath string // scanned for the agentxsocket directive
	Descriptor       string // Open PDU descriptor string
	OpenTimeout      byte   // seconds, sent in the Open PDU
	Subtrees         []Subtree
	Dispatcher       Dispatcher
	Logger           *slog.Logger
}

// Session owns one AgentX connection to the master agent and drives its
// full lifecycle, reconnecting on failure.
type Session struct {
	cfg    Config
	logger *slog.Logger
	start  time.Time

	mu         sync.Mutex
	state      State
	sessionID  uint32
	transID    uint32
	conn       net.Conn
	writeCh    chan []byte
	writerDone chan struct{}

	packetID   uint32 // monotonic, wraps at 2^32
	failCount  int
}

// New builds a Session. It does not connect until Start is called.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 5
	}
	if cfg.Descriptor == "" {
		cfg.Descriptor = "SONiC-like AgentX sub-agent"
	}
	return &Session{cfg: cfg, logger: logger, start: time.Now()}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// sysUpTime returns ticks of 1/100s since the session (process) started,
// the sysUpTime convention every Response and Notify PDU reports.
func (s *Session) sysUpTime() uint32 {
	return uint32(time.Since(s.start).Milliseconds() / 10)
}

// Start runs the connect/handshake/register/request-loop/reconnect cycle
// until ctx is cancelled.
func (s *Session) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.setState(Closed)
			return
		}
		if err := s.connectAndServe(ctx); err != nil {
			s.failCount++
			level := slog.LevelWarn
			if s.failCount > 10 {
				level = slog.LevelError
			}
			s.logger.Log(ctx, level, "session failed, will reconnect", "err", err, "failures", s.failCount)
		} else {
			s.failCount = 0
		}
		s.setState(Disconnected)

		select {
		case <-ctx.Done():
			s.setState(Closed)
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (s *Session) connectAndServe(ctx context.Context) error {
	s.setState(Connecting)
	spec := ResolveTransport(s.cfg.DaemonConfigPath, s.logger)

	connCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(connCtx, spec.Network, spec.Address)
	if err != nil {
		return fmt.Errorf("connect %s %s: %w", spec.Network, spec.Address, err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.writeCh = make(chan []byte, 256)
	s.writerDone = make(chan struct{})
	s.mu.Unlock()

	writerCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()
	go s.runWriter(writerCtx, conn)

	time.Sleep(time.Second) //: 1s delay after connect before Open

	s.setState(Handshaking)
	if err := s.handshake(ctx, conn); err != nil {
		return err
	}

	s.setState(Registering)
	if err := s.registerSubtrees(ctx, conn); err != nil {
		return err
	}

	s.setState(Ready)
	s.logger.Info("session ready", "session_id", s.sessionID)
	err = s.requestLoop(ctx, conn)

	s.setState(Closing)
	// Stop the writer goroutine and wait for it to fully exit before writing
	// the Close PDU ourselves, so the two never race on the same conn.
	stopWriter()
	select {
	case <-s.writerDone:
	case <-time.After(5 * time.Second):
		s.logger.Warn("timed out waiting for writer goroutine to stop before close")
	}

	closeMsg := agentx.NewClose(s.sessionID, s.nextTransID(), s.nextPacketID(), agentx.CloseReasonShutdown)
	buf, encErr := agentx.Encode(closeMsg)
	if encErr != nil {
		s.logger.Error("failed to encode close PDU", "err", encErr)
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, werr := conn.Write(buf); werr != nil {
		s.logger.Error("failed to send close PDU", "err", werr)
	}
	return err
}

func (s *Session) handshake(ctx context.Context, conn net.Conn) error {
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	open := agentx.NewOpen(s.nextTransID(), s.nextPacketID(), s.cfg.OpenTimeout, agentx.OID{}, s.cfg.Descriptor)
	resp, err := s.roundTrip(hctx, conn, open)
	if err != nil {
		return fmt.Errorf("open handshake: %w", err)
	}
	if resp.Error != agentx.ErrNone {
		return fmt.Errorf("open handshake: master returned error %d", resp.Error)
	}
	s.sessionID = resp.H.SessionID
	if s.sessionID == 0 {
		return errors.New("open handshake: master returned session_id 0")
	}
	return nil
}

func (s *Session) registerSubtrees(ctx context.Context, conn net.Conn) error {
	for _, st := range s.cfg.Subtrees {
		reg := agentx.RegisterMessage{
			H: agentx.Header{
				Version: 1, Type: agentx.TypeRegister, Flags: agentx.FlagNetworkByteOrder,
				SessionID: s.sessionID, TransactionID: s.nextTransID(), PacketID: s.nextPacketID(),
			},
			Priority: st.Priority,
			Subtree:  st.Prefix,
		}
		resp, err := s.roundTrip(ctx, conn, reg)
		if err != nil {
			return fmt.Errorf("register %s: %w", st.Prefix, err)
		}
		if resp.Error != agentx.ErrNone && resp.Error != agentx.ErrDuplicateRegistration {
			return fmt.Errorf("register %s: master returned error %d", st.Prefix, resp.Error)
		}
	}
	return nil
}

// roundTrip writes msg and blocks for exactly the matching Response PDU.
// Used only during the synchronous handshake/registration phase, before the
// request loop and writer goroutine take over full-duplex traffic.
func (s *Session) roundTrip(ctx context.Context, conn net.Conn, msg agentx.Message) (agentx.ResponseMessage, error) {
	buf, err := agentx.Encode(msg)
	if err != nil {
		return agentx.ResponseMessage{}, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if _, err := conn.Write(buf); err != nil {
		return agentx.ResponseMessage{}, fmt.Errorf("write: %w", err)
	}
	reply, err := readPDU(conn)
	if err != nil {
		return agentx.ResponseMessage{}, err
	}
	resp, ok := reply.(agentx.ResponseMessage)
	if !ok {
		return agentx.ResponseMessage{}, fmt.Errorf("expected Response PDU, got type %T", reply)
	}
	return resp, nil
}

// requestLoop reads incoming request PDUs from the master until the
// connection closes or ctx is cancelled.
func (s *Session) requestLoop(ctx context.Context, conn net.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		msg, err := readPDU(conn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("request loop read: %w", err)
		}

		var resp agentx.ResponseMessage
		if s.cfg.Dispatcher != nil {
			resp = s.cfg.Dispatcher.Dispatch(msg, s.sysUpTime())
		} else {
			resp = agentx.NewResponse(msg.Header(), s.sysUpTime(), agentx.ErrGenErr, 0, nil)
		}
		out, err := agentx.Encode(resp)
		if err != nil {
			s.logger.Error("failed to encode response", "err", err)
			continue
		}
		select {
		case s.writeCh <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) runWriter(ctx context.Context, conn net.Conn) {
	defer close(s.writerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case buf, ok := <-s.writeCh:
			if !ok {
				return
			}
			if _, err := conn.Write(buf); err != nil {
				s.logger.Error("session write failed", "err", err)
				return
			}
		}
	}
}

// Notify encodes vbs as a Notify PDU using the session's current session_id
// and an agent-assigned, monotonically wrapping packet_id, and hands it to
// the writer goroutine. Called by the trap engine; safe for concurrent use.
func (s *Session) Notify(ctx context.Context, vbs []agentx.VarBind) error {
	s.mu.Lock()
	ready := s.state == Ready
	ch := s.writeCh
	sid := s.sessionID
	s.mu.Unlock()
	if !ready || ch == nil {
		return errors.New("session: not ready, notification dropped")
	}

	notif := agentx.NewNotify(sid, s.nextTransID(), s.nextPacketID(), vbs)
	buf, err := agentx.Encode(notif)
	if err != nil {
		return fmt.Errorf("encode notify: %w", err)
	}
	select {
	case ch <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) nextPacketID() uint32 { return atomic.AddUint32(&s.packetID, 1) }
func (s *Session) nextTransID() uint32  { return atomic.AddUint32(&s.transID, 1) }

// readPDU reads exactly one complete AgentX PDU (header + declared payload)
// off conn.
func readPDU(conn net.Conn) (agentx.Message, error) {
	hdr := make([]byte, agentx.HeaderSize)
	if _, err := readFull(conn, hdr); err != nil {
		return nil, err
	}
	h, err := agentx.PeekHeader(hdr)
	if err != nil {
		return nil, err
	}
	full := make([]byte, agentx.HeaderSize+int(h.PayloadLength))
	copy(full, hdr)
	if h.PayloadLength > 0 {
		if _, err := readFull(conn, full[agentx.HeaderSize:]); err != nil {
			return nil, err
		}
	}
	return agentx.Decode(full)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
