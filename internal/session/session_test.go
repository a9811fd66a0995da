package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
)

// fakeDispatcher answers every request with a fixed response error code so
// requestLoop's dispatch path can be exercised without the dispatch package.
type fakeDispatcher struct {
	errCode uint16
	calls   int
}

func (f *fakeDispatcher) Dispatch(msg agentx.Message, sysUpTime uint32) agentx.ResponseMessage {
	f.calls++
	return agentx.NewResponse(msg.Header(), sysUpTime, f.errCode, 0, nil)
}

func TestHandshakeSetsSessionID(t *testing.T) {
	client, master := net.Pipe()
	defer client.Close()
	defer master.Close()

	s := New(Config{})

	done := make(chan error, 1)
	go func() { done <- s.handshake(context.Background(), client) }()

	msg, err := readPDU(master)
	if err != nil {
		t.Fatalf("master read: %v", err)
	}
	open, ok := msg.(agentx.OpenMessage)
	if !ok {
		t.Fatalf("expected OpenMessage, got %T", msg)
	}

	resp := agentx.NewResponse(open.H, 0, agentx.ErrNone, 0, nil)
	resp.H.SessionID = 42
	buf, err := agentx.Encode(resp)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	if _, err := master.Write(buf); err != nil {
		t.Fatalf("master write: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if s.sessionID != 42 {
		t.Fatalf("expected session_id 42, got %d", s.sessionID)
	}
}

func TestHandshakeFailsOnMasterError(t *testing.T) {
	client, master := net.Pipe()
	defer client.Close()
	defer master.Close()

	s := New(Config{})

	done := make(chan error, 1)
	go func() { done <- s.handshake(context.Background(), client) }()

	msg, err := readPDU(master)
	if err != nil {
		t.Fatalf("master read: %v", err)
	}
	resp := agentx.NewResponse(msg.Header(), 0, agentx.ErrGenErr, 0, nil)
	buf, err := agentx.Encode(resp)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	if _, err := master.Write(buf); err != nil {
		t.Fatalf("master write: %v", err)
	}

	if err := <-done; err == nil {
		t.Fatal("expected handshake to fail when the master returns an error")
	}
}

func TestRegisterSubtreesAcceptsDuplicateRegistration(t *testing.T) {
	client, master := net.Pipe()
	defer client.Close()
	defer master.Close()

	s := New(Config{Subtrees: []Subtree{
		{Prefix: agentx.OID{1, 3, 6, 1, 2, 1, 1}, Priority: 127},
		{Prefix: agentx.OID{1, 3, 6, 1, 2, 1, 2}, Priority: 127},
	}})
	s.sessionID = 7

	done := make(chan error, 1)
	go func() { done <- s.registerSubtrees(context.Background(), client) }()

	errorsToReturn := []uint16{agentx.ErrNone, agentx.ErrDuplicateRegistration}
	for _, code := range errorsToReturn {
		msg, err := readPDU(master)
		if err != nil {
			t.Fatalf("master read: %v", err)
		}
		resp := agentx.NewResponse(msg.Header(), 0, code, 0, nil)
		buf, err := agentx.Encode(resp)
		if err != nil {
			t.Fatalf("encode response: %v", err)
		}
		if _, err := master.Write(buf); err != nil {
			t.Fatalf("master write: %v", err)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("registerSubtrees: %v", err)
	}
}

func TestRequestLoopDispatchesAndRepliesOverWriteChannel(t *testing.T) {
	client, master := net.Pipe()
	defer client.Close()
	defer master.Close()

	disp := &fakeDispatcher{errCode: agentx.ErrNone}
	s := New(Config{Dispatcher: disp})
	s.writeCh = make(chan []byte, 4)
	s.writerDone = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.runWriter(ctx, client)

	loopDone := make(chan error, 1)
	go func() { loopDone <- s.requestLoop(ctx, client) }()

	req := agentx.RequestMessage{H: agentx.Header{
		Version: 1, Type: agentx.TypeGet, Flags: agentx.FlagNetworkByteOrder,
		SessionID: 1, TransactionID: 1, PacketID: 1,
	}}
	buf, err := agentx.Encode(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if _, err := master.Write(buf); err != nil {
		t.Fatalf("master write: %v", err)
	}

	reply, err := readPDU(master)
	if err != nil {
		t.Fatalf("master read reply: %v", err)
	}
	resp, ok := reply.(agentx.ResponseMessage)
	if !ok {
		t.Fatalf("expected ResponseMessage, got %T", reply)
	}
	if resp.Error != agentx.ErrNone {
		t.Fatalf("expected ErrNone, got %d", resp.Error)
	}
	if disp.calls != 1 {
		t.Fatalf("expected dispatcher to be called once, got %d", disp.calls)
	}

	cancel()
	<-loopDone
}

func TestRequestLoopFallsBackToGenErrWithoutDispatcher(t *testing.T) {
	client, master := net.Pipe()
	defer client.Close()
	defer master.Close()

	s := New(Config{})
	s.writeCh = make(chan []byte, 4)
	s.writerDone = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.runWriter(ctx, client)

	loopDone := make(chan error, 1)
	go func() { loopDone <- s.requestLoop(ctx, client) }()

	req := agentx.RequestMessage{H: agentx.Header{
		Version: 1, Type: agentx.TypeGetNext, Flags: agentx.FlagNetworkByteOrder,
		SessionID: 1, TransactionID: 1, PacketID: 2,
	}}
	buf, err := agentx.Encode(req)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if _, err := master.Write(buf); err != nil {
		t.Fatalf("master write: %v", err)
	}

	reply, err := readPDU(master)
	if err != nil {
		t.Fatalf("master read reply: %v", err)
	}
	resp, ok := reply.(agentx.ResponseMessage)
	if !ok {
		t.Fatalf("expected ResponseMessage, got %T", reply)
	}
	if resp.Error != agentx.ErrGenErr {
		t.Fatalf("expected ErrGenErr without a configured dispatcher, got %d", resp.Error)
	}

	cancel()
	<-loopDone
}

func TestNotifyFailsWhenNotReady(t *testing.T) {
	s := New(Config{})
	if err := s.Notify(context.Background(), nil); err == nil {
		t.Fatal("expected Notify to fail when the session is not Ready")
	}
}

func TestNotifySucceedsWhenReady(t *testing.T) {
	s := New(Config{})
	s.writeCh = make(chan []byte, 1)
	s.sessionID = 9
	s.setState(Ready)

	if err := s.Notify(context.Background(), []agentx.VarBind{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case buf := <-s.writeCh:
		msg, err := agentx.Decode(buf)
		if err != nil {
			t.Fatalf("decode notify: %v", err)
		}
		if _, ok := msg.(agentx.NotifyMessage); !ok {
			t.Fatalf("expected NotifyMessage, got %T", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a PDU on writeCh")
	}
}

func TestStateStringCoversAllStates(t *testing.T) {
	states := []State{Disconnected, Connecting, Handshaking, Registering, Ready, Closing, Closed}
	seen := make(map[string]bool, len(states))
	for _, st := range states {
		s := st.String()
		if s == "UNKNOWN" {
			t.Fatalf("state %d stringified to UNKNOWN", st)
		}
		seen[s] = true
	}
	if len(seen) != len(states) {
		t.Fatalf("expected %d distinct state strings, got %d", len(states), len(seen))
	}
}
