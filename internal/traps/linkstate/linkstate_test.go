package linkstate

import (
	"context"
	"testing"

	"github.com/sonic-net/snmp-subagent/internal/store"
	"github.com/sonic-net/snmp-subagent/internal/trap"
)

type fakeStore struct {
	entries map[string]map[string]string
}

func (f *fakeStore) Get(ctx context.Context, db int, key string) (map[string]string, error) {
	return f.entries[key], nil
}
func (f *fakeStore) Keys(ctx context.Context, db int, pattern string) ([]string, error) {
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	return keys, nil
}
func (f *fakeStore) Subscribe(ctx context.Context, db int, patterns []string) (<-chan store.Message, func() error, error) {
	return nil, nil, nil
}
func (f *fakeStore) Close() error { return nil }

func TestInitSeedsCacheWithoutEmittingNotifications(t *testing.T) {
	st := &fakeStore{entries: map[string]map[string]string{
		"PORT_TABLE:Ethernet0": {"admin_status": "up", "oper_status": "up"},
	}}
	h := New(st, nil)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	notif, err := h.Process(trap.Event{Channel: "__keyspace@0__:PORT_TABLE:Ethernet0", Message: "hset"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if notif != nil {
		t.Fatalf("expected no trap for an already-cached unchanged state, got %+v", notif)
	}
}

func TestProcessEmitsLinkDownOnOperStatusChange(t *testing.T) {
	st := &fakeStore{entries: map[string]map[string]string{
		"PORT_TABLE:Ethernet0": {"admin_status": "up", "oper_status": "up"},
	}}
	h := New(st, nil)
	if err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	st.entries["PORT_TABLE:Ethernet0"] = map[string]string{"admin_status": "up", "oper_status": "down"}
	notif, err := h.Process(trap.Event{Channel: "__keyspace@0__:PORT_TABLE:Ethernet0", Message: "hset"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if notif == nil {
		t.Fatal("expected a trap notification on oper_status transition")
	}
	if !notif.TrapOID.Equal(linkDownTrapOID) {
		t.Fatalf("expected linkDown trap OID, got %v", notif.TrapOID)
	}
	if len(notif.VarBinds) != 3 {
		t.Fatalf("expected 3 varbinds (ifIndex, adminStatus, operStatus), got %d", len(notif.VarBinds))
	}
}

func TestProcessIgnoresNonPortTableChannels(t *testing.T) {
	h := New(&fakeStore{entries: map[string]map[string]string{}}, nil)
	notif, err := h.Process(trap.Event{Channel: "__keyspace@0__:LAG_TABLE:PortChannel0001", Message: "hset"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if notif != nil {
		t.Fatalf("expected nil for a non-PORT_TABLE channel, got %+v", notif)
	}
}
