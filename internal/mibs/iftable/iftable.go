// Package iftable implements a slice of RFC 1213's ifTable (prefix
// 1.3.6.1.2.1.2.2.1): ifIndex, ifDescr, ifType, ifAdminStatus, ifOperStatus.
// It is a demonstration module grounded in
// original_source/src/sonic_ax_impl/mibs/ietf/rfc1213.py's InterfacesUpdater
// (_get_if_entry, _get_status, get_if_type), adapted onto this repo's
// store/updater/mib abstractions: one snapshot pass per cycle over
// PORT_TABLE:Ethernet* replaces the original's per-request, per-sub-id DB read.
package iftable

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/mib"
	"github.com/sonic-net/snmp-subagent/internal/store"
	"github.com/sonic-net/snmp-subagent/internal/updater"
)

// prefix is the ifEntry columnar group's OID root.
var prefix = agentx.OID{1, 3, 6, 1, 2, 1, 2, 2, 1}

// applDB is the APPL_DB-equivalent database index PORT_TABLE entries are
// snapshotted from.
const applDB = 0

const portTablePattern = "PORT_TABLE:Ethernet*"

// ethernetCsmacd is the only ifType this demonstration module reports
// (RFC1213's IfTypes.ethernetCsmacd); SONiC front-panel ports are all
// ethernet-like regardless of speed per RFC 3635.
const ethernetCsmacd = 6

var adminOperStatusMap = map[string]int32{
	"up":             1,
	"down":           2,
	"testing":        3,
	"unknown":        4,
	"dormant":        5,
	"notPresent":     6,
	"lowerLayerDown": 7,
}

// port is one snapshotted ifTable row.
type port struct {
	ifIndex     int32
	name        string
	adminStatus string
	operStatus  string
}

// defaultFrequency and defaultReinitRate are used whenever New is given a
// zero or negative freq or reinitRate, respectively.
const (
	defaultFrequency  = 10 * time.Second
	defaultReinitRate = 30
)

// Updater snapshots PORT_TABLE:Ethernet* once per cycle: readers always see the last fully-committed snapshot.
type Updater struct {
	st     store.Store
	logger *slog.Logger

	frequency  time.Duration
	reinitRate int

	mu    sync.RWMutex
	ports map[int32]port
	order []int32 // ifIndex, ascending — backs the GetNext walk
}

// New builds the ifTable updater. freq and reinitRate override the built-in
// cadence (10s, every 30 cycles) when positive; zero/negative falls back to
// the default, letting callers pass an operator runtime-config override
// straight through without having to know the built-in value.
func New(st store.Store, freq time.Duration, reinitRate int, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if freq <= 0 {
		freq = defaultFrequency
	}
	if reinitRate <= 0 {
		reinitRate = defaultReinitRate
	}
	return &Updater{st: st, logger: logger, ports: make(map[int32]port), frequency: freq, reinitRate: reinitRate}
}

func (u *Updater) Name() string { return "iftable" }

func (u *Updater) ReinitData(ctx context.Context) error {
	return u.UpdateData(ctx)
}

func (u *Updater) UpdateData(ctx context.Context) error {
	keys, err := u.st.Keys(ctx, applDB, portTablePattern)
	if err != nil {
		return &updater.RecoverableError{Err: err}
	}

	ports := make(map[int32]port, len(keys))
	order := make([]int32, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, "PORT_TABLE:")
		idx, ok := ifIndexFor(name)
		if !ok {
			continue
		}
		entry, err := u.st.Get(ctx, applDB, key)
		if err != nil {
			return &updater.RecoverableError{Err: err}
		}
		adminStatus := entry["admin_status"]
		if adminStatus == "" {
			adminStatus = "down"
		}
		operStatus := entry["oper_status"]
		if operStatus == "" {
			operStatus = "down"
		}
		ports[idx] = port{ifIndex: idx, name: name, adminStatus: adminStatus, operStatus: operStatus}
		order = append(order, idx)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	u.mu.Lock()
	u.ports = ports
	u.order = order
	u.mu.Unlock()
	return nil
}

func (u *Updater) ReinitConnection(ctx context.Context) error { return nil }

func (u *Updater) Frequency() time.Duration { return u.frequency }

func (u *Updater) ReinitRate() int { return u.reinitRate }

// ifIndexFor parses the numeric suffix of an interface name ("Ethernet0" ->
// 1, "Ethernet4" -> 5), shifted up by one so ifIndex stays within the
// SNMP-mandated positive range even for port 0.
func ifIndexFor(name string) (int32, bool) {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return 0, false
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, false
	}
	return int32(n) + 1, true
}

func (u *Updater) instances() []agentx.OID {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]agentx.OID, len(u.order))
	for i, idx := range u.order {
		out[i] = agentx.OID{uint32(idx)}
	}
	return out
}

func (u *Updater) lookup(sub agentx.OID, col func(port) (agentx.Value, bool)) (agentx.Value, bool) {
	if len(sub) != 1 {
		return agentx.Value{}, false
	}
	u.mu.RLock()
	p, ok := u.ports[int32(sub[0])]
	u.mu.RUnlock()
	if !ok {
		return agentx.Value{}, false
	}
	return col(p)
}

func ifIndexCol(p port) (agentx.Value, bool) { return agentx.NewInteger(p.ifIndex), true }
func ifDescrCol(p port) (agentx.Value, bool) { return agentx.NewOctetString([]byte(p.name)), true }
func ifTypeCol(p port) (agentx.Value, bool)  { return agentx.NewInteger(ethernetCsmacd), true }

func ifAdminStatusCol(p port) (agentx.Value, bool) {
	return agentx.NewInteger(statusValue(p.adminStatus)), true
}

func ifOperStatusCol(p port) (agentx.Value, bool) {
	return agentx.NewInteger(statusValue(p.operStatus)), true
}

func statusValue(s string) int32 {
	if v, ok := adminOperStatusMap[s]; ok {
		return v
	}
	return adminOperStatusMap["down"]
}

// Register adds the five ifEntry columns to b, all backed by this updater.
func Register(b *mib.Builder, u *Updater) {
	register := func(sub uint32, col func(port) (agentx.Value, bool)) {
		leaf := mib.NewTableLeaf(prefix.Append(sub), u.instances, func(s agentx.OID) (agentx.Value, bool) {
			return u.lookup(s, col)
		})
		b.Register(leaf, u)
	}
	register(1, ifIndexCol)
	register(2, ifDescrCol)
	register(3, ifTypeCol)
	register(7, ifAdminStatusCol)
	register(8, ifOperStatusCol)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
