// Package system implements the MIB-II system group (RFC 1213 §6.1,
// prefix 1.3.6.1.2.1.1): sysDescr, sysObjectID, sysUpTime, sysName. It is a
// demonstration module grounded in
// original_source/src/sonic_ax_impl/mibs/ietf/rfc2737.py's DEVICE_METADATA
// lookup, adapted onto this repo's store abstraction and scalar-leaf
// registration pattern.
package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/mib"
	"github.com/sonic-net/snmp-subagent/internal/store"
	"github.com/sonic-net/snmp-subagent/internal/updater"
)

// prefix is the system group's OID root.
var prefix = agentx.OID{1, 3, 6, 1, 2, 1, 1}

// deviceMetadataDB is the CONFIG_DB-equivalent database index system state
// is read from.
const deviceMetadataDB = 4

const deviceMetadataKey = "DEVICE_METADATA|localhost"

// defaultFrequency and defaultReinitRate are used whenever New is given a
// zero or negative freq or reinitRate, respectively.
const (
	defaultFrequency  = 60 * time.Second
	defaultReinitRate = 1
)

// Updater reads the device's identity from the store on every ReinitData and
// UpdateData call; sysUpTime is computed from a fixed start time and needs
// no store access at all.
type Updater struct {
	st     store.Store
	logger *slog.Logger
	start  time.Time

	frequency  time.Duration
	reinitRate int

	mu       sync.RWMutex
	descr    string
	objectID string
	name     string
}

// New builds the system-group updater. start is the process start time
// sysUpTime is measured against. freq and reinitRate override the built-in
// cadence (60s, every cycle) when positive; zero/negative falls back to the
// default, letting callers pass an operator runtime-config override straight
// through without having to know the built-in value.
func New(st store.Store, start time.Time, freq time.Duration, reinitRate int, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if freq <= 0 {
		freq = defaultFrequency
	}
	if reinitRate <= 0 {
		reinitRate = defaultReinitRate
	}
	return &Updater{st: st, logger: logger, start: start, frequency: freq, reinitRate: reinitRate}
}

func (u *Updater) Name() string { return "system" }

func (u *Updater) ReinitData(ctx context.Context) error {
	return u.UpdateData(ctx)
}

func (u *Updater) UpdateData(ctx context.Context) error {
	entry, err := u.st.Get(ctx, deviceMetadataDB, deviceMetadataKey)
	if err != nil {
		return &updater.RecoverableError{Err: err}
	}

	platform := entry["platform"]
	if platform == "" {
		platform = "unknown"
	}
	hostname := entry["hostname"]
	if hostname == "" {
		hostname = "sonic"
	}

	u.mu.Lock()
	u.descr = fmt.Sprintf("SONiC Software, platform %s", platform)
	u.objectID = "1.3.6.1.4.1.8072.3.2.10" // net-snmp's agent OID for Linux (netSnmpAgentOIDs.linux)
	u.name = hostname
	u.mu.Unlock()
	return nil
}

func (u *Updater) ReinitConnection(ctx context.Context) error { return nil }

func (u *Updater) Frequency() time.Duration { return u.frequency }

func (u *Updater) ReinitRate() int { return u.reinitRate }

func (u *Updater) sysDescr() (agentx.Value, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.descr == "" {
		return agentx.Value{}, false
	}
	return agentx.NewOctetString([]byte(u.descr)), true
}

func (u *Updater) sysObjectID() (agentx.Value, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.objectID == "" {
		return agentx.Value{}, false
	}
	oid, err := agentx.ParseOID(u.objectID)
	if err != nil {
		return agentx.Value{}, false
	}
	return agentx.NewObjectID(oid), true
}

func (u *Updater) sysUpTime() (agentx.Value, bool) {
	ticks := uint32(time.Since(u.start).Seconds() * 100)
	return agentx.NewTimeTicks(ticks), true
}

func (u *Updater) sysName() (agentx.Value, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.name == "" {
		return agentx.Value{}, false
	}
	return agentx.NewOctetString([]byte(u.name)), true
}

// Register adds the system group's four scalar leaves to b, all backed by
// this updater. The scheduler later discovers u via the frozen tree's
// UpdaterInstances, so no separate scheduler registration is needed.
func Register(b *mib.Builder, u *Updater) {
	b.Register(mib.NewScalarLeaf(prefix.Append(1), u.sysDescr), u)
	b.Register(mib.NewScalarLeaf(prefix.Append(2), u.sysObjectID), u)
	b.Register(mib.NewScalarLeaf(prefix.Append(3), u.sysUpTime), u)
	b.Register(mib.NewScalarLeaf(prefix.Append(5), u.sysName), u)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
