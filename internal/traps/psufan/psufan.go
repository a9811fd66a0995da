// Package psufan implements the PSU-fault trap handler, grounded in
// original_source/src/sonic_ax_impl/mibs/ietf/psu_fan_trap.py's
// psuFanTrap: compute a mapped Cisco-EnvMon-style status from raw PSU_INFO
// fields, and fire a trap only when that mapped status changes (semantic
// dedup step 4).
//
// The original also watches FAN_INFO; this module covers PSU_INFO only,
// demonstrating a handler routed to a second store database.
package psufan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/store"
	"github.com/sonic-net/snmp-subagent/internal/trap"
)

// stateDB is the STATE_DB-equivalent database index (db 4
// in this repo's convention; the original watches db 6, the real STATE_DB,
// but this module shares db 4 with the system MIB's DEVICE_METADATA read to
// avoid introducing a third store instance purely for this demonstration).
const stateDB = 4

// psuStatus mirrors psuFanTrap.PSU_STATUS_MAP.
var psuStatus = map[string]int32{
	"offEnvOther":          1,
	"on":                   2,
	"offAdmin":             3,
	"offDenied":            4,
	"offEnvPower":          5,
	"offEnvTemp":           6,
	"offEnvFan":            7,
	"failed":               8,
	"onButFanFail":         9,
	"offCooling":           10,
	"offConnectorRating":   11,
	"onButInLinePowerFail": 12,
}

// psuFaultTrapOID mirrors the Cisco CISCO-ENVMON-MIB ciscoEnvMonSupplyStatusChangeNotif.
var psuFaultTrapOID = agentx.OID{1, 3, 6, 1, 4, 1, 9, 9, 117, 1, 1, 2, 1, 2}
var psuStatusOIDBase = agentx.OID{1, 3, 6, 1, 4, 1, 9, 9, 117, 1, 1, 2, 1, 2}

// Handler watches PSU_INFO|* for mapped-status transitions.
type Handler struct {
	st     store.Store
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]int32
}

func New(st store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Handler{st: st, logger: logger, cache: make(map[string]int32)}
}

func (h *Handler) Name() string { return "psufan" }

func (h *Handler) Patterns() []string {
	return []string{"__keyspace@4__:PSU_INFO|*"}
}

// Init preloads current PSU state so a restart does not re-fire traps for
// already-existing conditions (mirrors _init_psu_table).
func (h *Handler) Init() error {
	keys, err := h.st.Keys(context.TODO(), stateDB, "PSU_INFO|*")
	if err != nil {
		return fmt.Errorf("psufan: init keys: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range keys {
		entry, err := h.st.Get(context.TODO(), stateDB, key)
		if err != nil {
			return fmt.Errorf("psufan: init get %s: %w", key, err)
		}
		if entry == nil {
			continue
		}
		h.cache[key] = calcPSUStatus(entry)
	}
	return nil
}

// calcPSUStatus mirrors _calc_psu_status's precedence: presence, then power
// state, then overload, then voltage band, then temperature, else "on".
func calcPSUStatus(entry map[string]string) int32 {
	if strings.ToLower(entry["presence"]) != "true" {
		return psuStatus["offEnvOther"]
	}
	if strings.ToLower(entry["status"]) != "true" {
		return psuStatus["failed"]
	}
	if strings.ToLower(entry["power_overload"]) == "true" {
		return psuStatus["offEnvPower"]
	}

	if voltage, ok := parseFloat(entry["voltage"]); ok {
		vmin, minOK := parseFloat(entry["voltage_min_threshold"])
		vmax, maxOK := parseFloat(entry["voltage_max_threshold"])
		if (minOK && vmin != 0 && voltage < vmin) || (maxOK && vmax != 0 && voltage > vmax) {
			return psuStatus["onButInLinePowerFail"]
		}
	}

	if temp, ok := parseFloat(entry["temp"]); ok {
		if threshold, ok := parseFloat(entry["temp_threshold"]); ok && threshold != 0 && temp >= threshold {
			return psuStatus["offEnvTemp"]
		}
	}

	return psuStatus["on"]
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Process implements trap_process's PSU branch: recompute the mapped
// status, emit a trap only on change.
func (h *Handler) Process(ev trap.Event) (*trap.Notification, error) {
	actualKey := strings.TrimPrefix(ev.Channel, channelPrefix(ev.Channel))
	if !strings.HasPrefix(actualKey, "PSU_INFO|") {
		return nil, nil
	}

	entry, err := h.st.Get(context.TODO(), stateDB, actualKey)
	if err != nil {
		return nil, fmt.Errorf("psufan: get %s: %w", actualKey, err)
	}
	if entry == nil {
		return nil, nil
	}

	status := calcPSUStatus(entry)

	h.mu.Lock()
	prev, known := h.cache[actualKey]
	unchanged := known && prev == status
	h.cache[actualKey] = status
	h.mu.Unlock()

	if unchanged {
		return nil, nil
	}

	psuIndex := parsePSUIndex(strings.TrimPrefix(actualKey, "PSU_INFO|"))

	return &trap.Notification{
		TrapOID: psuFaultTrapOID,
		VarBinds: []agentx.VarBind{
			{Name: psuStatusOIDBase.Append(uint32(psuIndex)), Value: agentx.NewInteger(status)},
		},
	}, nil
}

func channelPrefix(channel string) string {
	i := strings.Index(channel, ":")
	if i < 0 {
		return ""
	}
	return channel[:i+1]
}

// parsePSUIndex extracts the numeric suffix of a "PSU<N>" key suffix (e.g.
// "PSU1" -> 1); unparseable suffixes report index 0.
func parsePSUIndex(suffix string) int32 {
	upper := strings.ToUpper(suffix)
	if !strings.HasPrefix(upper, "PSU") {
		return 0
	}
	digits := strings.TrimFunc(upper[3:], func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return int32(n)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
