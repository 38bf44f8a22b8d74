// Package audit implements the client-side tamper-evident audit ledger
// (C8): an append-only, hash-chained event log stored in the project's
// local bbolt database, with chain verification and compliance-report
// exporters. The ledger is tamper-evident, not tamper-proof: it lives in
// local storage, editable by a determined operator, and is intended for
// research documentation, not as legal evidence.
package audit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/biopkg/bdp/internal/boltkv"
)

const eventsBucket = "audit_events"

// zeroHash is the previous_hash of the first event in a ledger: 32 zero
// bytes hex-encoded, the same width as a sha-256 digest.
var zeroHash = hex.EncodeToString(make([]byte, sha256.Size))

// EventType enumerates the lifecycle actions the ledger records. Most
// lifecycle actions have start/success/failure variants.
type EventType string

const (
	EventInitStart         EventType = "init-start"
	EventInitSuccess       EventType = "init-success"
	EventInitFailure       EventType = "init-failure"
	EventDownloadStart     EventType = "download-start"
	EventDownloadSuccess   EventType = "download-success"
	EventDownloadFailure   EventType = "download-failure"
	EventVerifyStart       EventType = "verify-start"
	EventVerifySuccess     EventType = "verify-success"
	EventVerifyFailure     EventType = "verify-failure"
	EventExportStart       EventType = "export-start"
	EventExportSuccess     EventType = "export-success"
	EventExportFailure     EventType = "export-failure"
	EventPullStart         EventType = "pull-start"
	EventPullSuccess       EventType = "pull-success"
	EventPullFailure       EventType = "pull-failure"
	EventCleanStart        EventType = "clean-start"
	EventCleanSuccess      EventType = "clean-success"
	EventCleanFailure      EventType = "clean-failure"
)

// Event is one entry in the hash-chained log.
type Event struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    EventType `json:"event_type"`
	SourceSpec   string    `json:"source_spec,omitempty"`
	Details      string    `json:"details,omitempty"` // opaque JSON, stable-key-sorted by the caller
	MachineID    string    `json:"machine_id"`
	EventHash    string    `json:"event_hash"`
	PreviousHash string    `json:"previous_hash"`
}

// canonicalBytes produces the deterministic byte encoding hashed to
// produce EventHash: timestamp (RFC3339Nano, UTC) ‖ event_type ‖
// source_spec ‖ details ‖ machine_id ‖ previous_hash, each field
// separated by a byte that cannot appear in any field's own encoding.
func (e Event) canonicalBytes() []byte {
	const sep = "\x1f"
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteString(sep)
	b.WriteString(string(e.EventType))
	b.WriteString(sep)
	b.WriteString(e.SourceSpec)
	b.WriteString(sep)
	b.WriteString(e.Details)
	b.WriteString(sep)
	b.WriteString(e.MachineID)
	b.WriteString(sep)
	b.WriteString(e.PreviousHash)
	return []byte(b.String())
}

func computeHash(e Event) string {
	sum := sha256.Sum256(e.canonicalBytes())
	return hex.EncodeToString(sum[:])
}

// Ledger is the append-only hash chain. A single process-local mutex
// serializes LogEvent calls so previous_hash linkage is never broken by
// concurrent writers.
type Ledger struct {
	db        *boltkv.DB
	machineID string
	mu        sync.Mutex
}

// Open opens (creating if needed) the ledger backed by its own bbolt file
// at dbPath, and resolves this project's machine id from machineIDPath,
// generating and persisting one on first use. Callers that also need the
// cache manager (C9) against the same project database must use OpenWith
// instead: bbolt's file lock is exclusive per process, so opening dbPath a
// second time from the same process would deadlock.
func Open(dbPath, machineIDPath string) (*Ledger, error) {
	db, err := boltkv.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return OpenWith(db, machineIDPath)
}

// OpenWith builds the ledger over an already-open shared bbolt database,
// the way cache.Open shares the same handle for the cache index bucket:
// both the ledger and the cache manager live in one project .bdp/bdp.db
// file, each in its own bucket, opened once by the caller.
func OpenWith(db *boltkv.DB, machineIDPath string) (*Ledger, error) {
	if err := db.CreateBucket(eventsBucket); err != nil {
		return nil, err
	}
	if err := db.CreateBucket(snapshotBucket); err != nil {
		return nil, err
	}
	id, err := loadOrCreateMachineID(machineIDPath)
	if err != nil {
		return nil, err
	}
	return &Ledger{db: db, machineID: id}, nil
}

// NewInMemory builds a Ledger over a throwaway bbolt file, for tests and
// callers that need a ledger without a project directory.
func NewInMemory(machineID string) (*Ledger, func(), error) {
	f, err := os.CreateTemp("", "bdp-audit-*.db")
	if err != nil {
		return nil, nil, err
	}
	path := f.Name()
	f.Close()

	db, err := boltkv.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	if err := db.CreateBucket(eventsBucket); err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	if err := db.CreateBucket(snapshotBucket); err != nil {
		os.Remove(path)
		return nil, nil, err
	}
	cleanup := func() {
		db.Close()
		os.Remove(path)
	}
	return &Ledger{db: db, machineID: machineID}, cleanup, nil
}

func (l *Ledger) MachineID() string { return l.machineID }

// LogEvent appends a new event, assigning id = prev.id + 1 and chaining
// previous_hash to the prior event's event_hash (or zeroHash for the
// first event), then computes event_hash.
func (l *Ledger) LogEvent(eventType EventType, sourceSpec string, details interface{}) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	detailsJSON, err := marshalStable(details)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal details: %w", err)
	}

	prev, err := l.lastEvent()
	if err != nil {
		return nil, err
	}

	ev := Event{
		Timestamp:  time.Now(),
		EventType:  eventType,
		SourceSpec: sourceSpec,
		Details:    detailsJSON,
		MachineID:  l.machineID,
	}
	if prev == nil {
		ev.ID = 1
		ev.PreviousHash = zeroHash
	} else {
		ev.ID = prev.ID + 1
		ev.PreviousHash = prev.EventHash
	}
	ev.EventHash = computeHash(ev)

	if err := l.db.PutJSON(eventsBucket, keyFor(ev.ID), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func keyFor(id int64) string {
	// Zero-padded so bbolt's lexical key order matches numeric order.
	return fmt.Sprintf("%020d", id)
}

func (l *Ledger) lastEvent() (*Event, error) {
	events, err := l.All()
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[len(events)-1], nil
}

// All returns every event in ascending id order.
func (l *Ledger) All() ([]Event, error) {
	var events []Event
	err := l.db.ForEachJSON(eventsBucket, func() interface{} { return &Event{} }, func(_ string, v interface{}) error {
		events = append(events, *(v.(*Event)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

// Range returns events with id in [fromID, toID] inclusive, ascending.
func (l *Ledger) Range(fromID, toID int64) ([]Event, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range all {
		if e.ID >= fromID && e.ID <= toID {
			out = append(out, e)
		}
	}
	return out, nil
}

// VerificationResult reports the outcome of walking the chain.
type VerificationResult struct {
	Valid     bool
	BreakAtID int64 // 0 if Valid
	Reason    string
}

// VerifyIntegrity walks the log in order and, for each event, recomputes
// event_hash and checks it against the stored value and that
// previous_hash matches the predecessor's event_hash.
func (l *Ledger) VerifyIntegrity() (VerificationResult, error) {
	events, err := l.All()
	if err != nil {
		return VerificationResult{}, err
	}

	var prevHash string
	for i, e := range events {
		wantPrev := zeroHash
		if i > 0 {
			wantPrev = prevHash
		}
		if e.PreviousHash != wantPrev {
			return VerificationResult{Valid: false, BreakAtID: e.ID, Reason: "previous_hash does not match predecessor's event_hash"}, nil
		}
		recomputed := computeHash(Event{
			Timestamp:    e.Timestamp,
			EventType:    e.EventType,
			SourceSpec:   e.SourceSpec,
			Details:      e.Details,
			MachineID:    e.MachineID,
			PreviousHash: e.PreviousHash,
		})
		if recomputed != e.EventHash {
			return VerificationResult{Valid: false, BreakAtID: e.ID, Reason: "event_hash does not match recomputed hash"}, nil
		}
		prevHash = e.EventHash
	}
	return VerificationResult{Valid: true}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// marshalStable serializes details with sorted object keys so the
// canonical hash input is deterministic across platforms: it
// round-trips through a generic map so Go's stable key ordering for
// encoding/json (which already sorts map keys) applies uniformly.
func marshalStable(details interface{}) (string, error) {
	if details == nil {
		return "", nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw), nil
	}
	stable, err := json.Marshal(generic)
	if err != nil {
		return string(raw), nil
	}
	return string(stable), nil
}

// loadOrCreateMachineID resolves the stable {sanitized-hostname}-{random8}
// identifier persisted on first use, with no MAC address or other
// personally identifying value.
func loadOrCreateMachineID(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}

	id, err := generateMachineID()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		return "", err
	}
	return id, nil
}

func generateMachineID() (string, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	host = sanitizeHostname(host)

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("audit: generate machine id: %w", err)
	}
	return host + "-" + hex.EncodeToString(buf), nil
}

func sanitizeHostname(host string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(host) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}
