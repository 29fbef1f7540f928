// Package storage keeps the local ledger of agents created on the service.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no agents match the query.
	ErrNoMatches = errors.New("no agents found")
	// ErrManyMatches is returned when multiple agents match the query.
	ErrManyMatches = errors.New("multiple agents matched the input")
)

const (
	indexFileName      = "index.jsonl"
	compactMinOps      = 256
	compactScaleFactor = 4
)

type ledgerEvent struct {
	Op     string  `json:"op"`
	ID     string  `json:"id,omitempty"`
	Record *Record `json:"record,omitempty"`
}

// Open loads the agent ledger from the given datasource.
//
// The datasource is usually a directory path. The special value ":memory:"
// creates a temporary store (primarily used for tests).
func Open(ds string) (*DB, error) {
	dir, cleanupDir, err := resolveStoreDir(ds)
	if err != nil {
		return nil, fmt.Errorf("could not resolve store path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create store directory: %w", err)
	}

	c := &DB{
		indexPath:      filepath.Join(dir, indexFileName),
		lock:           flock.New(filepath.Join(dir, "index.lock")),
		records:        make(map[string]Record),
		cleanupTempDir: cleanupDir,
	}
	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

// DB is an append-only JSONL-backed ledger of created agents.
type DB struct {
	mu             sync.RWMutex
	indexPath      string
	lock           *flock.Flock
	records        map[string]Record
	ops            int
	cleanupTempDir string
}

// Record describes one agent created by a conversation.
type Record struct {
	AgentID   string    `json:"agent_id"`
	Name      string    `json:"name,omitempty"`
	Model     string    `json:"model,omitempty"`
	Endpoint  string    `json:"endpoint,omitempty"`
	MCPLabel  string    `json:"mcp_label,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Question  string    `json:"question,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Close releases temporary resources (used for :memory: stores).
func (c *DB) Close() error {
	if c.cleanupTempDir == "" {
		return nil
	}
	if err := os.RemoveAll(c.cleanupTempDir); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Save upserts an agent record. The creation time of an existing record is
// kept; a zero CreatedAt on a new record is set to now.
func (c *DB) Save(rec Record) error {
	if strings.TrimSpace(rec.AgentID) == "" {
		return fmt.Errorf("Save: %w", errors.New("empty agent id"))
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.records[rec.AgentID]; ok && !prev.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	c.records[rec.AgentID] = rec
	if err := c.appendEventLocked(ledgerEvent{Op: "upsert", Record: &rec}); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := c.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	return nil
}

// Delete removes an agent record by ID.
func (c *DB) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("Delete: %w", errors.New("empty id"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return nil
	}
	delete(c.records, id)

	if err := c.appendEventLocked(ledgerEvent{Op: "delete", ID: id}); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := c.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// ListOlderThan returns agents created more than t ago.
func (c *DB) ListOlderThan(t time.Duration) []Record {
	cutoff := time.Now().Add(-t)

	c.mu.RLock()
	records := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		if rec.CreatedAt.Before(cutoff) {
			records = append(records, rec)
		}
	}
	c.mu.RUnlock()

	sortRecordsByCreatedAtDesc(records)
	return records
}

// Latest returns the most recently created agent.
func (c *DB) Latest() (*Record, error) {
	list := c.List()
	if len(list) == 0 {
		return nil, fmt.Errorf("Latest: %w", ErrNoMatches)
	}
	head := list[0]
	return &head, nil
}

// Completions returns shell completion candidates for agent and run IDs.
func (c *DB) Completions(in string) []string {
	resultSet := make(map[string]struct{})

	c.mu.RLock()
	for _, rec := range c.records {
		if strings.HasPrefix(rec.AgentID, in) {
			resultSet[fmt.Sprintf("%s\t%s", rec.AgentID, rec.Question)] = struct{}{}
		}
		if rec.RunID != "" && strings.HasPrefix(rec.RunID, in) {
			resultSet[fmt.Sprintf("%s\t%s", rec.RunID, rec.Question)] = struct{}{}
		}
	}
	c.mu.RUnlock()

	result := make([]string, 0, len(resultSet))
	for value := range resultSet {
		result = append(result, value)
	}
	sort.Strings(result)

	return result
}

// Find resolves an agent by agent ID or run ID prefix.
func (c *DB) Find(in string) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []Record
	for _, rec := range c.records {
		switch {
		case rec.AgentID == in || (rec.RunID != "" && rec.RunID == in):
			return &rec, nil
		case len(in) < MinPrefixLen:
		case strings.HasPrefix(rec.AgentID, in) || (rec.RunID != "" && strings.HasPrefix(rec.RunID, in)):
			records = append(records, rec)
		}
	}

	if len(records) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrManyMatches, in)
	}
	if len(records) == 1 {
		return &records[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatches, in)
}

// List returns agents sorted by most recently created.
func (c *DB) List() []Record {
	c.mu.RLock()
	records := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, rec)
	}
	c.mu.RUnlock()

	sortRecordsByCreatedAtDesc(records)
	return records
}

func resolveStoreDir(ds string) (dir string, cleanupDir string, err error) {
	if ds == ":memory:" {
		tempDir, err := os.MkdirTemp("", "cosmos-agent-ledger-*")
		if err != nil {
			return "", "", fmt.Errorf("could not create temp ledger directory: %w", err)
		}
		return tempDir, tempDir, nil
	}
	return ds, "", nil
}

func (c *DB) load() error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	file, err := os.Open(c.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt ledgerEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := c.applyEvent(&evt); err != nil {
			return err
		}
		c.ops++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}

	return nil
}

func (c *DB) applyEvent(evt *ledgerEvent) error {
	switch evt.Op {
	case "upsert":
		if evt.Record == nil {
			return fmt.Errorf("invalid upsert event: missing record")
		}
		if strings.TrimSpace(evt.Record.AgentID) == "" {
			return fmt.Errorf("invalid upsert event: empty agent id")
		}
		c.records[evt.Record.AgentID] = *evt.Record
	case "delete":
		if strings.TrimSpace(evt.ID) == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(c.records, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (c *DB) appendEventLocked(evt ledgerEvent) error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	file, err := os.OpenFile(c.indexPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	bts = append(bts, '\n')
	if _, err := file.Write(bts); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}

	c.ops++
	return nil
}

func (c *DB) compactIfNeededLocked() error {
	if c.ops < compactMinOps {
		return nil
	}
	if len(c.records) > 0 && c.ops < len(c.records)*compactScaleFactor {
		return nil
	}
	return c.compactLocked()
}

func (c *DB) compactLocked() error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = c.lock.Unlock() }()

	items := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		items = append(items, rec)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].AgentID < items[j].AgentID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	tmpPath := c.indexPath + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, rec := range items {
		if err := enc.Encode(ledgerEvent{Op: "upsert", Record: &rec}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}

	if err := os.Rename(tmpPath, c.indexPath); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	_ = syncDir(filepath.Dir(c.indexPath))

	c.ops = len(c.records)
	return nil
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	return d.Sync()
}

func sortRecordsByCreatedAtDesc(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].AgentID < records[j].AgentID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
