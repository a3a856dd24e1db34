package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	auth "github.com/goliatone/go-admin-auth"
	"gopkg.in/yaml.v3"
)

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	failure error
	reads   int
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns a Memory holding records. Roles are stored as given so
// malformed seeds reach the resolver unchanged.
func NewMemory(records ...Record) *Memory {
	m := &Memory{records: make(map[string]Record, len(records)), now: time.Now}
	for _, r := range records {
		m.records[r.UID] = r
	}
	return m
}

type seedFile struct {
	Admins []Record `yaml:"admins"`
}

// LoadMemory decodes a YAML document with an `admins` list.
func LoadMemory(r io.Reader) (*Memory, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("registry: decode seed: %w", err)
	}
	return NewMemory(doc.Admins...), nil
}

// LoadMemoryFile reads a YAML seed file.
func LoadMemoryFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: open seed: %w", err)
	}
	defer f.Close()
	return LoadMemory(f)
}

// Fail makes every subsequent read return err. A nil err clears it.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Reads is the number of GetRecord calls so far.
func (m *Memory) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

func (m *Memory) GetRecord(ctx context.Context, uid string) (*auth.RegistryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++

	if m.failure != nil {
		return nil, m.failure
	}
	r, ok := m.records[uid]
	if !ok {
		return nil, nil
	}
	return r.Entry(), nil
}

func (m *Memory) Grant(ctx context.Context, uid string, role auth.AdminRole, note string) error {
	uid, err := validateGrant(uid, role)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[uid] = Record{UID: uid, Role: role.String(), Note: note, GrantedAt: m.now().UTC()}
	return nil
}

func (m *Memory) Revoke(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, uid)
	return nil
}

// List returns records ordered by uid.
func (m *Memory) List(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}
