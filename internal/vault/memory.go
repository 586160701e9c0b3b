package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"ht-go/internal/ht"
)

// MemoryVault keeps objects in memory. It is safe for concurrent use and is
// meant for tests and dry runs.
type MemoryVault struct {
	mu      sync.RWMutex
	clock   ht.Clock
	objects map[string]memoryObject
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

// NewMemoryVault creates an empty vault. A nil clock uses the wall clock.
func NewMemoryVault(clock ht.Clock) *MemoryVault {
	if clock == nil {
		clock = ht.RealClock{}
	}
	return &MemoryVault{
		clock:   clock,
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryVault) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", name, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{data: data, modTime: m.clock.Now()}
	return nil
}

func (m *MemoryVault) Get(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	obj, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("object %s: %w", name, ht.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("copying %s: %w", name, err)
	}
	return nil
}

func (m *MemoryVault) List(ctx context.Context, prefix string) ([]ht.VaultObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ht.VaultObject
	for name, obj := range m.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, ht.VaultObject{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ ht.Vault = (*MemoryVault)(nil)
