package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/opensource-finance/covenant/internal/domain"
)

// Registry publishes the current catalog. Readers never block;
// Reload compiles a replacement and swaps it in atomically.
type Registry struct {
	mu      sync.Mutex // serializes reloads
	base    []domain.RiskPattern
	current atomic.Pointer[Catalog]
}

// NewRegistry creates a registry serving base until the first reload.
func NewRegistry(base []domain.RiskPattern) (*Registry, error) {
	c, err := New(BuiltinVersion, base)
	if err != nil {
		return nil, err
	}
	r := &Registry{base: base}
	r.current.Store(c)
	return r, nil
}

// Current returns the catalog in effect.
func (r *Registry) Current() *Catalog {
	return r.current.Load()
}

// Reload rebuilds the catalog from base plus custom. On error the
// previous catalog stays in effect.
func (r *Registry) Reload(custom []domain.RiskPattern) (*Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := Extend(customVersion(custom), r.base, custom)
	if err != nil {
		return nil, err
	}
	r.current.Store(c)
	return c, nil
}

func customVersion(custom []domain.RiskPattern) string {
	if len(custom) == 0 {
		return BuiltinVersion
	}
	data, err := json.Marshal(custom)
	if err != nil {
		return BuiltinVersion + "+custom"
	}
	sum := sha256.Sum256(data)
	return BuiltinVersion + "+" + hex.EncodeToString(sum[:6])
}
