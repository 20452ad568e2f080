package models

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
)

// EntityRef is the tagged polymorphic reference an Attribute row stores
// instead of a raw foreign key: a registered kind tag plus the record id.
type EntityRef struct {
	Kind string `json:"kind"`
	ID   uint64 `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// EntityLoader resolves a stored reference back to the live record.
type EntityLoader func(db *gorm.DB, id uint64) (interface{}, error)

var (
	loadersMu sync.RWMutex
	loaders   = make(map[string]EntityLoader)
)

// RegisterKind binds a kind tag to its record loader. Kinds register once
// at package init; re-registering a tag is a programming error.
func RegisterKind(kind string, loader EntityLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	if _, dup := loaders[kind]; dup {
		panic(fmt.Sprintf("entity kind %q registered twice", kind))
	}
	loaders[kind] = loader
}

// ResolveRef loads the record a stored reference points at.
func ResolveRef(db *gorm.DB, ref EntityRef) (interface{}, error) {
	loadersMu.RLock()
	loader, ok := loaders[ref.Kind]
	loadersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q (registered: %v)", ref.Kind, RegisteredKinds())
	}
	return loader(db, ref.ID)
}

// RegisteredKinds lists the known kind tags in stable order.
func RegisteredKinds() []string {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	kinds := make([]string, 0, len(loaders))
	for k := range loaders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
