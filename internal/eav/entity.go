package eav

import (
	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/models"
)

// Entity is the capability a host record needs for dynamic attributes: a
// stable polymorphic reference and a schema source. Concrete kinds must
// supply SchemataForModel themselves; the Base default refuses with
// ErrMustOverride.
type Entity interface {
	// EntityRef returns the stable (kind, id) pair attribute rows key on.
	EntityRef() models.EntityRef

	// SchemataForModel produces the schema set applicable to this record
	// kind, in a deterministic order.
	SchemataForModel(db *gorm.DB) ([]models.Schema, error)

	// SchemataForInstance optionally narrows the model schemata for one
	// instance. The default is identity.
	SchemataForInstance(schemata []models.Schema) []models.Schema

	// CheckEAVAllowed lets a kind veto attribute persistence under
	// domain-specific preconditions. The save path currently only reports
	// a veto, it does not enforce one.
	CheckEAVAllowed() bool
}

// Base is an embeddable partial Entity implementation carrying the
// defaults. It deliberately omits EntityRef, which only a concrete kind
// can provide.
type Base struct{}

// SchemataForModel fails until the embedding kind overrides it.
func (Base) SchemataForModel(db *gorm.DB) ([]models.Schema, error) {
	return nil, ErrMustOverride
}

// SchemataForInstance is the identity per-instance filter.
func (Base) SchemataForInstance(schemata []models.Schema) []models.Schema {
	return schemata
}

// CheckEAVAllowed defaults to allowing attribute persistence.
func (Base) CheckEAVAllowed() bool {
	return true
}
