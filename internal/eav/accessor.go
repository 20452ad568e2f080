package eav

import (
	"log"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/attrkit/eavdb/internal/models"
)

// Accessor is the dynamic-attribute facade over one entity instance. It
// lazily caches the applicable schema set plus a name index for the
// instance's in-memory lifetime (schema edits mid-session are not
// reflected), stages written values, and drives save-time persistence.
type Accessor struct {
	db     *gorm.DB
	entity Entity

	staged map[string]models.Value

	schemata []models.Schema
	byName   map[string]*models.Schema
}

// NewAccessor wraps an entity instance. The cache starts empty and fills
// on first use; build a fresh accessor to observe later schema changes.
func NewAccessor(db *gorm.DB, entity Entity) *Accessor {
	return &Accessor{
		db:     db,
		entity: entity,
		staged: make(map[string]models.Value),
	}
}

// Entity returns the wrapped host record.
func (a *Accessor) Entity() Entity {
	return a.entity
}

// Schemata returns the cached schema set applicable to this instance,
// computing it on first call: the model-level query narrowed by the
// per-instance hook, plus the name index for O(1) lookups.
func (a *Accessor) Schemata() ([]models.Schema, error) {
	if a.byName != nil {
		return a.schemata, nil
	}
	all, err := a.entity.SchemataForModel(a.db)
	if err != nil {
		return nil, err
	}
	a.schemata = a.entity.SchemataForInstance(all)
	a.byName = make(map[string]*models.Schema, len(a.schemata))
	for i := range a.schemata {
		a.byName[a.schemata[i].Name] = &a.schemata[i]
	}
	return a.schemata, nil
}

// SchemaNames returns the sorted names of the applicable schemas.
func (a *Accessor) SchemaNames() ([]string, error) {
	if _, err := a.Schemata(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Schema resolves one schema by name from the cache.
func (a *Accessor) Schema(name string) (*models.Schema, error) {
	if _, err := a.Schemata(); err != nil {
		return nil, err
	}
	schema, ok := a.byName[name]
	if !ok {
		return nil, &AttributeNotFoundError{Kind: a.entity.EntityRef().Kind, Name: name}
	}
	return schema, nil
}

// Set stages a value for the named attribute. Staged values persist on
// Save; names matching no schema are ignored there, mirroring plain
// member assignment.
func (a *Accessor) Set(name string, value models.Value) {
	a.staged[name] = value
}

// Get resolves the named attribute: the staged value if one is pending,
// otherwise the stored rows. Multi-choice schemas yield the ordered
// non-empty selections; scalars yield the single stored value or the
// absence marker. An unknown name fails with AttributeNotFoundError.
func (a *Accessor) Get(name string) (models.Value, error) {
	if value, ok := a.staged[name]; ok {
		return value, nil
	}
	schema, err := a.Schema(name)
	if err != nil {
		return models.Value{}, err
	}
	attrs, err := schema.GetAttrs(a.db, a.entity.EntityRef())
	if err != nil {
		return models.Value{}, err
	}
	if schema.Datatype == models.TypeMany {
		var names []string
		for i := range attrs {
			if v := attrs[i].Value(); !v.IsZero() {
				names = append(names, v.Choices...)
			}
		}
		if len(names) == 0 {
			return models.NoValue(models.TypeMany), nil
		}
		return models.ChoiceValue(names...), nil
	}
	if len(attrs) == 0 {
		return models.NoValue(schema.Datatype), nil
	}
	return attrs[0].Value(), nil
}

// Save persists the host record first, then every applicable schema's
// value: the staged value when one is pending, otherwise the stored value
// re-submitted (a no-op for scalars under write suppression). Runs inside
// one transaction so the multi-choice replace cannot expose a window with
// no selections.
func (a *Accessor) Save() error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		return a.saveTx(tx)
	})
}

func (a *Accessor) saveTx(tx *gorm.DB) error {
	if !a.entity.CheckEAVAllowed() {
		// the veto hook is reported but not enforced; see CheckEAVAllowed
		log.Printf("eav: attributes saved for %s although CheckEAVAllowed returned false",
			a.entity.EntityRef().Kind)
	}

	if err := tx.Omit(clause.Associations).Save(a.entity).Error; err != nil {
		return err
	}

	// every read during the save runs on tx: the schema fetch and the
	// write-suppression comparison must see the same connection the
	// writes go through
	scoped := *a
	scoped.db = tx

	schemata, err := scoped.Schemata()
	if err != nil {
		return err
	}
	for i := range schemata {
		schema := &schemata[i]
		value, ok := a.staged[schema.Name]
		if !ok {
			stored, err := scoped.Get(schema.Name)
			if err != nil {
				return err
			}
			value = stored
		}
		if err := SaveAttr(tx, a.entity, schema, value); err != nil {
			return err
		}
	}
	return nil
}

// Attributes yields the entity's non-empty attribute rows joined with
// their schemas (and choices), ordered by schema title then name. Static
// host fields are never included.
func (a *Accessor) Attributes() ([]models.Attribute, error) {
	ref := a.entity.EntityRef()
	var attrs []models.Attribute
	err := a.db.Preload("Schema").Preload("Choice").
		Joins("JOIN eav_schemas ON eav_schemas.schema_id = eav_attributes.schema_id").
		Where("eav_attributes.entity_kind = ? AND eav_attributes.entity_id = ?", ref.Kind, ref.ID).
		Order("eav_schemas.title, eav_schemas.name, eav_attributes.attr_id").
		Find(&attrs).Error
	if err != nil {
		return nil, err
	}
	nonEmpty := attrs[:0]
	for i := range attrs {
		if !attrs[i].Value().IsZero() {
			nonEmpty = append(nonEmpty, attrs[i])
		}
	}
	return nonEmpty, nil
}

// ValueMap flattens the non-empty attributes into a name -> JSON-facing
// value map, merging multi-choice rows into one list per schema.
func (a *Accessor) ValueMap() (map[string]interface{}, error) {
	attrs, err := a.Attributes()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	for i := range attrs {
		attr := &attrs[i]
		if attr.Schema == nil {
			continue
		}
		value := attr.Value()
		if attr.Schema.Datatype == models.TypeMany {
			existing, _ := out[attr.Schema.Name].([]string)
			out[attr.Schema.Name] = append(existing, value.Choices...)
			continue
		}
		out[attr.Schema.Name] = value.Interface()
	}
	return out, nil
}
