package eav

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"

	"github.com/attrkit/eavdb/internal/models"
)

// modelInfo is the cached static-field surface of one host record kind:
// its table, primary key, plain columns and belongs-to relations, derived
// once from the parsed GORM schema.
type modelInfo struct {
	kind    string
	table   string
	pk      string
	gs      *gormschema.Schema
	fields  map[string]*gormschema.Field
	related map[string]*relationInfo
}

// relationInfo describes one belongs-to relation reachable from lookups.
// prototype is non-nil when the related kind is itself entity-capable and
// lookups may recurse into its schemas.
type relationInfo struct {
	fkColumn  string
	table     string
	refColumn string
	fields    map[string]bool
	prototype Entity
}

var modelInfoCache sync.Map // reflect.Type -> *modelInfo

// parseModel derives the lookup metadata for a host prototype.
func parseModel(db *gorm.DB, entity Entity) (*modelInfo, error) {
	t := reflect.TypeOf(entity)
	if cached, ok := modelInfoCache.Load(t); ok {
		return cached.(*modelInfo), nil
	}

	gs, err := gormschema.Parse(entity, &sync.Map{}, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity model: %w", err)
	}

	info := &modelInfo{
		kind:    entity.EntityRef().Kind,
		table:   gs.Table,
		gs:      gs,
		fields:  make(map[string]*gormschema.Field),
		related: make(map[string]*relationInfo),
	}
	if gs.PrioritizedPrimaryField != nil {
		info.pk = gs.PrioritizedPrimaryField.DBName
	}
	for _, field := range gs.Fields {
		if field.DBName != "" {
			info.fields[field.DBName] = field
		}
	}
	for _, rel := range gs.Relationships.Relations {
		if rel.Type != gormschema.BelongsTo || len(rel.References) != 1 {
			continue
		}
		ref := rel.References[0]
		ri := &relationInfo{
			fkColumn:  ref.ForeignKey.DBName,
			table:     rel.FieldSchema.Table,
			refColumn: ref.PrimaryKey.DBName,
			fields:    make(map[string]bool),
		}
		for _, rf := range rel.FieldSchema.Fields {
			if rf.DBName != "" {
				ri.fields[rf.DBName] = true
			}
		}
		if proto, ok := reflect.New(rel.FieldSchema.ModelType).Interface().(Entity); ok {
			ri.prototype = proto
		}
		info.related[strings.ToLower(rel.Name)] = ri
	}

	modelInfoCache.Store(t, info)
	return info, nil
}

// fieldNames lists the lookupable field and relation names, sorted, for
// error messages.
func (m *modelInfo) fieldNames() []string {
	names := make([]string, 0, len(m.fields)+len(m.related)+1)
	names = append(names, "pk")
	for name := range m.fields {
		names = append(names, name)
	}
	for name := range m.related {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// hasField reports whether name is a plain column of the host table.
func (m *modelInfo) hasField(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// setField assigns a field value on a host instance through the parsed
// GORM schema, so lookup names map to struct fields without hand-rolled
// reflection.
func (m *modelInfo) setField(entity Entity, name string, value interface{}) error {
	field := m.gs.LookUpField(name)
	if field == nil {
		return fmt.Errorf("no field %q on %s", name, m.kind)
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return field.Set(context.Background(), rv, value)
}

// schemataIndex builds the name index of an entity kind's schemas.
func schemataIndex(db *gorm.DB, entity Entity) (map[string]*models.Schema, []string, error) {
	schemata, err := entity.SchemataForModel(db)
	if err != nil {
		return nil, nil, err
	}
	index := make(map[string]*models.Schema, len(schemata))
	names := make([]string, 0, len(schemata))
	for i := range schemata {
		index[schemata[i].Name] = &schemata[i]
		names = append(names, schemata[i].Name)
	}
	sort.Strings(names)
	return index, names, nil
}
