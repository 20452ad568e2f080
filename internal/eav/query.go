package eav

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/attrkit/eavdb/internal/models"
)

// Lookups is one filter/exclude keyword set: lookup keys possibly chained
// with a sub-lookup ("price", "price__gte", "colour", "size__in") mapped
// to their comparison values.
type Lookups map[string]interface{}

// condition is one translated storage predicate over the host table.
type condition struct {
	expr string
	args []interface{}
}

// Manager translates mixed field/attribute lookups for one entity kind
// into storage predicates, and builds entities from mixed keyword sets.
// It mirrors queryset filtering: Filter intersects all lookups, Exclude
// complements each lookup independently and intersects the complements.
type Manager struct {
	db    *gorm.DB
	proto Entity
}

// NewManager binds a translator to an entity kind via a prototype
// instance (e.g. &models.Item{}).
func NewManager(db *gorm.DB, proto Entity) *Manager {
	return &Manager{db: db, proto: proto}
}

// Filter returns a query selecting entities matching every lookup.
func (m *Manager) Filter(lookups Lookups) (*gorm.DB, error) {
	return m.ApplyFilter(m.db.Model(m.proto), lookups)
}

// Exclude returns a query selecting entities that fail every lookup
// independently. This is NOT the complement of the conjunction: each
// lookup is negated on its own and the negations intersected.
func (m *Manager) Exclude(lookups Lookups) (*gorm.DB, error) {
	return m.ApplyExclude(m.db.Model(m.proto), lookups)
}

// ApplyFilter conjoins the translated lookups onto an existing query.
func (m *Manager) ApplyFilter(query *gorm.DB, lookups Lookups) (*gorm.DB, error) {
	conditions, err := m.translate(lookups)
	if err != nil {
		return nil, err
	}
	for _, c := range conditions {
		query = query.Where(c.expr, c.args...)
	}
	return query, nil
}

// ApplyExclude conjoins the negation of each translated lookup onto an
// existing query.
func (m *Manager) ApplyExclude(query *gorm.DB, lookups Lookups) (*gorm.DB, error) {
	conditions, err := m.translate(lookups)
	if err != nil {
		return nil, err
	}
	for _, c := range conditions {
		query = query.Where("NOT ("+c.expr+")", c.args...)
	}
	return query, nil
}

// translate classifies every lookup key and emits its predicate, in
// deterministic key order.
func (m *Manager) translate(lookups Lookups) ([]condition, error) {
	info, err := parseModel(m.db, m.proto)
	if err != nil {
		return nil, err
	}
	schemata, schemaNames, err := schemataIndex(m.db, m.proto)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(lookups))
	for key := range lookups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]condition, 0, len(keys))
	for _, key := range keys {
		c, err := m.translateLookup(info, schemata, schemaNames, key, lookups[key])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

// translateLookup handles one `name[__sublookup]` key:
//  1. the pk alias normalizes to the real primary-key column;
//  2. a static field becomes a plain column predicate, unless it is a
//     relation to another entity-capable kind and the sub-lookup names one
//     of that kind's schemas, in which case translation recurses scoped to
//     the related kind and the result is wrapped in an existence subquery
//     over the relation;
//  3. a schema name dispatches on datatype (simple / range / multi-choice);
//  4. anything else is refused with the available fields and schema names.
func (m *Manager) translateLookup(info *modelInfo, schemata map[string]*models.Schema, schemaNames []string, lookup string, value interface{}) (condition, error) {
	name, sub := splitLookup(lookup)
	if name == "pk" {
		name = info.pk
	}

	if rel, ok := info.related[name]; ok {
		return m.translateRelated(info, rel, name, sub, value)
	}

	if info.hasField(name) {
		expr, args, err := columnPredicate(info.table, name, sub, value)
		if err != nil {
			return condition{}, err
		}
		return condition{expr: expr, args: args}, nil
	}

	if schema, ok := schemata[name]; ok {
		return m.schemaCondition(info, schema, sub, value)
	}

	return condition{}, &UnknownAttributeError{
		Kind:     info.kind,
		Names:    []string{name},
		Fields:   info.fieldNames(),
		Schemata: schemaNames,
	}
}

// translateRelated resolves lookups addressed through a belongs-to
// relation: bare equality on the foreign key, a related schema lookup
// (recursing into the related kind), or a plain related-field predicate.
func (m *Manager) translateRelated(info *modelInfo, rel *relationInfo, name, sub string, value interface{}) (condition, error) {
	if sub == "" {
		return condition{
			expr: fmt.Sprintf("%s.%s = ?", info.table, rel.fkColumn),
			args: []interface{}{value},
		}, nil
	}

	// correlated EXISTS rather than fk IN (...): a NULL foreign key must
	// fail the lookup plainly, so NOT (...) under Exclude still matches it
	membership := func(inner condition) condition {
		return condition{
			expr: fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s.%s = %s.%s AND %s)",
				rel.table, rel.table, rel.refColumn, info.table, rel.fkColumn, inner.expr),
			args: inner.args,
		}
	}

	if rel.prototype != nil {
		relInfo, err := parseModel(m.db, rel.prototype)
		if err != nil {
			return condition{}, err
		}
		relSchemata, relSchemaNames, err := schemataIndex(m.db, rel.prototype)
		if err != nil {
			return condition{}, err
		}
		subName, subSub := splitLookup(sub)
		if schema, ok := relSchemata[subName]; ok {
			inner, err := m.schemaCondition(relInfo, schema, subSub, value)
			if err != nil {
				return condition{}, err
			}
			return membership(inner), nil
		}
		if relInfo.hasField(subName) {
			expr, args, err := columnPredicate(rel.table, subName, subSub, value)
			if err != nil {
				return condition{}, err
			}
			return membership(condition{expr: expr, args: args}), nil
		}
		return condition{}, &UnknownAttributeError{
			Kind:     relInfo.kind,
			Names:    []string{subName},
			Fields:   relInfo.fieldNames(),
			Schemata: relSchemaNames,
		}
	}

	subName, subSub := splitLookup(sub)
	if _, ok := rel.fields[subName]; ok {
		expr, args, err := columnPredicate(rel.table, subName, subSub, value)
		if err != nil {
			return condition{}, err
		}
		return membership(condition{expr: expr, args: args}), nil
	}
	return condition{}, fmt.Errorf("cannot resolve %q through relation %q on %s", sub, name, info.kind)
}

// schemaCondition emits the membership predicate for one schema lookup:
// the entity's primary key must appear among attribute rows of the right
// schema whose value part matches.
func (m *Manager) schemaCondition(info *modelInfo, schema *models.Schema, sub string, value interface{}) (condition, error) {
	inner, args, err := attrValuePredicate(schema, sub, value)
	if err != nil {
		return condition{}, err
	}
	expr := fmt.Sprintf(
		"%s.%s IN (SELECT eav_attributes.entity_id FROM eav_attributes WHERE eav_attributes.entity_kind = ? AND eav_attributes.schema_id = ?%s)",
		info.table, info.pk, inner)
	return condition{
		expr: expr,
		args: append([]interface{}{info.kind, schema.SchemaID}, args...),
	}, nil
}

// attrValuePredicate builds the value part of an attribute membership
// subquery, dispatching on the schema datatype.
func attrValuePredicate(schema *models.Schema, sub string, value interface{}) (string, []interface{}, error) {
	switch schema.Datatype {
	case models.TypeRange:
		return rangePredicate(schema, sub, value)
	case models.TypeMany:
		return choicePredicate(schema, sub, value)
	default:
		slot, err := models.SlotColumn(schema.Datatype)
		if err != nil {
			return "", nil, err
		}
		expr, args, err := columnPredicate("eav_attributes", slot, sub, value)
		if err != nil {
			return "", nil, err
		}
		return " AND " + expr, args, nil
	}
}

// rangePredicate implements overlap semantics: a stored range [x_min,
// x_max] matches a query (min, max) when the intervals intersect. Only
// present bounds constrain; either side may be open.
func rangePredicate(schema *models.Schema, sub string, value interface{}) (string, []interface{}, error) {
	if sub == "" {
		sub = RangeOverlapLookup
	}
	if sub != RangeOverlapLookup {
		return "", nil, &UnsupportedLookupError{Schema: schema.Name, Lookup: sub}
	}
	min, max, err := rangeBounds(value)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var args []interface{}
	if min != nil {
		parts = append(parts, "eav_attributes.value_range_max >= ?")
		args = append(args, *min)
	}
	if max != nil {
		parts = append(parts, "eav_attributes.value_range_min <= ?")
		args = append(args, *max)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return " AND " + strings.Join(parts, " AND "), args, nil
}

// choicePredicate scopes a multi-choice lookup onto the selection's
// choice row: by name when unqualified, or by the sub-lookup (choice id,
// title, set membership).
func choicePredicate(schema *models.Schema, sub string, value interface{}) (string, []interface{}, error) {
	if sub == "id" {
		return " AND eav_attributes.choice_id = ?", []interface{}{value}, nil
	}

	var expr string
	var args []interface{}
	var err error
	switch sub {
	case "":
		expr, args, err = columnPredicate("eav_choices", "name", "", value)
	case "title":
		expr, args, err = columnPredicate("eav_choices", "title", "", value)
	default:
		expr, args, err = columnPredicate("eav_choices", "name", sub, value)
	}
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(
		" AND eav_attributes.choice_id IN (SELECT eav_choices.choice_id FROM eav_choices WHERE eav_choices.schema_id = ? AND %s)",
		expr), append([]interface{}{schema.SchemaID}, args...), nil
}

// columnPredicate translates a plain column comparison with an optional
// sub-lookup operator.
func columnPredicate(table, column, sub string, value interface{}) (string, []interface{}, error) {
	col := table + "." + column
	switch sub {
	case "", "exact":
		return col + " = ?", []interface{}{value}, nil
	case "ne":
		return col + " <> ?", []interface{}{value}, nil
	case "gt":
		return col + " > ?", []interface{}{value}, nil
	case "gte":
		return col + " >= ?", []interface{}{value}, nil
	case "lt":
		return col + " < ?", []interface{}{value}, nil
	case "lte":
		return col + " <= ?", []interface{}{value}, nil
	case "in":
		return col + " IN (?)", []interface{}{value}, nil
	case "contains":
		return col + " LIKE ?", []interface{}{fmt.Sprintf("%%%v%%", value)}, nil
	case "icontains":
		return "LOWER(" + col + ") LIKE LOWER(?)", []interface{}{fmt.Sprintf("%%%v%%", value)}, nil
	case "startswith":
		return col + " LIKE ?", []interface{}{fmt.Sprintf("%v%%", value)}, nil
	case "isnull":
		want, ok := value.(bool)
		if !ok {
			return "", nil, fmt.Errorf("isnull lookup on %q expects a boolean, got %T", column, value)
		}
		if want {
			return col + " IS NULL", nil, nil
		}
		return col + " IS NOT NULL", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported sub-lookup %q on %q", sub, column)
	}
}

// rangeBounds validates and unpacks a (min, max) lookup value. A
// non-sequence is a type mismatch; a sequence with the wrong arity is a
// shape error.
func rangeBounds(value interface{}) (*float64, *float64, error) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, nil, &RangeTypeError{Value: value}
	}
	if rv.Len() != 2 {
		return nil, nil, &RangeShapeError{Len: rv.Len()}
	}
	min, err := models.FloatBound(rv.Index(0).Interface())
	if err != nil {
		return nil, nil, err
	}
	max, err := models.FloatBound(rv.Index(1).Interface())
	if err != nil {
		return nil, nil, err
	}
	return min, max, nil
}

// Create validates a mixed field/attribute keyword set, builds the host
// record from the field subset, then persists the host strictly before
// the attribute rows (which need the generated identity), all inside one
// transaction. Unknown keywords are refused before anything persists.
func (m *Manager) Create(kwargs map[string]interface{}) (Entity, error) {
	info, err := parseModel(m.db, m.proto)
	if err != nil {
		return nil, err
	}
	schemata, schemaNames, err := schemataIndex(m.db, m.proto)
	if err != nil {
		return nil, err
	}

	var wrong []string
	for key := range kwargs {
		_, isRelation := info.related[key]
		_, isSchema := schemata[key]
		if !info.hasField(key) && !isRelation && !isSchema {
			wrong = append(wrong, key)
		}
	}
	if len(wrong) > 0 {
		sort.Strings(wrong)
		return nil, &UnknownAttributeError{
			Kind:     info.kind,
			Names:    wrong,
			Fields:   info.fieldNames(),
			Schemata: schemaNames,
		}
	}

	entity := m.newEntity()
	for key, raw := range kwargs {
		if info.hasField(key) {
			if err := info.setField(entity, key, raw); err != nil {
				return nil, err
			}
		} else if rel, ok := info.related[key]; ok {
			if err := info.setField(entity, rel.fkColumn, raw); err != nil {
				return nil, err
			}
		}
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		accessor := NewAccessor(tx, entity)
		for key, raw := range kwargs {
			schema, ok := schemata[key]
			if !ok {
				continue
			}
			value, err := coerceStaged(schema.Datatype, raw)
			if err != nil {
				return err
			}
			accessor.Set(key, value)
		}
		return accessor.saveTx(tx)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// coerceStaged accepts either a ready Value or a raw JSON-facing value.
func coerceStaged(datatype models.DataType, raw interface{}) (models.Value, error) {
	if value, ok := raw.(models.Value); ok {
		return value, nil
	}
	return models.CoerceValue(datatype, raw)
}

// newEntity builds a fresh instance of the prototype's concrete type.
func (m *Manager) newEntity() Entity {
	t := reflect.TypeOf(m.proto)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface().(Entity)
}

// splitLookup separates a lookup key from its first sub-lookup.
func splitLookup(lookup string) (string, string) {
	if i := strings.Index(lookup, "__"); i >= 0 {
		return lookup[:i], lookup[i+2:]
	}
	return lookup, ""
}
