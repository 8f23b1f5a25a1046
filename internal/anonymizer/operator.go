package anonymizer

// Operator is a substitution strategy applied to one detected entity value.
// Implementations must be pure; Counter records its assignments in the
// session's EntityMapping.
type Operator interface {
	// Name identifies the strategy in span records (e.g. "keep", "replace").
	Name() string
	// Operate returns the text written in place of the entity value.
	Operate(value, entityType string, mapping EntityMapping) string
}

// Keep emits the entity value unchanged. Default strategy for entity types
// without an explicit operator.
type Keep struct{}

func (Keep) Name() string { return "keep" }

func (Keep) Operate(value, _ string, _ EntityMapping) string { return value }

// Replace substitutes a fixed literal, or the type-name placeholder
// "{{ENTITY_TYPE}}" when no literal is configured. Not reversible.
type Replace struct {
	NewValue string
}

func (Replace) Name() string { return "replace" }

func (r Replace) Operate(_, entityType string, _ EntityMapping) string {
	if r.NewValue != "" {
		return r.NewValue
	}
	return "{{" + entityType + "}}"
}

// Counter substitutes a per-entity-type instance-counter placeholder
// "{{ENTITY_TYPE_N}}", memoized per original value in the session mapping.
// Reversible via EntityMapping.Original.
type Counter struct{}

func (Counter) Name() string { return "counter" }

func (Counter) Operate(value, entityType string, mapping EntityMapping) string {
	return mapping.Placeholder(entityType, value)
}

// OperatorTable selects the substitution strategy per entity type.
// Explicit configuration passed into the pipeline at construction; there is
// no ambient operator registry.
type OperatorTable struct {
	PerType map[string]Operator
	Default Operator
}

// For returns the operator configured for entityType, falling back to the
// table default and finally to Keep.
func (t OperatorTable) For(entityType string) Operator {
	if op, ok := t.PerType[entityType]; ok {
		return op
	}
	if t.Default != nil {
		return t.Default
	}
	return Keep{}
}

// Operators builds a table applying op to the listed entity types and Keep to
// everything else.
func Operators(op Operator, entityTypes ...string) OperatorTable {
	perType := make(map[string]Operator, len(entityTypes))
	for _, et := range entityTypes {
		perType[et] = op
	}
	return OperatorTable{PerType: perType, Default: Keep{}}
}
