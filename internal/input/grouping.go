package input

// Grouping partitions rows by a key while preserving the order in
// which keys were first seen. Downstream phases iterate groups in
// input order so runs stay deterministic.
type Grouping struct {
	keys   []string
	groups map[string][]Row
}

// NewGrouping builds a grouping from rows using the given key fields.
// Composite keys join field values with "/".
func NewGrouping(rows []Row, keyFields ...string) *Grouping {
	g := &Grouping{groups: make(map[string][]Row)}
	for _, row := range rows {
		key := compositeKey(row, keyFields)
		if _, seen := g.groups[key]; !seen {
			g.keys = append(g.keys, key)
		}
		g.groups[key] = append(g.groups[key], row)
	}
	return g
}

func compositeKey(row Row, keyFields []string) string {
	if len(keyFields) == 1 {
		return row.Get(keyFields[0])
	}
	key := ""
	for i, field := range keyFields {
		if i > 0 {
			key += "/"
		}
		key += row.Get(field)
	}
	return key
}

// Keys returns group keys in first-encounter order.
func (g *Grouping) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Rows returns the rows for a key, in input order.
func (g *Grouping) Rows(key string) []Row {
	return g.groups[key]
}

// Len returns the number of distinct groups.
func (g *Grouping) Len() int {
	return len(g.keys)
}

// TotalRows returns the number of rows across all groups.
func (g *Grouping) TotalRows() int {
	total := 0
	for _, rows := range g.groups {
		total += len(rows)
	}
	return total
}

// Subgroup regroups the rows of one key by further key fields.
func (g *Grouping) Subgroup(key string, keyFields ...string) *Grouping {
	return NewGrouping(g.groups[key], keyFields...)
}

// UniqueValues returns the distinct values of a field across all rows,
// in first-encounter order.
func UniqueValues(rows []Row, field string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		value := row.Get(field)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
