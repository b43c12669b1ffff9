package grid

import "strings"

// Kind tags how a column produces its cell.
type Kind int

const (
	// KindPlain shows a record field as is; it becomes an input while editing.
	KindPlain Kind = iota
	// KindComputed shows a value derived from the record, never editable.
	KindComputed
	// KindAction shows buttons that depend on the row.
	KindAction
)

type Action struct {
	Name  string
	Label string
}

type Column[T any] struct {
	ID    string
	Label string
	Kind  Kind

	value   func(T) string
	actions func(Row[T]) []Action
}

func Plain[T any](id, label string, field func(T) string) Column[T] {
	return Column[T]{ID: id, Label: label, Kind: KindPlain, value: field}
}

func Computed[T any](id, label string, fn func(T) string) Column[T] {
	return Column[T]{ID: id, Label: label, Kind: KindComputed, value: fn}
}

func Actions[T any](id, label string, fn func(Row[T]) []Action) Column[T] {
	return Column[T]{ID: id, Label: label, Kind: KindAction, actions: fn}
}

// Cell is a rendered column value.
type Cell struct {
	ColumnID string
	Kind     Kind
	Text     string
	Actions  []Action
}

func (c Cell) Editable() bool { return c.Kind == KindPlain }

func (c Column[T]) Evaluate(r Row[T]) Cell {
	cell := Cell{ColumnID: c.ID, Kind: c.Kind}
	switch c.Kind {
	case KindAction:
		if c.actions != nil {
			cell.Actions = c.actions(r)
		}
	default:
		if c.value != nil {
			cell.Text = c.value(r.Value)
		}
	}
	return cell
}

// Evaluate renders every column of one row.
func Evaluate[T any](columns []Column[T], r Row[T]) []Cell {
	cells := make([]Cell, len(columns))
	for i, c := range columns {
		cells[i] = c.Evaluate(r)
	}
	return cells
}

// ViewRows wraps read-only records so they can be rendered through columns.
func ViewRows[T any](values []T, key func(T) string) []Row[T] {
	rows := make([]Row[T], len(values))
	for i, v := range values {
		rows[i] = Row[T]{ID: key(v), Value: v, snapshot: v, State: StateView}
	}
	return rows
}

// ParseQuickFilter splits the quick filter input on commas, trims each token
// and drops empty ones.
func ParseQuickFilter(input string) []string {
	parts := strings.Split(input, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Match reports whether any plain or computed cell of r contains any token,
// ignoring case. No tokens match everything.
func Match[T any](columns []Column[T], r Row[T], tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, c := range columns {
		if c.Kind == KindAction || c.value == nil {
			continue
		}
		text := strings.ToLower(c.value(r.Value))
		for _, tok := range tokens {
			if strings.Contains(text, strings.ToLower(tok)) {
				return true
			}
		}
	}
	return false
}

// FilterRows applies the quick filter to rows that are not owned by a Grid.
func FilterRows[T any](rows []Row[T], columns []Column[T], query string) []Row[T] {
	tokens := ParseQuickFilter(query)
	if len(tokens) == 0 {
		return rows
	}
	out := make([]Row[T], 0, len(rows))
	for _, r := range rows {
		if Match(columns, r, tokens) {
			out = append(out, r)
		}
	}
	return out
}
