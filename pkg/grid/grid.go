// Package grid implements the editable table behind the books page: a per-row
// view/edit state machine that validates locally, commits through the API
// client and reconciles the local rows with the envelope it gets back.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"libadmin/pkg/apiclient"
	"libadmin/pkg/logging"
)

var (
	ErrNotFound     = errors.New("row not found")
	ErrNotEditing   = errors.New("row is not being edited")
	ErrEditing      = errors.New("row is being edited")
	ErrBusy         = errors.New("row has a request in flight")
	ErrValidation   = errors.New("row failed validation")
	ErrCommitFailed = errors.New("saving the row failed")
	ErrDeleteFailed = errors.New("deleting the row failed")
)

type State string

const (
	StateView    State = "view"
	StateEdit    State = "edit"
	StateEditNew State = "edit-new"
)

// Row is one record plus its editing state. Rows handed out by the Grid are
// copies; mutate through the Grid methods.
type Row[T any] struct {
	// ID is the record key, or a temporary id while IsNew is set.
	ID    string
	Value T
	State State
	IsNew bool

	// OutOfSync is set when the last commit failed and Value holds edits the
	// backend never accepted.
	OutOfSync bool
	Busy      bool

	snapshot T
}

func (r Row[T]) Editing() bool {
	return r.State == StateEdit || r.State == StateEditNew
}

// Adapter binds a record type to its key, validation rules and backend calls.
type Adapter[T any] interface {
	Key(v T) string
	Blank() T
	Validate(v T) error
	Create(ctx context.Context, v T) apiclient.Response[*T]
	Update(ctx context.Context, key string, v T) apiclient.Response[*T]
	Delete(ctx context.Context, key string) apiclient.Response[apiclient.Disposition]
	MarkDeleted(v T) T
}

// Grid owns its row collection. It is safe for concurrent use; the lock is
// never held while a request is in flight.
type Grid[T any] struct {
	mu      sync.Mutex
	adapter Adapter[T]
	rows    []*Row[T]
	logger  logging.Logger
	newID   func() string
}

func New[T any](adapter Adapter[T], logger logging.Logger) *Grid[T] {
	return &Grid[T]{
		adapter: adapter,
		logger:  logging.OrNop(logger),
		newID:   func() string { return "new-" + uuid.NewString() },
	}
}

// Load replaces the committed rows with values. Rows being edited or waiting
// on the backend survive a reload.
func (g *Grid[T]) Load(values []T) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kept := make(map[string]*Row[T])
	// Keys of new rows whose create call has not returned yet. The server may
	// already list them; Save adopts that record when it completes.
	creating := make(map[string]bool)
	for _, r := range g.rows {
		if r.Editing() || r.Busy {
			kept[r.ID] = r
		}
		if r.IsNew && r.Busy {
			creating[g.adapter.Key(r.Value)] = true
		}
	}

	rows := make([]*Row[T], 0, len(values)+len(kept))
	for _, v := range values {
		key := g.adapter.Key(v)
		if creating[key] {
			continue
		}
		if r, ok := kept[key]; ok && !r.IsNew {
			rows = append(rows, r)
			delete(kept, key)
			continue
		}
		rows = append(rows, &Row[T]{ID: key, Value: v, snapshot: v, State: StateView})
	}
	for _, r := range g.rows {
		if _, ok := kept[r.ID]; ok {
			rows = append(rows, r)
		}
	}
	g.rows = rows
}

func (g *Grid[T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rows)
}

func (g *Grid[T]) Rows() []Row[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Row[T], len(g.rows))
	for i, r := range g.rows {
		out[i] = *r
	}
	return out
}

func (g *Grid[T]) Row(id string) (Row[T], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.find(id)
	if r == nil {
		return Row[T]{}, false
	}
	return *r, true
}

// Add appends a blank row in edit-new state and returns its temporary id.
func (g *Grid[T]) Add() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	blank := g.adapter.Blank()
	r := &Row[T]{ID: g.newID(), Value: blank, snapshot: blank, State: StateEditNew, IsNew: true}
	g.rows = append(g.rows, r)
	return r.ID
}

// Edit moves a row from view to edit. Editing a row already in an edit state
// is a no-op.
func (g *Grid[T]) Edit(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.Busy {
		return ErrBusy
	}
	if r.State == StateView {
		r.snapshot = r.Value
		r.State = StateEdit
	}
	return nil
}

// Set replaces the in-progress value of a row being edited.
func (g *Grid[T]) Set(id string, v T) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.Busy {
		return ErrBusy
	}
	if !r.Editing() {
		return ErrNotEditing
	}
	r.Value = v
	return nil
}

// Cancel discards edits. An existing row gets its last committed value back;
// a row that was never saved disappears.
func (g *Grid[T]) Cancel(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.Busy {
		return ErrBusy
	}
	switch r.State {
	case StateEdit:
		r.Value = r.snapshot
		r.State = StateView
		r.OutOfSync = false
	case StateEditNew:
		g.remove(r)
	}
	return nil
}

// Save commits a row in an edit state. Validation failures never reach the
// backend. A failed request keeps the attempted values, leaves the row in its
// edit state and flags it out of sync so the user can retry or cancel.
func (g *Grid[T]) Save(ctx context.Context, id string) error {
	g.mu.Lock()
	r := g.find(id)
	if r == nil {
		g.mu.Unlock()
		return ErrNotFound
	}
	if r.Busy {
		g.mu.Unlock()
		return ErrBusy
	}
	if !r.Editing() {
		g.mu.Unlock()
		return ErrNotEditing
	}
	value := r.Value
	if err := g.adapter.Validate(value); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	r.Busy = true
	isNew, key := r.IsNew, r.ID
	g.mu.Unlock()

	var res apiclient.Response[*T]
	if isNew {
		res = g.adapter.Create(ctx, value)
	} else {
		res = g.adapter.Update(ctx, key, value)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	r.Busy = false

	if !res.Success {
		r.OutOfSync = true
		g.logger.Warn("commit failed", "row", id, "new", isNew, "status", res.StatusCode, "error", res.Err)
		return fmt.Errorf("%w: status %d", ErrCommitFailed, res.StatusCode)
	}

	if res.Data != nil && g.adapter.Key(*res.Data) != "" {
		value = *res.Data
	}
	r.Value = value
	r.snapshot = value
	r.State = StateView
	r.OutOfSync = false
	if isNew {
		r.IsNew = false
		r.ID = g.adapter.Key(value)
		g.dropDuplicates(r)
	}
	g.logger.Info("row committed", "row", r.ID, "new", isNew)
	return nil
}

// Delete removes a row through the backend. A soft-deleted record stays in
// the grid flagged deleted; otherwise the row is dropped. A failed request
// leaves the row untouched.
func (g *Grid[T]) Delete(ctx context.Context, id string) (apiclient.Disposition, error) {
	g.mu.Lock()
	r := g.find(id)
	if r == nil {
		g.mu.Unlock()
		return "", ErrNotFound
	}
	if r.Busy {
		g.mu.Unlock()
		return "", ErrBusy
	}
	if r.State != StateView {
		g.mu.Unlock()
		return "", ErrEditing
	}
	r.Busy = true
	key := r.ID
	g.mu.Unlock()

	res := g.adapter.Delete(ctx, key)

	g.mu.Lock()
	defer g.mu.Unlock()
	r.Busy = false

	if !res.Success {
		g.logger.Warn("delete failed", "row", id, "status", res.StatusCode, "error", res.Err)
		return "", fmt.Errorf("%w: status %d", ErrDeleteFailed, res.StatusCode)
	}
	if res.Data == apiclient.DispositionSoftDeleted {
		r.Value = g.adapter.MarkDeleted(r.Value)
		r.snapshot = r.Value
		g.logger.Info("row soft-deleted", "row", id)
		return res.Data, nil
	}
	g.remove(r)
	g.logger.Info("row removed", "row", id)
	return apiclient.DispositionRemoved, nil
}

// Filter returns the rows matching the quick filter query. Rows in an edit
// state are always included so an open form never vanishes.
func (g *Grid[T]) Filter(query string, columns []Column[T]) []Row[T] {
	tokens := ParseQuickFilter(query)
	rows := g.Rows()
	if len(tokens) == 0 {
		return rows
	}
	out := make([]Row[T], 0, len(rows))
	for _, r := range rows {
		if r.Editing() || Match(columns, r, tokens) {
			out = append(out, r)
		}
	}
	return out
}

func (g *Grid[T]) find(id string) *Row[T] {
	for _, r := range g.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (g *Grid[T]) remove(target *Row[T]) {
	for i, r := range g.rows {
		if r == target {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return
		}
	}
}

// dropDuplicates removes every row other than keep that carries keep's key.
func (g *Grid[T]) dropDuplicates(keep *Row[T]) {
	rows := g.rows[:0]
	for _, r := range g.rows {
		if r == keep || r.ID != keep.ID {
			rows = append(rows, r)
		}
	}
	g.rows = rows
}
