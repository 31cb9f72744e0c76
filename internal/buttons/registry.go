// internal/buttons/registry.go
package buttons

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/user/quickbuttons/internal/config"
	"github.com/user/quickbuttons/internal/types"
)

var (
	ErrNotFound      = errors.New("button not found")
	ErrOutOfRange    = errors.New("order index out of range")
	ErrTypeImmutable = errors.New("button type cannot be changed")
)

// Registry is the ordered, in-memory collection of buttons. It shares the
// store's mutex: every read runs under Store.Read and every mutation under
// Store.Mutate, which also saves the result before releasing the lock. The
// in-memory state is authoritative; a failed save is reported but not rolled
// back.
type Registry struct {
	store     *config.Store
	validator config.Validator

	// guarded by the store lock
	doc      *config.Document
	problems map[types.ButtonID]error
	warnings []config.Warning
}

// New takes ownership of doc, normalises its order and ids, and validates
// every button. Normalisation changes are saved; a save failure is returned
// alongside a usable registry.
func New(store *config.Store, doc *config.Document, v config.Validator) (*Registry, error) {
	r := &Registry{store: store, validator: v}
	return r, r.Reload(doc)
}

// Reload replaces the document, for example after the file changed on disk.
func (r *Registry) Reload(doc *config.Document) error {
	return r.store.Mutate(func() (*config.Document, error) {
		r.doc = doc
		warnings, changed := normalize(doc)
		r.problems = make(map[types.ButtonID]error)
		for _, b := range doc.Buttons {
			if err := r.check(b); err != nil {
				r.problems[b.ID] = err
				warnings = append(warnings, config.Warning{ButtonID: b.ID, Err: err})
			}
		}
		r.warnings = warnings
		for _, w := range warnings {
			slog.Warn("button not executable", "button_id", w.ButtonID, "error", w.Err)
		}
		if !changed {
			return nil, nil
		}
		return doc, nil
	})
}

// normalize sorts buttons by order (stable), renumbers them 0..n-1 and gives
// fresh ids to buttons whose id is missing or already taken.
func normalize(doc *config.Document) ([]config.Warning, bool) {
	var warnings []config.Warning
	changed := false

	sort.SliceStable(doc.Buttons, func(i, j int) bool {
		return doc.Buttons[i].Order < doc.Buttons[j].Order
	})
	var maxID types.ButtonID
	for _, b := range doc.Buttons {
		if b.ID > maxID {
			maxID = b.ID
		}
	}
	if doc.NextID <= maxID {
		doc.NextID = maxID + 1
		changed = true
	}
	if doc.NextID < 1 {
		doc.NextID = 1
		changed = true
	}

	seen := make(map[types.ButtonID]bool, len(doc.Buttons))
	for i := range doc.Buttons {
		b := &doc.Buttons[i]
		if b.Order != i {
			b.Order = i
			changed = true
		}
		if b.ID <= 0 || seen[b.ID] {
			old := b.ID
			b.ID = doc.NextID
			doc.NextID++
			changed = true
			warnings = append(warnings, config.Warning{
				ButtonID: b.ID,
				Err:      fmt.Errorf("id %d was missing or duplicated and has been reassigned", old),
			})
		}
		seen[b.ID] = true
	}
	return warnings, changed
}

func (r *Registry) check(b types.Button) error {
	if r.validator == nil {
		return nil
	}
	return r.validator.ValidateButton(b)
}

func (r *Registry) indexLocked(id types.ButtonID) int {
	for i, b := range r.doc.Buttons {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) renumberLocked() {
	for i := range r.doc.Buttons {
		r.doc.Buttons[i].Order = i
	}
}

// recheckLocked revalidates b and returns the validation error, if any.
func (r *Registry) recheckLocked(b types.Button) error {
	err := r.check(b)
	if err != nil {
		r.problems[b.ID] = err
	} else {
		delete(r.problems, b.ID)
	}
	return err
}

// Create appends b with the next unused id and returns that id. Buttons with
// invalid parameters are still stored but flagged non-executable; the
// validation error is returned together with the id.
func (r *Registry) Create(b types.Button) (types.ButtonID, error) {
	if !b.Type.Known() {
		return 0, fmt.Errorf("create button: %w", &unknownTypeError{b.Type})
	}
	var id types.ButtonID
	var verr error
	err := r.store.Mutate(func() (*config.Document, error) {
		b = b.Clone()
		b.ID = r.doc.NextID
		r.doc.NextID++
		b.Order = len(r.doc.Buttons)
		if b.Params == nil {
			b.Params = types.Params{}
		}
		r.doc.Buttons = append(r.doc.Buttons, b)
		id = b.ID
		verr = r.recheckLocked(b)
		return r.doc, nil
	})
	if err != nil {
		slog.Error("button created but not saved", "button_id", id, "type", b.Type, "error", err)
	} else {
		slog.Info("button created", "button_id", id, "type", b.Type)
	}
	return id, errors.Join(verr, err)
}

type unknownTypeError struct{ t types.ButtonType }

func (e *unknownTypeError) Error() string { return fmt.Sprintf("unknown button type %q", e.t) }

// Update replaces the button's parameters.
func (r *Registry) Update(id types.ButtonID, params types.Params) error {
	return r.Edit(id, Edit{Params: params})
}

// Edit describes a change to a button. Nil fields are left alone. Type may
// only be set to the button's current type.
type Edit struct {
	Label    *string
	Icon     *string
	Schedule *string
	Params   types.Params
	Type     *types.ButtonType
}

// Edit applies e in place; the id and order are unchanged. Invalid
// parameters are stored and flagged, and the validation error returned.
func (r *Registry) Edit(id types.ButtonID, e Edit) error {
	var verr error
	err := r.store.Mutate(func() (*config.Document, error) {
		i := r.indexLocked(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		b := &r.doc.Buttons[i]
		if e.Type != nil && *e.Type != b.Type {
			return nil, fmt.Errorf("%w: %s is %s", ErrTypeImmutable, id, b.Type)
		}
		if e.Label != nil {
			b.Label = *e.Label
		}
		if e.Icon != nil {
			b.Icon = *e.Icon
		}
		if e.Schedule != nil {
			b.Schedule = *e.Schedule
		}
		if e.Params != nil {
			b.Params = e.Params.Clone()
		}
		verr = r.recheckLocked(*b)
		return r.doc, nil
	})
	return errors.Join(verr, err)
}

// Delete removes the button and closes the gap in the order.
func (r *Registry) Delete(id types.ButtonID) error {
	return r.store.Mutate(func() (*config.Document, error) {
		i := r.indexLocked(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r.doc.Buttons = append(r.doc.Buttons[:i], r.doc.Buttons[i+1:]...)
		delete(r.problems, id)
		r.renumberLocked()
		slog.Info("button deleted", "button_id", id)
		return r.doc, nil
	})
}

// Reorder moves the button to newIndex, shifting the buttons in between by
// one. It is a splice, not a swap.
func (r *Registry) Reorder(id types.ButtonID, newIndex int) error {
	return r.store.Mutate(func() (*config.Document, error) {
		i := r.indexLocked(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		n := len(r.doc.Buttons)
		if newIndex < 0 || newIndex >= n {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, newIndex, n)
		}
		if i == newIndex {
			return nil, nil
		}
		moved := r.doc.Buttons[i]
		rest := append(r.doc.Buttons[:i:i], r.doc.Buttons[i+1:]...)
		out := make([]types.Button, 0, n)
		out = append(out, rest[:newIndex]...)
		out = append(out, moved)
		out = append(out, rest[newIndex:]...)
		r.doc.Buttons = out
		r.renumberLocked()
		return r.doc, nil
	})
}

// List returns a snapshot of the buttons in order. The caller may keep and
// modify it freely.
func (r *Registry) List() []types.Button {
	var out []types.Button
	r.store.Read(func() {
		out = make([]types.Button, len(r.doc.Buttons))
		for i, b := range r.doc.Buttons {
			out[i] = b.Clone()
		}
	})
	return out
}

// Len returns the number of buttons.
func (r *Registry) Len() int {
	var n int
	r.store.Read(func() { n = len(r.doc.Buttons) })
	return n
}

// Get returns a copy of the button.
func (r *Registry) Get(id types.ButtonID) (types.Button, error) {
	var b types.Button
	var err error
	r.store.Read(func() {
		i := r.indexLocked(id)
		if i < 0 {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		b = r.doc.Buttons[i].Clone()
	})
	return b, err
}

// Problem returns why the button is not executable, or nil.
func (r *Registry) Problem(id types.ButtonID) error {
	var err error
	r.store.Read(func() { err = r.problems[id] })
	return err
}

// Executable reports whether the button exists and validated.
func (r *Registry) Executable(id types.ButtonID) bool {
	ok := false
	r.store.Read(func() {
		ok = r.indexLocked(id) >= 0 && r.problems[id] == nil
	})
	return ok
}

// Warnings returns the problems found when the document was last loaded.
func (r *Registry) Warnings() []config.Warning {
	var out []config.Warning
	r.store.Read(func() { out = append(out, r.warnings...) })
	return out
}

// Document returns a copy of the whole document, preferences included.
func (r *Registry) Document() *config.Document {
	var doc *config.Document
	r.store.Read(func() { doc = r.doc.Clone() })
	return doc
}

// UpdateDocument runs fn on the live document and saves it, for changes to
// preferences that live alongside the buttons.
func (r *Registry) UpdateDocument(fn func(doc *config.Document) error) error {
	return r.store.Mutate(func() (*config.Document, error) {
		if err := fn(r.doc); err != nil {
			return nil, err
		}
		return r.doc, nil
	})
}
