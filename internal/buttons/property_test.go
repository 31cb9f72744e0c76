package buttons

import (
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/user/quickbuttons/internal/config"
	"github.com/user/quickbuttons/internal/types"
)

// op is one registry mutation: kind 0 creates, 1 deletes the button at a,
// 2 moves the button at a to b. Indexes are taken modulo the current length.
type op struct {
	Kind, A, B int
}

func genOp() gopter.Gen {
	return gopter.CombineGens(gen.IntRange(0, 2), gen.IntRange(0, 50), gen.IntRange(0, 50)).
		Map(func(v []any) op { return op{Kind: v[0].(int), A: v[1].(int), B: v[2].(int)} })
}

// Property: after any sequence of create/delete/reorder, orders are exactly
// 0..n-1, ids are unique, and the saved file agrees with memory.
func TestOrderStaysContiguous(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("order is a permutation of [0,n)", prop.ForAll(
		func(ops []op) bool {
			store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
			r, err := New(store, config.Defaults(), commandValidator{})
			if err != nil {
				return false
			}
			for _, o := range ops {
				list := r.List()
				switch {
				case o.Kind == 0 || len(list) == 0:
					if _, err := r.Create(shell("b")); err != nil {
						return false
					}
				case o.Kind == 1:
					if err := r.Delete(list[o.A%len(list)].ID); err != nil {
						return false
					}
				default:
					if err := r.Reorder(list[o.A%len(list)].ID, o.B%len(list)); err != nil {
						return false
					}
				}
			}

			list := r.List()
			seen := make(map[types.ButtonID]bool)
			for i, b := range list {
				if b.Order != i || seen[b.ID] {
					return false
				}
				seen[b.ID] = true
			}
			loaded, err := store.Load()
			if err != nil || len(loaded.Doc.Buttons) != len(list) {
				return false
			}
			for i, b := range loaded.Doc.Buttons {
				if b.ID != list[i].ID || b.Order != i {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp()),
	))

	properties.TestingRun(t)
}

// Property: Reorder(id, k) leaves the button at index k and the others in
// their original relative order.
func TestReorderPreservesRelativeOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("reorder is a stable splice", prop.ForAll(
		func(n, from, to int) bool {
			store := config.NewStore(filepath.Join(t.TempDir(), "config.json"))
			r, _ := New(store, config.Defaults(), commandValidator{})
			for i := 0; i < n; i++ {
				r.Create(shell("b"))
			}
			before := r.List()
			from, to = from%n, to%n
			moved := before[from].ID
			if err := r.Reorder(moved, to); err != nil {
				return false
			}
			after := r.List()
			if after[to].ID != moved {
				return false
			}
			var restBefore, restAfter []types.ButtonID
			for _, b := range before {
				if b.ID != moved {
					restBefore = append(restBefore, b.ID)
				}
			}
			for _, b := range after {
				if b.ID != moved {
					restAfter = append(restAfter, b.ID)
				}
			}
			for i := range restBefore {
				if restBefore[i] != restAfter[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 12), gen.IntRange(0, 100), gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
