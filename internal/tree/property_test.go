package tree_test

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"conntree/internal/domain"
	"conntree/internal/tree"
)

func allIDs(store *tree.Store) []string {
	all, _ := store.RecursiveChildList(store.RootID())
	ids := []string{store.RootID()}
	for _, node := range all {
		ids = append(ids, node.ID)
	}
	return ids
}

func TestProperty_RandomMutationsKeepTreeConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := tree.New(sequentialIDs())
		steps := rapid.IntRange(1, 60).Draw(t, "steps")

		for step := 0; step < steps; step++ {
			ids := allIDs(store)
			target := rapid.SampledFrom(ids).Draw(t, "target")
			other := rapid.SampledFrom(ids).Draw(t, "other")

			var err error
			switch rapid.IntRange(0, 10).Draw(t, "op") {
			case 0:
				_, err = store.AddConnection(target)
			case 1:
				_, err = store.AddFolder(target)
			case 2:
				_, err = store.Duplicate(target)
			case 3:
				err = store.Delete(target)
			case 4:
				err = store.PromoteChild(target)
			case 5:
				err = store.DemoteChild(target)
			case 6:
				err = store.Reparent(target, other, "")
			case 7:
				err = store.SortChildren(target, domain.SortDescending)
			case 8:
				var sessions []domain.PuttySessionInfo
				if rapid.Bool().Draw(t, "imported") {
					sessions = append(sessions, domain.PuttySessionInfo{Name: rapid.StringMatching(`[a-c]`).Draw(t, "session")})
				}
				store.ReplacePuttySessions(sessions)
			case 9:
				err = store.Rename(target, rapid.StringMatching(`[a-z]{0,4}`).Draw(t, "name"))
			case 10:
				err = reparentBefore(t, store, target, other)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidTarget) &&
				!errors.Is(err, domain.ErrCycleDetected) && !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("unexpected error class: %v", err)
			}
			if verr := store.Validate(); verr != nil {
				t.Fatalf("step %d left an inconsistent tree: %v", step, verr)
			}
			if !store.Root().Expanded {
				t.Fatalf("root collapsed at step %d", step)
			}
		}
	})
}

func TestProperty_CycleRejectionLeavesTreeUnchanged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := tree.New(sequentialIDs())
		depth := rapid.IntRange(1, 8).Draw(t, "depth")
		chain := []string{store.RootID()}
		for level := 0; level < depth; level++ {
			folder, err := store.AddFolder(chain[len(chain)-1])
			if err != nil {
				t.Fatalf("add folder: %v", err)
			}
			chain = append(chain, folder.ID)
		}

		top := rapid.IntRange(1, depth).Draw(t, "top")
		below := rapid.IntRange(top, depth).Draw(t, "below")
		before := structure(store)

		err := store.Reparent(chain[top], chain[below], "")
		if !errors.Is(err, domain.ErrCycleDetected) {
			t.Fatalf("expected cycle error moving %s into %s, got %v", chain[top], chain[below], err)
		}
		if after := structure(store); after != before {
			t.Fatalf("tree changed after rejected move:\n%s\n---\n%s", before, after)
		}
	})
}

// reparentBefore moves target in front of a sibling drawn from other's
// children and checks the resulting order.
func reparentBefore(t *rapid.T, store *tree.Store, target, other string) error {
	parent, ok := store.Node(other)
	if !ok || len(parent.ChildrenIDs) == 0 {
		return store.Reparent(target, other, "")
	}
	beforeID := rapid.SampledFrom(parent.ChildrenIDs).Draw(t, "before")
	err := store.Reparent(target, other, beforeID)
	if err != nil || beforeID == target {
		return err
	}
	siblings := parent.ChildrenIDs
	for index, id := range siblings {
		if id != target {
			continue
		}
		if index+1 >= len(siblings) || siblings[index+1] != beforeID {
			t.Fatalf("%s not placed before %s: %v", target, beforeID, siblings)
		}
		return nil
	}
	t.Fatalf("%s missing from %s after move", target, other)
	return nil
}
