package ledger

import (
	"fmt"
	"sort"
)

// Tree indexes the account forest by parent.
type Tree struct {
	nodes    map[string]Account
	children map[string][]string
}

func NewTree(accounts []Account) *Tree {
	t := &Tree{
		nodes:    make(map[string]Account, len(accounts)),
		children: make(map[string][]string),
	}
	for _, a := range accounts {
		t.nodes[a.ID] = a
		if a.ParentID != "" {
			t.children[a.ParentID] = append(t.children[a.ParentID], a.ID)
		}
	}
	for id := range t.children {
		sort.Strings(t.children[id])
	}
	return t
}

func (t *Tree) Get(id string) (Account, bool) {
	a, ok := t.nodes[id]
	return a, ok
}

func (t *Tree) Len() int { return len(t.nodes) }

// Descendants returns root and every account below it. The walk uses an
// explicit stack so depth is bounded by memory, not the goroutine stack, and
// fails with ErrTreeCycle if a node is reached twice.
func (t *Tree) Descendants(root string) ([]string, error) {
	if _, ok := t.nodes[root]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, root)
	}

	seen := map[string]bool{root: true}
	out := []string{root}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range t.children[id] {
			if seen[child] {
				return nil, fmt.Errorf("%w: %s revisited below %s", ErrTreeCycle, child, root)
			}
			seen[child] = true
			out = append(out, child)
			stack = append(stack, child)
		}
	}
	return out, nil
}

// ExpandAll returns the union of the descendant closures of roots, in
// first-seen order.
func (t *Tree) ExpandAll(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, root := range roots {
		ids, err := t.Descendants(root)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// OfType lists every account of the given type, sorted by id.
func (t *Tree) OfType(typ AccountType) []string {
	var out []string
	for id, a := range t.nodes {
		if a.Type == typ {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// CheckParent refuses a parent that is the account itself or one of its
// descendants.
func (t *Tree) CheckParent(id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == id {
		return fmt.Errorf("%w: %s", ErrParentCycle, id)
	}
	if _, ok := t.nodes[parentID]; !ok {
		return fmt.Errorf("%w: parent %s", ErrAccountNotFound, parentID)
	}
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	below, err := t.Descendants(id)
	if err != nil {
		return err
	}
	for _, d := range below {
		if d == parentID {
			return fmt.Errorf("%w: %s is below %s", ErrParentCycle, parentID, id)
		}
	}
	return nil
}
