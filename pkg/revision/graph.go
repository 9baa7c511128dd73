package revision

import (
	"fmt"
	"sort"
	"strings"
)

// Base is the symbolic target for the empty state preceding all
// revisions, Head for the most recent revision in the chain.
const (
	Base = "base"
	Head = "head"
)

// Chain is a validated set of revisions linked by parent pointers. It
// rejects duplicate ids, references to absent parents and cycles at
// construction time.
type Chain struct {
	revisions map[string]*Revision
	children  map[string][]string
	order     []*Revision
}

// NewChain builds and validates a chain from a set of revisions.
func NewChain(revs []*Revision) (*Chain, error) {
	c := &Chain{
		revisions: make(map[string]*Revision, len(revs)),
		children:  make(map[string][]string),
	}
	for _, r := range revs {
		if _, ok := c.revisions[r.ID]; ok {
			return nil, fmt.Errorf("revision: duplicate revision id %s", r.ID)
		}
		c.revisions[r.ID] = r
	}
	for _, r := range revs {
		for _, p := range r.Parents {
			if _, ok := c.revisions[p]; !ok {
				return nil, fmt.Errorf("revision: revision %s references unknown parent %s", r.ID, p)
			}
			c.children[p] = append(c.children[p], r.ID)
		}
	}
	if err := c.sort(); err != nil {
		return nil, err
	}
	return c, nil
}

// sort computes a deterministic parent-to-child order. ULIDs are
// time-ordered, so breaking ties by id keeps the order chronological.
func (c *Chain) sort() error {
	pending := make(map[string]int, len(c.revisions))
	var ready []string
	for id, r := range c.revisions {
		pending[id] = len(r.Parents)
		if len(r.Parents) == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		c.order = append(c.order, c.revisions[id])
		for _, child := range c.children[id] {
			pending[child]--
			if pending[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if len(c.order) != len(c.revisions) {
		var stuck []string
		for id, n := range pending {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return fmt.Errorf("revision: cycle detected involving %s", strings.Join(stuck, ", "))
	}
	return nil
}

// Len returns the number of revisions in the chain.
func (c *Chain) Len() int {
	return len(c.revisions)
}

// Get returns the revision with the given id, or nil.
func (c *Chain) Get(id string) *Revision {
	return c.revisions[id]
}

// Heads returns the ids of revisions without children, in id order. A
// healthy chain has exactly one head; more indicate divergence that
// needs a merge revision.
func (c *Chain) Heads() []string {
	var heads []string
	for id := range c.revisions {
		if len(c.children[id]) == 0 {
			heads = append(heads, id)
		}
	}
	sort.Strings(heads)
	return heads
}

// HeadID returns the single head of the chain. It fails when the chain
// is empty or has diverged.
func (c *Chain) HeadID() (string, error) {
	heads := c.Heads()
	switch len(heads) {
	case 0:
		return "", nil
	case 1:
		return heads[0], nil
	default:
		return "", fmt.Errorf("revision: multiple heads (%s), author a merge revision first", strings.Join(heads, ", "))
	}
}

// All returns the revisions in parent-to-child order.
func (c *Chain) All() []*Revision {
	out := make([]*Revision, len(c.order))
	copy(out, c.order)
	return out
}

// Iter returns a lazy, restartable iterator over the chain in
// parent-to-child order.
func (c *Chain) Iter() *Iterator {
	return &Iterator{chain: c}
}

// Iterator walks a chain in parent-to-child order.
type Iterator struct {
	chain *Chain
	pos   int
}

// Next returns the next revision, or false when exhausted.
func (it *Iterator) Next() (*Revision, bool) {
	if it.pos >= len(it.chain.order) {
		return nil, false
	}
	r := it.chain.order[it.pos]
	it.pos++
	return r, true
}

// Reset restarts the iterator from the base of the chain.
func (it *Iterator) Reset() {
	it.pos = 0
}

// ancestors returns the inclusive ancestor set of the given revision.
func (c *Chain) ancestors(id string) map[string]bool {
	set := make(map[string]bool)
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set[cur] {
			continue
		}
		set[cur] = true
		stack = append(stack, c.revisions[cur].Parents...)
	}
	return set
}

// Resolve turns a target reference into a revision id. Supported
// references: "head", "base", "+N"/"-N" relative to current, or a
// literal id which may be abbreviated to a unique prefix. The empty id
// stands for base throughout.
func (c *Chain) Resolve(target, current string) (string, error) {
	switch {
	case target == Head:
		return c.HeadID()
	case target == Base:
		return "", nil
	case strings.HasPrefix(target, "+"):
		n, err := parseOffset(target)
		if err != nil {
			return "", err
		}
		return c.walkForward(current, n)
	case strings.HasPrefix(target, "-"):
		n, err := parseOffset(target)
		if err != nil {
			return "", err
		}
		return c.walkBack(current, n)
	default:
		return c.match(target)
	}
}

func parseOffset(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s[1:], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("revision: invalid relative target %q", s)
	}
	return n, nil
}

func (c *Chain) walkForward(current string, n int) (string, error) {
	id := current
	for i := 0; i < n; i++ {
		kids := append([]string(nil), c.childrenOf(id)...)
		switch len(kids) {
		case 0:
			return "", fmt.Errorf("revision: relative target +%d overshoots head", n)
		case 1:
			id = kids[0]
		default:
			sort.Strings(kids)
			return "", fmt.Errorf("revision: ambiguous +%d target, chain branches at %s into %s", n, displayID(id), strings.Join(kids, ", "))
		}
	}
	return id, nil
}

// childrenOf returns the children of id; for the base it returns the
// root revisions.
func (c *Chain) childrenOf(id string) []string {
	if id != "" {
		return c.children[id]
	}
	var roots []string
	for rid, r := range c.revisions {
		if len(r.Parents) == 0 {
			roots = append(roots, rid)
		}
	}
	return roots
}

func (c *Chain) walkBack(current string, n int) (string, error) {
	id := current
	for i := 0; i < n; i++ {
		if id == "" {
			return "", fmt.Errorf("revision: relative target -%d overshoots base", n)
		}
		r := c.revisions[id]
		if r == nil {
			return "", fmt.Errorf("revision: current revision %s not found in chain", id)
		}
		if len(r.Parents) == 0 {
			id = ""
			continue
		}
		// A merge is unwound towards its first-listed parent.
		id = r.Parents[0]
	}
	return id, nil
}

// match resolves a literal id, allowing unique prefixes.
func (c *Chain) match(ref string) (string, error) {
	upper := strings.ToUpper(ref)
	if _, ok := c.revisions[upper]; ok {
		return upper, nil
	}
	var found []string
	for id := range c.revisions {
		if strings.HasPrefix(id, upper) {
			found = append(found, id)
		}
	}
	sort.Strings(found)
	switch len(found) {
	case 0:
		return "", fmt.Errorf("revision: no revision matches %q", ref)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("revision: ambiguous revision %q matches %s", ref, strings.Join(found, ", "))
	}
}

// UpPath returns the revisions to apply, in order, to move the marker
// from `from` to `to`. Both bounds may be empty (base); `from` is
// exclusive, `to` inclusive. It fails when `to` is not a descendant of
// `from`.
func (c *Chain) UpPath(from, to string) ([]*Revision, error) {
	if to == "" {
		if from == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("revision: %s is not an upgrade target from %s, use downgrade", Base, displayID(from))
	}
	if c.revisions[to] == nil {
		return nil, fmt.Errorf("revision: unknown revision %s", to)
	}
	target := c.ancestors(to)
	if from != "" {
		if c.revisions[from] == nil {
			return nil, fmt.Errorf("revision: current revision %s not found in chain", from)
		}
		if !target[from] {
			return nil, fmt.Errorf("revision: %s is not a descendant of %s, use downgrade", to, from)
		}
		for id := range c.ancestors(from) {
			delete(target, id)
		}
	}
	var path []*Revision
	for _, r := range c.order {
		if target[r.ID] {
			path = append(path, r)
		}
	}
	return path, nil
}

// DownPath returns the revisions to revert, in reverse chain order, to
// move the marker from `from` back to `to`, paired with the marker to
// record after each revert. A marker must name a revision whose
// inclusive ancestor set is exactly the revisions still applied; while
// a merge's sibling branch is partially reverted no such revision
// exists and the marker stays at its previous value, so a rerun
// recomputes the full remaining path. It fails when `to` is not an
// ancestor of `from`.
func (c *Chain) DownPath(from, to string) ([]*Revision, []string, error) {
	if from == "" {
		if to == "" {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("revision: already at %s", Base)
	}
	if c.revisions[from] == nil {
		return nil, nil, fmt.Errorf("revision: current revision %s not found in chain", from)
	}
	applied := c.ancestors(from)
	keep := make(map[string]bool)
	if to != "" {
		if c.revisions[to] == nil {
			return nil, nil, fmt.Errorf("revision: unknown revision %s", to)
		}
		if !applied[to] {
			return nil, nil, fmt.Errorf("revision: %s is not an ancestor of %s, use upgrade", to, from)
		}
		keep = c.ancestors(to)
	}
	var path []*Revision
	var markers []string
	marker := from
	for i := len(c.order) - 1; i >= 0; i-- {
		r := c.order[i]
		if !applied[r.ID] || keep[r.ID] {
			continue
		}
		path = append(path, r)
		delete(applied, r.ID)
		if rep, ok := c.representative(applied); ok {
			marker = rep
		}
		markers = append(markers, marker)
	}
	return path, markers, nil
}

// representative returns the revision whose inclusive ancestor set is
// exactly the given set, if one exists. The set is ancestor-closed
// because reverts walk the chain in reverse order, so it suffices to
// find a unique childless element covering the whole set.
func (c *Chain) representative(set map[string]bool) (string, bool) {
	if len(set) == 0 {
		return "", true
	}
	var tip string
	for id := range set {
		leaf := true
		for _, child := range c.children[id] {
			if set[child] {
				leaf = false
				break
			}
		}
		if !leaf {
			continue
		}
		if tip != "" {
			return "", false
		}
		tip = id
	}
	if tip == "" || len(c.ancestors(tip)) != len(set) {
		return "", false
	}
	return tip, true
}

func displayID(id string) string {
	if id == "" {
		return Base
	}
	return id
}
