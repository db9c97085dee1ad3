// Package trie implements the per-mode, per-kind key chunk tree described by
// the key engine: an arena of node records addressed by integer handles
// rather than raw pointers (see spec.md's "Pointer-heavy trie with ordered
// sibling lists" redesign note). Each node ("chunk") represents one wide
// character step of a key sequence; child lists are kept sorted by value so
// that a linear scan can stop as soon as it passes the target character.
package trie

import "fmt"

// ID addresses a chunk inside a Trie's arena. The zero value is the root.
type ID int32

// None is the "no node" sentinel, e.g. for parent/child/sibling links that
// aren't set.
const None ID = -1

// Kind is the general type of a key chunk.
type Kind uint8

const (
	// WaitPoint is an intermediate node: no action, wait for the next key.
	WaitPoint Kind = iota
	// Builtin is a leaf with a native handler (or a foreign, user-installed
	// chunk that's treated as if it were builtin).
	Builtin
	// NIM is a builtin that may have a decimal count embedded after it
	// ("number in the middle").
	NIM
	// UserMapping is a leaf holding an RHS to be re-fed into the engine.
	UserMapping
)

// Followed describes what must follow a chunk once it's matched.
type Followed uint8

const (
	// FollowedByNone means the chunk is dispatched as soon as it's matched.
	FollowedByNone Followed = iota
	// FollowedByMultikey means exactly one more, arbitrary character must
	// follow (e.g. f<x>).
	FollowedByMultikey
	// FollowedBySelector means a full sub-sequence from a selector tree must
	// follow (e.g. d<motion>).
	FollowedBySelector
)

// Handler is a native action bound to a builtin chunk. Returning a non-zero,
// non-reserved value passes that code through to the caller of the engine.
type Handler func(keyInfo, keysInfo interface{}) int

// SuggestHook lets a chunk (typically one followed by a multikey) enumerate
// its own continuations, e.g. the space of valid "target character" values.
type SuggestHook func(add func(lhs, rhs, descr string))

// Config is the configuration carried by a terminal chunk.
type Config struct {
	Handler        Handler
	RHS            string // only meaningful for UserMapping chunks
	Description    string
	SuggestHook    SuggestHook
	UserData       interface{}
	SkipSuggestion bool
	Followed       Followed
	NIM            bool // requests Kind==NIM at registration time
}

// Chunk is one node of the trie.
type Chunk struct {
	Value rune
	Kind  Kind

	Foreign bool // user-installed but treated as builtin
	NoRemap bool // RHS interpreted against builtin tree only
	Silent  bool // suppress UI updates while RHS runs
	Wait    bool // force indefinite wait on short-wait conflict

	Conf Config

	ChildrenCount int // number of terminal descendants reachable through this node

	enters  int  // re-entrancy counter; deletion deferred while > 0
	deleted bool // pending-free flag

	Parent, Child, Prev, Next ID
}

// Trie is one tree: builtin_roots[mode], user_roots[mode], or
// selectors_roots[mode] from spec.md's data model, before indexing by mode.
type Trie struct {
	nodes    []Chunk
	freeList []ID
}

// New returns an empty trie (just a root chunk with no children).
func New() *Trie {
	t := &Trie{nodes: make([]Chunk, 1)}
	t.nodes[0] = Chunk{Parent: None, Child: None, Prev: None, Next: None}
	return t
}

// Root is the id of the tree's root chunk. It never carries a handler and is
// never a terminal itself.
func (t *Trie) Root() ID { return 0 }

// Node returns a pointer to the chunk addressed by id. The pointer is valid
// only until the next Add/Remove call, which may reallocate the backing
// slice.
func (t *Trie) Node(id ID) *Chunk {
	return &t.nodes[id]
}

func (t *Trie) alloc() ID {
	if n := len(t.freeList); n > 0 {
		id := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		return id
	}
	t.nodes = append(t.nodes, Chunk{})
	return ID(len(t.nodes) - 1)
}

// findChild returns the first child of parent whose Value >= v, and reports
// whether that child's Value equals v exactly (an existing match).
func (t *Trie) findChild(parent ID, v rune) (child ID, exact bool) {
	for c := t.nodes[parent].Child; c != None; c = t.nodes[c].Next {
		if t.nodes[c].Value == v {
			return c, true
		}
		if t.nodes[c].Value > v {
			return c, false
		}
	}
	return None, false
}

// Find performs a strict lookup of seq starting at the root. It returns
// (None, false) if no such sequence was registered.
func (t *Trie) Find(seq []rune) (ID, bool) {
	if len(seq) == 0 {
		return None, false
	}
	curr := t.Root()
	for _, r := range seq {
		child, exact := t.findChild(curr, r)
		if !exact {
			return None, false
		}
		curr = child
	}
	if n := t.nodes[curr]; n.Kind == WaitPoint && n.Conf.Handler == nil {
		return None, false
	}
	return curr, true
}

// Add walks or grows the trie along seq. If the terminal node already
// exists its configuration is overwritten (the previous RHS, if any, is
// simply dropped — Go's GC reclaims it). children_count is bumped on all
// ancestors only when a brand new terminal is created.
func (t *Trie) Add(seq []rune, kind Kind, conf Config) (ID, error) {
	if len(seq) == 0 {
		return None, fmt.Errorf("trie: empty key sequence")
	}

	curr := t.Root()
	for i, r := range seq {
		child, exact := t.findChild(curr, r)
		if !exact {
			child = t.insertChild(curr, child, r)
			if i == len(seq)-1 {
				t.bumpChildrenCount(curr, 1)
			}
		}
		curr = child
	}

	node := t.Node(curr)
	node.Kind = kind
	node.Conf = conf
	node.deleted = false
	return curr, nil
}

// insertChild inserts a fresh WaitPoint chunk with value v as a child of
// parent, right before "before" (which may be None to append at the end of
// the sorted sibling list), and returns its id.
func (t *Trie) insertChild(parent, before ID, v rune) ID {
	id := t.alloc()
	var prev ID = None
	if before != None {
		prev = t.nodes[before].Prev
	} else if c := t.nodes[parent].Child; c != None {
		for n := c; n != None; n = t.nodes[n].Next {
			prev = n
		}
	}

	*t.Node(id) = Chunk{
		Value:  v,
		Kind:   WaitPoint,
		Parent: parent,
		Child:  None,
		Prev:   prev,
		Next:   before,
	}

	if prev != None {
		t.nodes[prev].Next = id
	} else {
		t.nodes[parent].Child = id
	}
	if before != None {
		t.nodes[before].Prev = id
	}
	return id
}

func (t *Trie) bumpChildrenCount(from ID, delta int) {
	for n := from; n != None; n = t.nodes[n].Parent {
		t.nodes[n].ChildrenCount += delta
	}
}

// Enters reports the current borrow count of id, e.g. to let a caller tell
// a first-time activation of a chunk from a re-entrant one.
func (t *Trie) Enters(id ID) int {
	return t.nodes[id].enters
}

// Enter marks id as being actively used by a dispatch frame, deferring any
// Remove targeting it until the matching Leave brings the borrow count back
// to zero.
func (t *Trie) Enter(id ID) {
	t.nodes[id].enters++
}

// Leave releases a borrow taken by Enter, freeing the chunk if a Remove was
// deferred while it was in use.
func (t *Trie) Leave(id ID) {
	n := t.Node(id)
	n.enters--
	if n.enters == 0 && n.deleted {
		t.free(id)
	}
}

// Remove clears the terminal marker on id and unlinks it (and then any
// now-empty WaitPoint ancestors) from the tree. If id is currently borrowed
// (Enter without a matching Leave), freeing is postponed until the borrow
// count returns to zero.
func (t *Trie) Remove(id ID) {
	n := t.Node(id)
	n.Kind = WaitPoint
	n.Conf = Config{}

	t.bumpChildrenCount(n.Parent, -1)

	if n.ChildrenCount > 0 {
		return
	}

	curr := id
	for {
		c := t.Node(curr)
		parent := c.Parent
		if c.Prev != None {
			t.nodes[c.Prev].Next = c.Next
		} else if parent != None {
			t.nodes[parent].Child = c.Next
		}
		if c.Next != None {
			t.nodes[c.Next].Prev = c.Prev
		}

		t.freeOrDefer(curr)

		if parent == None {
			return
		}
		p := t.Node(parent)
		if parent == t.Root() || p.Kind != WaitPoint || p.ChildrenCount != 0 || p.Conf.Handler != nil {
			return
		}
		curr = parent
	}
}

func (t *Trie) freeOrDefer(id ID) {
	n := t.Node(id)
	if n.enters == 0 {
		t.free(id)
	} else {
		n.deleted = true
	}
}

func (t *Trie) free(id ID) {
	*t.Node(id) = Chunk{}
	t.freeList = append(t.freeList, id)
}

// Traverse runs a depth-first, sibling-order, self-inclusive visit starting
// at id: cb is called for id itself with lhs = prefix + id's own value, and
// then for every descendant with the accumulated sequence.
func (t *Trie) Traverse(id ID, prefix []rune, cb func(id ID, lhs []rune)) {
	n := t.Node(id)
	lhs := append(append([]rune(nil), prefix...), n.Value)
	cb(id, lhs)
	for c := n.Child; c != None; c = t.nodes[c].Next {
		t.Traverse(c, lhs, cb)
	}
}

// TraverseAll visits every node of the whole tree rooted at Root(),
// intermediate wait points included, without reporting the synthetic root
// node itself; callers filter for terminals.
func (t *Trie) TraverseAll(cb func(id ID, lhs []rune)) {
	for c := t.nodes[t.Root()].Child; c != None; c = t.nodes[c].Next {
		t.Traverse(c, nil, cb)
	}
}
