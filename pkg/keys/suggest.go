package keys

import (
	"github.com/gookit/color"
	"github.com/mgutz/str"

	"github.com/xaizek/vifm-core/pkg/keys/trie"
)

// Suggestion is one possible continuation of a partial key sequence.
type Suggestion struct {
	LHS         string
	RHS         string
	Description string
}

// SuggestCB receives suggestions in tree order: user mappings first, then
// builtins, depth-first.
type SuggestCB func(Suggestion)

// foldedStyle marks the synthetic "{ N mappings folded }" placeholder that
// stands in for a subtree too large to enumerate in full.
var foldedStyle = color.New(color.FgGray)

// Suggest enumerates every continuation of prefix reachable from the
// active mode's user and builtin trees, in that order. Read-only: it never
// mutates either trie. Subtrees larger than one child are folded into a
// single synthetic entry unless foldSubkeys is false.
func (e *Engine) Suggest(prefix string, cb SuggestCB, customOnly, foldSubkeys bool) {
	mode := int(e.modes.Get())
	keys := []rune(prefix)

	e.keysSuggest(mode, e.userRoots[mode], keys, "key: ", cb, customOnly, foldSubkeys)
	e.keysSuggest(mode, e.builtinRoots[mode], keys, "key: ", cb, customOnly, foldSubkeys)
}

func (e *Engine) keysSuggest(mode int, root *trie.Trie, keys []rune, prefixLabel string, cb SuggestCB, customOnly, foldSubkeys bool) {
	curr := root.Root()

	for len(keys) > 0 {
		p, exact, nim := scanChild(root, curr, keys[0])
		if exact {
			keys = keys[1:]
			curr = p

			n := root.Node(curr)
			if n.Kind == trie.WaitPoint && n.Conf.Followed == trie.FollowedBySelector {
				e.keysSuggest(mode, e.selectorRoots[mode], keys, "sel: ", cb, customOnly, foldSubkeys)
			}
			continue
		}

		if curr == root.Root() {
			return
		}

		currNode := root.Node(curr)
		if currNode.Conf.Followed != trie.FollowedByNone && (!nim || !e.isAtCount(mode, keys)) {
			break
		}

		if nim {
			if newKeys, _ := e.getCount(mode, keys); len(newKeys) != len(keys) {
				keys = newKeys
				continue
			}
		}

		break
	}

	currNode := root.Node(curr)

	if !customOnly && len(keys) == 0 {
		if currNode.Kind == trie.UserMapping {
			if !currNode.NoRemap {
				e.keysSuggest(mode, e.userRoots[mode], []rune(currNode.Conf.RHS), prefixLabel, cb, customOnly, foldSubkeys)
			}
			e.keysSuggest(mode, e.builtinRoots[mode], []rune(currNode.Conf.RHS), prefixLabel, cb, customOnly, foldSubkeys)
			return
		}
		e.suggestChildren(root, curr, prefixLabel, foldSubkeys, cb)
	}

	if currNode.Kind == trie.WaitPoint && currNode.Conf.Followed == trie.FollowedByMultikey {
		if currNode.Conf.SuggestHook != nil {
			currNode.Conf.SuggestHook(func(lhs, rhs, descr string) {
				cb(Suggestion{LHS: lhs, RHS: rhs, Description: descr})
			})
		}
	}
}

func (e *Engine) suggestChildren(root *trie.Trie, chunk trie.ID, prefixLabel string, foldSubkeys bool, cb SuggestCB) {
	for c := root.Node(chunk).Child; c != trie.None; c = root.Node(c).Next {
		child := root.Node(c)
		if !foldSubkeys || child.ChildrenCount <= 1 {
			root.Traverse(c, nil, func(id trie.ID, lhs []rune) {
				e.suggestChunk(root, id, lhs, prefixLabel, cb)
			})
			continue
		}
		cb(Suggestion{
			LHS:         string(child.Value),
			Description: labelDescription(prefixLabel, foldedStyle.Sprintf("{ %d mappings folded }", child.ChildrenCount)),
		})
	}
}

func (e *Engine) suggestChunk(root *trie.Trie, id trie.ID, lhs []rune, prefixLabel string, cb SuggestCB) {
	n := root.Node(id)
	if n.Conf.SkipSuggestion {
		return
	}

	if n.Kind == trie.UserMapping {
		cb(Suggestion{LHS: string(lhs), RHS: n.Conf.RHS})
		return
	}
	if n.ChildrenCount == 0 || n.Conf.Followed != trie.FollowedByNone {
		cb(Suggestion{LHS: string(lhs), Description: labelDescription(prefixLabel, n.Conf.Description)})
	}
}

// labelDescription prepends the "key: "/"sel: " tree label a suggestion
// came from onto its human-readable description via mgutz/str, the same
// string-utility concern as turning a raw trie lookup result into display
// text for a listing or completion popup.
func labelDescription(prefixLabel, description string) string {
	if description == "" {
		return ""
	}
	return str.EnsurePrefix(description, prefixLabel)
}

// List enumerates every registered terminal of mode into cb. When
// userOnly is true, only user mappings are reported.
func (e *Engine) List(mode int, cb func(lhs string, rhs, description string), userOnly bool) {
	report := func(root *trie.Trie) {
		root.TraverseAll(func(id trie.ID, lhs []rune) {
			n := root.Node(id)
			if n.ChildrenCount != 0 && n.Kind != trie.UserMapping {
				return
			}
			switch n.Kind {
			case trie.UserMapping:
				cb(string(lhs), n.Conf.RHS, "")
			case trie.Builtin, trie.NIM:
				cb(string(lhs), "", n.Conf.Description)
			}
		})
	}

	report(e.userRoots[mode])
	if !userOnly {
		report(e.builtinRoots[mode])
	}
}
