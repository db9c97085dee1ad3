package keys

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/xaizek/vifm-core/pkg/keys/trie"
	"github.com/xaizek/vifm-core/pkg/vlemode"
)

// DefaultHandler is consulted for a character the trie cannot interpret.
type DefaultHandler func(c rune) Result

// ReplaceLogger receives a debug-level diagnostic; *logrus.Entry satisfies
// it, so the Event Loop's owner can wire the same logger the rest of the
// process uses without this package importing logrus directly.
type ReplaceLogger interface {
	Debugf(format string, args ...interface{})
}

// Engine resolves a buffer of wide characters against a mode's user,
// builtin and selector trees. It owns no input source or terminal state;
// it is a pure state machine driven by the Event Loop.
//
// An Engine is not safe for concurrent use: like the Mode Registry, it's
// owned by the single event loop goroutine and the handlers it calls
// synchronously (see spec.md's single-threaded cooperative scheduling
// model, carried over from the "Global mutable state" design note: counter,
// enters_counter, enter_seq, inside_mapping, mapping_state and
// mapping_enter_seq become fields of this struct instead of process
// globals).
type Engine struct {
	modes *vlemode.Registry

	modeFlags       []ModeFlags
	defaultHandlers []DefaultHandler

	builtinRoots  []*trie.Trie
	userRoots     []*trie.Trie
	selectorRoots []*trie.Trie

	silenceUI func(bool)
	replaceLog ReplaceLogger

	counter         uint64
	entersCounter   int
	enterSeq        int
	insideMapping   int
	mappingState    int
	mappingEnterSeq int
}

// NewEngine allocates per-mode trees for numModes modes. modeFlags must
// have numModes entries. silenceUI may be nil.
func NewEngine(numModes int, modeFlags []ModeFlags, silenceUI func(bool)) *Engine {
	e := &Engine{
		modes:           vlemode.NewRegistry(),
		modeFlags:       append([]ModeFlags(nil), modeFlags...),
		defaultHandlers: make([]DefaultHandler, numModes),
		builtinRoots:    make([]*trie.Trie, numModes),
		userRoots:       make([]*trie.Trie, numModes),
		selectorRoots:   make([]*trie.Trie, numModes),
		silenceUI:       silenceUI,
	}
	for m := 0; m < numModes; m++ {
		e.builtinRoots[m] = trie.New()
		e.userRoots[m] = trie.New()
		e.selectorRoots[m] = trie.New()
	}
	return e
}

// Modes exposes the engine's mode registry so the Event Loop and handlers
// can query/change the active mode.
func (e *Engine) Modes() *vlemode.Registry { return e.modes }

// SetReplaceLogger installs the sink AddUser reports mapping-redefinition
// diffs to. Nil disables the diagnostic.
func (e *Engine) SetReplaceLogger(l ReplaceLogger) { e.replaceLog = l }

// Counter returns the number of non-mapped, non-recursive characters
// consumed so far (used for macro expansion such as "%n").
func (e *Engine) Counter() uint64 { return e.counter }

// MappingState returns a value that increases each time a new top-level
// user-mapping RHS begins executing; zero while not inside a mapping.
func (e *Engine) MappingState() int {
	if e.insideMapping > 0 {
		return e.mappingState
	}
	return 0
}

// SetDefaultHandler installs the fallback invoked for a character the
// trie cannot interpret in the given mode.
func (e *Engine) SetDefaultHandler(mode int, h DefaultHandler) {
	e.defaultHandlers[mode] = h
}

// AddBuiltin registers a native command.
func (e *Engine) AddBuiltin(mode int, lhs string, followed trie.Followed, conf Config) error {
	_, err := e.builtinRoots[mode].Add([]rune(lhs), kindFor(conf, followed), conf.toTrie(followed, false))
	return err
}

// AddSelector registers a motion/target sequence in the mode's selector
// tree.
func (e *Engine) AddSelector(mode int, lhs string, conf Config) error {
	_, err := e.selectorRoots[mode].Add([]rune(lhs), Builtin, conf.toTrie(trie.FollowedByNone, false))
	return err
}

// AddUser registers (or overwrites) a user mapping lhs -> rhs.
func (e *Engine) AddUser(mode int, lhs, rhs string, opts AddInfo) error {
	root := e.userRoots[mode]

	var oldRHS string
	hadOld := false
	if existing, ok := root.Find([]rune(lhs)); ok {
		n := root.Node(existing)
		if n.Kind == trie.UserMapping {
			oldRHS, hadOld = n.Conf.RHS, true
		}
	}

	id, err := root.Add([]rune(lhs), trie.UserMapping, trie.Config{RHS: rhs})
	if err != nil {
		return err
	}
	n := root.Node(id)
	n.NoRemap = opts.NoRemap
	n.Silent = opts.Silent
	n.Wait = opts.Wait

	if hadOld && oldRHS != rhs && e.replaceLog != nil {
		e.logMappingReplaced(lhs, oldRHS, rhs)
	}
	return nil
}

// logMappingReplaced renders a unified diff of a redefined mapping's RHS,
// the same kind of before/after diagnostic the teacher's tooling reaches
// for pmezard/go-difflib to produce.
func (e *Engine) logMappingReplaced(lhs, oldRHS, newRHS string) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldRHS),
		B:        difflib.SplitLines(newRHS),
		FromFile: "old rhs",
		ToFile:   "new rhs",
		Context:  0,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return
	}
	e.replaceLog.Debugf("mapping %q redefined:\n%s", lhs, text)
}

// AddForeign registers a user-installed chunk that's treated as if it
// were builtin (e.g. a plugin command), in either the user command tree
// or the selector tree.
func (e *Engine) AddForeign(mode int, lhs string, conf Config, isSelector bool) error {
	root := e.userRoots[mode]
	if isSelector {
		root = e.selectorRoots[mode]
		if _, ok := root.Find([]rune(lhs)); ok {
			return fmt.Errorf("keys: selector %q already registered", lhs)
		}
	}
	id, err := root.Add([]rune(lhs), kindFor(conf, conf.Followed), conf.toTrie(conf.Followed, true))
	if err != nil {
		return err
	}
	root.Node(id).Foreign = true
	return nil
}

// RemoveUser unregisters a user mapping. Removing a sequence that was
// never registered is reported as an error, never a panic.
func (e *Engine) RemoveUser(mode int, lhs string) error {
	id, ok := e.userRoots[mode].Find([]rune(lhs))
	if !ok {
		return fmt.Errorf("keys: no user mapping for %q", lhs)
	}
	e.userRoots[mode].Remove(id)
	return nil
}

// ClearUser removes every user mapping across all modes.
func (e *Engine) ClearUser() {
	for m := range e.userRoots {
		e.userRoots[m] = trie.New()
	}
}

// Exists reports whether lhs resolves to a registered (builtin or user)
// sequence in mode.
func (e *Engine) Exists(mode int, lhs string) bool {
	if _, ok := e.userRoots[mode].Find([]rune(lhs)); ok {
		return true
	}
	_, ok := e.builtinRoots[mode].Find([]rune(lhs))
	return ok
}

// Config bundles the registration-time configuration of a chunk in terms
// that don't require callers to import the trie package directly.
type Config struct {
	Handler        Handler
	Description    string
	SuggestHook    SuggestHook
	UserData       interface{}
	SkipSuggestion bool
	Followed       trie.Followed
	NIM            bool
}

func (c Config) toTrie(followed trie.Followed, foreign bool) trie.Config {
	return trie.Config{
		Handler:        c.Handler,
		Description:    c.Description,
		SuggestHook:    c.SuggestHook,
		UserData:       c.UserData,
		SkipSuggestion: c.SkipSuggestion,
		Followed:       followed,
		NIM:            c.NIM,
	}
}

func kindFor(c Config, followed trie.Followed) trie.Kind {
	if c.NIM {
		return trie.NIM
	}
	if followed != trie.FollowedByNone {
		return trie.WaitPoint
	}
	return trie.Builtin
}

// Execute resolves fresh input.
func (e *Engine) Execute(seq string) Result {
	return e.executeGeneral([]rune(seq), false, false, false)
}

// ExecuteNoRemap is Execute with user-mapping recursion on the RHS disabled.
func (e *Engine) ExecuteNoRemap(seq string) Result {
	return e.executeGeneral([]rune(seq), false, false, true)
}

// ExecuteTimedOut is used when the Event Loop's short-wait timer expired:
// it relaxes the "wait for more" policy so a partial match that also has a
// prefix hit can fire.
func (e *Engine) ExecuteTimedOut(seq string) Result {
	return e.executeGeneral([]rune(seq), true, false, false)
}

// ExecuteTimedOutNoRemap combines ExecuteTimedOut and ExecuteNoRemap.
func (e *Engine) ExecuteTimedOutNoRemap(seq string) Result {
	return e.executeGeneral([]rune(seq), true, false, true)
}

func isKeysRetCode(r Result) bool { return r == Wait || r == WaitShort }

func (e *Engine) executeGeneral(keys []rune, timedOut, mapped, noRemap bool) Result {
	e.entersCounter++
	if e.entersCounter == 1 {
		if e.enterSeq == math.MaxInt32 {
			e.enterSeq = 1
		} else {
			e.enterSeq++
		}
	}
	result := e.executeGeneralInner(keys, timedOut, mapped, noRemap)
	e.entersCounter--
	return result
}

func (e *Engine) executeGeneralInner(keys []rune, timedOut, mapped, noRemap bool) Result {
	if len(keys) == 0 {
		return Unknown
	}

	mode := int(e.modes.Get())
	ki := &DispatchInfo{Mapped: mapped, Recursive: e.entersCounter > 1, AfterWait: timedOut}
	_, result := e.dispatchKeysTop(mode, keys, ki, noRemap, NoCountGiven)

	if result == Unknown && e.defaultHandlers[mode] != nil {
		result = e.defaultHandlers[mode](keys[0])
		e.executeGeneralInner(keys[1:], false, mapped, noRemap)
	}
	return result
}

// dispatchKeysTop strips a leading register/count and tries the user tree
// then the builtin tree (unless noRemap), mirroring dispatch_keys().
func (e *Engine) dispatchKeysTop(mode int, keys []rune, ki *DispatchInfo, noRemap bool, prevCount int) ([]rune, Result) {
	keysStart := keys

	rest, info, result, handled := e.fillKeyInfo(mode, keys, prevCount)
	if handled {
		return rest, result
	}

	// Only register/count stripping is this call's own contribution to the
	// counter; whatever the tree walk below consumes is accounted for by
	// its own, inner incCounter calls.
	result = Unknown
	if !noRemap {
		_, result = e.dispatchKeysAtRoot(mode, rest, ki, e.userRoots[mode], true, info, noRemap)
	}
	if result == Unknown {
		_, result = e.dispatchKeysAtRoot(mode, rest, ki, e.builtinRoots[mode], false, info, noRemap)
	}

	if !isKeysRetCode(result) {
		e.incCounter(ki, len(keysStart)-len(rest))
	}
	return rest, result
}

// fillKeyInfo parses a leading register and count off keys.
func (e *Engine) fillKeyInfo(mode int, keys []rune, prevCount int) (rest []rune, info Info, result Result, handled bool) {
	rest, reg, ok := e.getReg(mode, keys)
	if !ok {
		return nil, Info{}, Wait, true
	}
	if reg == '\x1b' || reg == '\x03' {
		return rest, Info{}, Ok, true
	}

	rest, count := e.getCount(mode, rest)
	info = Info{Count: combineCounts(count, prevCount), Register: reg}
	return rest, info, Ok, false
}

func (e *Engine) getReg(mode int, keys []rune) (rest []rune, reg rune, ok bool) {
	if !e.modeFlags[mode].has(UsesRegs) {
		return keys, NoRegGiven, true
	}
	if len(keys) > 0 && keys[0] == '"' {
		if len(keys) < 2 {
			return nil, 0, false
		}
		return keys[2:], keys[1], true
	}
	return keys, NoRegGiven, true
}

func (e *Engine) isAtCount(mode int, keys []rune) bool {
	if !e.modeFlags[mode].has(UsesCount) {
		return false
	}
	return len(keys) > 0 && keys[0] >= '1' && keys[0] <= '9'
}

func (e *Engine) getCount(mode int, keys []rune) (rest []rune, count int) {
	if !e.isAtCount(mode, keys) {
		return keys, NoCountGiven
	}
	i := 0
	for i < len(keys) && keys[i] >= '0' && keys[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(string(keys[:i]))
	if err != nil || n <= 0 || n > maxCount {
		n = maxCount
	}
	return keys[i:], n
}

// scanChild finds the first child of parent whose value isn't less than
// target. On an exact match, nim reports whether a sibling scanned before
// the match is a NIM chunk (the match itself is not checked); without one,
// it reports whether any child of parent is a NIM chunk.
func scanChild(tr *trie.Trie, parent trie.ID, target rune) (match trie.ID, exact bool, nim bool) {
	p := tr.Node(parent).Child
	for p != trie.None && tr.Node(p).Value < target {
		if tr.Node(p).Kind == trie.NIM {
			nim = true
		}
		p = tr.Node(p).Next
	}
	if p != trie.None && tr.Node(p).Value == target {
		return p, true, nim
	}
	for q := p; q != trie.None; q = tr.Node(q).Next {
		if tr.Node(q).Kind == trie.NIM {
			nim = true
		}
	}
	return trie.None, false, nim
}

// containsChain reports whether the builtin tree has a decisive (no
// further waiting needed) chunk exactly at begin[:len(begin)-len(end)].
func (e *Engine) containsChain(mode int, begin, end []rune) bool {
	n := len(begin) - len(end)
	if n <= 0 {
		return false
	}
	root := e.builtinRoots[mode]
	id, ok := root.Find(begin[:n])
	if !ok {
		return false
	}
	node := root.Node(id)
	return node.Conf.Followed == trie.FollowedByNone && node.Kind != trie.WaitPoint
}

// dispatchKeysAtRoot finds the longest match of keys in root's tree,
// handling NIM counts embedded mid-sequence, and finalizes via
// executeNextKeys. Mirrors dispatch_keys_at_root().
func (e *Engine) dispatchKeysAtRoot(mode int, keys []rune, ki *DispatchInfo, root *trie.Trie, rootIsUser bool, info Info, noRemap bool) ([]rune, Result) {
	keysStart := keys
	curr := root.Root()

	for len(keys) > 0 {
		p, exact, nim := scanChild(root, curr, keys[0])
		if !exact {
			if curr == root.Root() {
				return keys, Unknown
			}

			currNode := root.Node(curr)
			if currNode.Conf.Followed != trie.FollowedByNone && (!nim || !e.isAtCount(mode, keys)) {
				break
			}

			if nim {
				if newKeys, count := e.getCount(mode, keys); len(newKeys) != len(keys) {
					info.Count = combineCounts(info.Count, count)
					keys = newKeys
					continue
				}
			}

			if currNode.Kind == trie.WaitPoint {
				return keys, Unknown
			}

			info.UserData = currNode.Conf.UserData
			hasDuplicate := rootIsUser && e.containsChain(mode, keysStart, keys)

			var trailing []rune
			if currNode.Kind == trie.UserMapping {
				trailing = keys
			}
			_, result := e.executeNextKeys(mode, curr, root, trailing, &info, ki, hasDuplicate, noRemap)

			if currNode.Kind == trie.UserMapping {
				// We've at least attempted to execute a user mapping: trying
				// to interpret its LHS differently would be a mistake.
				return keys, Ok
			}
			if isKeysRetCode(result) {
				if result == WaitShort {
					return keys, Unknown
				}
				return keys, result
			}
			e.incCounter(ki, len(keysStart)-len(keys))
			return nil, e.executeGeneralInner(keys, false, ki.Mapped, noRemap)
		}

		keys = keys[1:]
		curr = p
	}

	currNode := root.Node(curr)
	if len(keys) == 0 && currNode.Kind != trie.WaitPoint && currNode.ChildrenCount > 0 &&
		(currNode.Kind == trie.UserMapping || currNode.Conf.Handler != nil) && !ki.AfterWait {
		return keys, WaitShort
	}

	info.UserData = currNode.Conf.UserData
	hasDuplicate := rootIsUser && e.containsChain(mode, keysStart, keys)
	_, result := e.executeNextKeys(mode, curr, root, keys, &info, ki, hasDuplicate, noRemap)

	if !isKeysRetCode(result) {
		e.incCounter(ki, len(keysStart)-len(keys))
	} else if len(keys) == 0 && result == Unknown && currNode.ChildrenCount > 0 {
		if ki.AfterWait {
			return keys, Unknown
		}
		return keys, WaitShort
	}
	return keys, result
}

// dispatchSelector resolves a selector sub-sequence and then runs the
// command that requested it.
func (e *Engine) dispatchSelector(mode int, keys []rune, ki *DispatchInfo, masterInfo Info, masterCurr trie.ID, masterRoot *trie.Trie, noRemap bool) ([]rune, Result) {
	keysStart := keys
	selRoot := e.selectorRoots[mode]

	rest, info, result, handled := e.fillKeyInfo(mode, keys, masterInfo.Count)
	if handled {
		return rest, result
	}
	keys = rest

	curr := selRoot.Root()
	for len(keys) > 0 {
		p, exact, _ := scanChild(selRoot, curr, keys[0])
		if !exact {
			break
		}
		keys = keys[1:]
		curr = p
	}

	n := selRoot.Node(curr)
	if len(keys) == 0 && n.Kind != trie.WaitPoint && n.ChildrenCount > 0 &&
		n.Conf.Handler != nil && !ki.AfterWait {
		return keys, WaitShort
	}
	info.UserData = n.Conf.UserData

	switch {
	case n.Conf.Followed == trie.FollowedByMultikey && len(keys) > 0:
		mk := keys[:1]
		_, result = e.executeNextKeys(mode, curr, selRoot, mk, &info, ki, false, noRemap)
		keys = keys[1:]
	case len(keys) == 0:
		_, result = e.executeNextKeys(mode, curr, selRoot, nil, &info, ki, false, noRemap)
	default:
		_, result = e.dispatchKey(mode, curr, selRoot, nil, &info, ki)
	}
	if isKeysRetCode(result) {
		return keys, result
	}

	// The count was consumed by the selector; don't also pass it to the
	// command that requested it.
	masterInfo.Count = NoCountGiven
	result = e.executeMappingHandler(masterRoot.Node(masterCurr).Conf, masterInfo, ki)
	if isKeysRetCode(result) {
		return keys, result
	}

	e.incCounter(ki, len(keysStart)-len(keys))

	if len(keys) == 0 {
		return keys, Ok
	}
	return nil, e.executeGeneralInner(keys, ki.AfterWait, ki.Mapped, noRemap)
}

// executeNextKeys handles whatever follows the first resolved chunk: an
// empty tail, a selector, a multikey argument, or a plain dispatch.
func (e *Engine) executeNextKeys(mode int, curr trie.ID, root *trie.Trie, keys []rune, info *Info, ki *DispatchInfo, hasDuplicate bool, noRemap bool) ([]rune, Result) {
	n := root.Node(curr)

	if len(keys) == 0 {
		waitPoint := n.Kind == trie.WaitPoint ||
			(n.Kind == trie.UserMapping && n.Conf.Followed != trie.FollowedByNone)

		if waitPoint {
			if !ki.AfterWait {
				if e.needsWaiting(root, curr) {
					hasDuplicate = false
				}
				withInput := e.modeFlags[mode].has(UsesInput)
				if withInput || hasDuplicate {
					return keys, WaitShort
				}
				return keys, Wait
			}
			// after_wait: fall through to dispatch below.
		} else if (n.Kind != trie.UserMapping && n.Conf.Handler == nil) || n.Conf.Followed != trie.FollowedByNone {
			return keys, Unknown
		}
	} else if n.Kind != trie.UserMapping {
		if n.Conf.Followed == trie.FollowedByMultikey {
			info.Multi = keys[0]
			return e.dispatchKey(mode, curr, root, keys[1:], info, ki)
		}
		ki.Selector = true
		return e.dispatchSelector(mode, keys, ki, *info, curr, root, noRemap)
	}

	return e.dispatchKey(mode, curr, root, keys, info, ki)
}

func (e *Engine) needsWaiting(root *trie.Trie, id trie.ID) bool {
	n := root.Node(id)
	if n.Wait {
		return true
	}
	for c := n.Child; c != trie.None; c = root.Node(c).Next {
		if e.needsWaiting(root, c) {
			return true
		}
	}
	return false
}

// dispatchKey runs the action associated with curr, if any.
func (e *Engine) dispatchKey(mode int, curr trie.ID, root *trie.Trie, keys []rune, info *Info, ki *DispatchInfo) ([]rune, Result) {
	n := root.Node(curr)

	if n.Kind != trie.UserMapping {
		result := e.executeMappingHandler(n.Conf, *info, ki)
		finish := result != Ok || len(keys) == 0 || n.Conf.Followed != trie.FollowedByMultikey
		if finish {
			return keys, result
		}
		return nil, e.executeGeneral(keys, ki.AfterWait, false, n.NoRemap)
	}

	if n.Silent && e.silenceUI != nil {
		e.silenceUI(true)
	}

	var result Result = Unknown
	if e.defaultHandlers[mode] != nil {
		result = Ok
	}

	root.Enter(curr)
	if root.Enters(curr) == 1 {
		result = e.executeAfterRemapping(mode, n.Conf.RHS, keys, *ki, *info, curr, root, n.NoRemap)
	} else if h := e.defaultHandlers[mode]; h != nil {
		result = h(n.Value)
		if result == Ok {
			result = e.executeGeneralInner(keys, ki.AfterWait, false, n.NoRemap)
		}
	}

	if n.Silent && e.silenceUI != nil {
		e.silenceUI(false)
	}
	root.Leave(curr)

	return keys, result
}

// executeAfterRemapping builds the synthetic "<reg><count><rhs><tail>"
// buffer and re-enters the engine with it.
func (e *Engine) executeAfterRemapping(mode int, rhs string, tail []rune, outerKI DispatchInfo, info Info, curr trie.ID, root *trie.Trie, noRemap bool) Result {
	rhsR := []rune(rhs)

	if len(rhsR) == 0 && len(tail) == 0 {
		return Ok
	}
	if len(rhsR) == 0 {
		ki := &DispatchInfo{Mapped: true, Recursive: e.entersCounter > 1}
		root.Enter(curr)
		_, result := e.dispatchKeysTop(mode, tail, ki, noRemap, NoCountGiven)
		root.Leave(curr)
		return result
	}

	var buf []rune
	if info.Register != NoRegGiven {
		buf = append(buf, '"', info.Register)
	}
	if info.Count != NoCountGiven {
		buf = append(buf, []rune(strconv.Itoa(info.Count))...)
	}
	buf = append(buf, rhsR...)
	buf = append(buf, tail...)

	ki := &outerKI
	if root.Node(curr).Conf.Followed != trie.FollowedBySelector {
		ki = &DispatchInfo{Mapped: true, Recursive: e.entersCounter > 1}
	}

	root.Enter(curr)
	_, result := e.dispatchKeysTop(mode, buf, ki, noRemap, NoCountGiven)
	root.Leave(curr)
	return result
}

// executeMappingHandler runs a chunk's handler, maintaining mapping-state
// bookkeeping visible to handlers via MappingState().
func (e *Engine) executeMappingHandler(conf trie.Config, info Info, ki *DispatchInfo) Result {
	if conf.Handler == nil {
		return Unknown
	}

	if ki.Mapped {
		e.insideMapping++
		if e.insideMapping == 1 && e.mappingEnterSeq != e.enterSeq {
			if e.mappingState == math.MaxInt32 {
				e.mappingState = 1
			} else {
				e.mappingState++
			}
			e.mappingEnterSeq = e.enterSeq
		}
	}

	result := Result(conf.Handler(info, ki))

	if ki.Mapped {
		e.insideMapping--
	}

	return result
}

func (e *Engine) incCounter(ki *DispatchInfo, by int) {
	if by <= 0 {
		return
	}
	if e.entersCounter <= 1 && !ki.Mapped {
		e.counter += uint64(by)
	}
}
