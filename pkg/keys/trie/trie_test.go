package trie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFindRoundTrip(t *testing.T) {
	tr := New()

	id, err := tr.Add([]rune("gg"), Builtin, Config{Description: "go to top"})
	require.NoError(t, err)

	found, ok := tr.Find([]rune("gg"))
	assert.True(t, ok)
	assert.Equal(t, id, found)

	_, ok = tr.Find([]rune("g"))
	assert.False(t, ok, "intermediate wait point must not be a match")

	_, ok = tr.Find([]rune("gx"))
	assert.False(t, ok)
}

func TestAddRejectsEmptySequence(t *testing.T) {
	tr := New()
	_, err := tr.Add(nil, Builtin, Config{})
	assert.Error(t, err)
}

func TestSiblingsStaySorted(t *testing.T) {
	tr := New()
	for _, s := range []string{"gg", "gd", "ga", "gm"} {
		_, err := tr.Add([]rune(s), Builtin, Config{})
		require.NoError(t, err)
	}

	root := tr.Node(tr.Root())
	g, ok := tr.findChild(tr.Root(), 'g')
	require.True(t, ok)
	_ = root

	var order []rune
	for c := tr.Node(g).Child; c != None; c = tr.Node(c).Next {
		order = append(order, tr.Node(c).Value)
	}
	assert.Equal(t, []rune("adgm"), order)
}

func TestChildrenCountTracksTerminals(t *testing.T) {
	tr := New()
	_, err := tr.Add([]rune("gg"), Builtin, Config{})
	require.NoError(t, err)
	_, err = tr.Add([]rune("gd"), Builtin, Config{})
	require.NoError(t, err)

	g, _ := tr.findChild(tr.Root(), 'g')
	assert.Equal(t, 2, tr.Node(g).ChildrenCount)
	assert.Equal(t, 2, tr.Node(tr.Root()).ChildrenCount)

	gg, _ := tr.Find([]rune("gg"))
	tr.Remove(gg)

	assert.Equal(t, 1, tr.Node(g).ChildrenCount)
	assert.Equal(t, 1, tr.Node(tr.Root()).ChildrenCount)

	_, ok := tr.Find([]rune("gg"))
	assert.False(t, ok)
	_, ok = tr.Find([]rune("gd"))
	assert.True(t, ok, "sibling chunk must survive removal of gg")
}

func TestRemoveOfLastChildPrunesWaitPointChain(t *testing.T) {
	tr := New()
	id, err := tr.Add([]rune("ZZ"), Builtin, Config{})
	require.NoError(t, err)

	tr.Remove(id)

	_, ok := tr.findChild(tr.Root(), 'Z')
	assert.False(t, ok, "an emptied wait-point ancestor chain must be pruned entirely")
	assert.Equal(t, 0, tr.Node(tr.Root()).ChildrenCount)
}

func TestRemoveStopsAtAncestorWithOtherChildren(t *testing.T) {
	tr := New()
	_, err := tr.Add([]rune("dd"), Builtin, Config{})
	require.NoError(t, err)
	_, err = tr.Add([]rune("dw"), Builtin, Config{})
	require.NoError(t, err)

	dd, _ := tr.Find([]rune("dd"))
	tr.Remove(dd)

	d, ok := tr.findChild(tr.Root(), 'd')
	require.True(t, ok, "d must still exist: dw is still registered under it")
	assert.Equal(t, 1, tr.Node(d).ChildrenCount)
}

func TestAddOverwritesExistingTerminalWithoutDoubleCountingAncestors(t *testing.T) {
	tr := New()
	_, err := tr.Add([]rune("gg"), Builtin, Config{Description: "first"})
	require.NoError(t, err)
	id2, err := tr.Add([]rune("gg"), Builtin, Config{Description: "second"})
	require.NoError(t, err)

	assert.Equal(t, "second", tr.Node(id2).Conf.Description)
	assert.Equal(t, 1, tr.Node(tr.Root()).ChildrenCount)
}

func TestEnterDefersRemovalUntilLeave(t *testing.T) {
	tr := New()
	id, err := tr.Add([]rune("m"), UserMapping, Config{RHS: "dd"})
	require.NoError(t, err)

	tr.Enter(id)
	tr.Remove(id)

	// The node record must still be safely readable: a handler running
	// inside dispatch may remove its own mapping.
	assert.Equal(t, WaitPoint, tr.Node(id).Kind, "terminal marker is cleared immediately")

	tr.Leave(id)

	_, ok := tr.Find([]rune("m"))
	assert.False(t, ok)
}

func TestReusedArenaSlotStartsClean(t *testing.T) {
	tr := New()
	id, err := tr.Add([]rune("q"), Builtin, Config{Description: "first"})
	require.NoError(t, err)
	tr.Remove(id)

	id2, err := tr.Add([]rune("z"), Builtin, Config{Description: "second"})
	require.NoError(t, err)

	assert.Equal(t, "second", tr.Node(id2).Conf.Description)
	assert.Equal(t, rune('z'), tr.Node(id2).Value)
}

func TestTraverseAllVisitsEveryTerminalWithFullLHS(t *testing.T) {
	tr := New()
	for _, s := range []string{"gg", "dd", "dw"} {
		_, err := tr.Add([]rune(s), Builtin, Config{})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	tr.TraverseAll(func(id ID, lhs []rune) {
		if tr.Node(id).ChildrenCount == 0 && tr.Node(id).Kind != WaitPoint {
			seen[string(lhs)] = true
		}
	})

	assert.Equal(t, map[string]bool{"gg": true, "dd": true, "dw": true}, seen)
}

func TestTraverseSelfInclusiveFromNonRoot(t *testing.T) {
	tr := New()
	_, err := tr.Add([]rune("dw"), Builtin, Config{})
	require.NoError(t, err)

	d, ok := tr.findChild(tr.Root(), 'd')
	require.True(t, ok)

	var got []string
	tr.Traverse(d, nil, func(id ID, lhs []rune) {
		got = append(got, string(lhs))
	})

	assert.Equal(t, []string{"d", "dw"}, got)
}
