package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaizek/vifm-core/pkg/keys"
	"github.com/xaizek/vifm-core/pkg/vconfig"
)

func newTestConfig(t *testing.T) *vconfig.AppConfig {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	config, err := vconfig.NewAppConfig("vifm-core-test", "test", "deadbeef", "2026-07-31", "test", false)
	require.NoError(t, err)
	return config
}

func TestNewAppRegistersBuiltinMotions(t *testing.T) {
	config := newTestConfig(t)

	a, err := NewApp(config)
	require.NoError(t, err)

	assert.Equal(t, keys.Ok, a.Engine.Execute("gg"))
	assert.Equal(t, 0, a.cursorLine)

	assert.Equal(t, keys.Ok, a.Engine.Execute("j"))
	assert.Equal(t, 1, a.cursorLine)

	assert.Equal(t, keys.Ok, a.Engine.Execute("3j"))
	assert.Equal(t, 4, a.cursorLine)

	assert.Equal(t, keys.Ok, a.Engine.Execute("k"))
	assert.Equal(t, 3, a.cursorLine)
}

func TestNewAppSelectorDispatch(t *testing.T) {
	config := newTestConfig(t)

	a, err := NewApp(config)
	require.NoError(t, err)

	// "d" is registered FollowedBySelector; "dgg" resolves the "gg" selector
	// from the selector tree, not the builtin tree's own "gg" leaf.
	assert.Equal(t, keys.Ok, a.Engine.Execute("dgg"))
}

func TestNewAppLoadsUserMappingsFromConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	content := "modes:\n  normal:\n    mappings:\n      Q: ZQ\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))

	config, err := vconfig.NewAppConfig("vifm-core-test", "test", "deadbeef", "2026-07-31", "test", false)
	require.NoError(t, err)

	a, err := NewApp(config)
	require.NoError(t, err)

	assert.True(t, a.Engine.Exists(Normal, "Q"))
}

func TestNewAppQuitBindingsRequireQuitChannel(t *testing.T) {
	config := newTestConfig(t)

	a, err := NewApp(config)
	require.NoError(t, err)

	// Without Run having set up a.quit, the quit handlers must not panic.
	assert.NotPanics(t, func() {
		assert.Equal(t, keys.Ok, a.Engine.Execute("ZQ"))
	})

	a.quit = make(chan struct{})
	assert.Equal(t, keys.Ok, a.Engine.Execute("ZZ"))
	select {
	case <-a.quit:
	default:
		t.Fatal("ZZ must close the quit channel")
	}

	// Requesting quit twice must not panic on an already-closed channel.
	assert.NotPanics(t, func() {
		a.requestQuit()
	})
}

func TestAppKnownError(t *testing.T) {
	config := newTestConfig(t)
	a, err := NewApp(config)
	require.NoError(t, err)

	msg, known := a.KnownError(errTerminalSpace{})
	assert.True(t, known)
	assert.NotEmpty(t, msg)

	_, known = a.KnownError(errTerminalSpace{ok: true})
	assert.False(t, known)
}

type errTerminalSpace struct{ ok bool }

func (e errTerminalSpace) Error() string {
	if e.ok {
		return "some unrelated failure"
	}
	return "there is no available terminal space"
}

func TestResolveModeFlagsMatchesDefaultConfig(t *testing.T) {
	config := newTestConfig(t)
	a, err := NewApp(config)
	require.NoError(t, err)

	flags := a.resolveModeFlags()
	require.Len(t, flags, numModes)
	assert.NotZero(t, flags[Normal]&keys.UsesCount)
	assert.NotZero(t, flags[Normal]&keys.UsesRegs)
	assert.NotZero(t, flags[Cmdline]&keys.UsesInput)
}
