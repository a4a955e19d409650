package sidechannel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/host/memhost"
	"github.com/modforge/modforge/internal/core/observability/log"
)

// extension-managed names in these tests are the ones prefixed "mod_".
func managed(name string) bool {
	return len(name) > 4 && name[:4] == "mod_"
}

func newChannel(t *testing.T) (*Channel, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, managed, log.Nop()), dir
}

func sideFilePath(dir, owner string) string {
	return filepath.Join(dir, owner+".yaml")
}

func TestOnSavedWritesExactlyMissingStacks(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container("locker-1")
	box.SetLive(
		host.Stack{Name: "titanium", Count: 5},
		host.Stack{Name: "mod_blade", Count: 1},
		host.Stack{Name: "mod_crystal", Count: 3},
	)
	// Native save captures only host-native stacks.
	box.NativeSave(func(name string) bool { return !managed(name) })

	require.NoError(t, c.OnSaved(box))

	data, err := os.ReadFile(sideFilePath(dir, "locker-1"))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "mod_blade")
	assert.Contains(t, content, "mod_crystal")
	assert.NotContains(t, content, "titanium")
}

func TestOnSavedDeletesRedundantFile(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container("locker-2")
	box.SetLive(host.Stack{Name: "mod_blade", Count: 1})
	box.NativeSave(func(string) bool { return false })
	require.NoError(t, c.OnSaved(box))
	require.FileExists(t, sideFilePath(dir, "locker-2"))

	// A later host version learns to serialize the stack natively; the
	// next save must remove the now-redundant side file.
	box.NativeSave(func(string) bool { return true })
	require.NoError(t, c.OnSaved(box))
	assert.NoFileExists(t, sideFilePath(dir, "locker-2"))
}

func TestOnSavedNoFileWhenNothingMissing(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container("locker-3")
	box.SetLive(host.Stack{Name: "titanium", Count: 2})
	box.NativeSave(func(string) bool { return true })

	require.NoError(t, c.OnSaved(box))
	assert.NoFileExists(t, sideFilePath(dir, "locker-3"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container("locker-4")
	box.SetLive(
		host.Stack{Name: "titanium", Count: 5},
		host.Stack{Name: "mod_blade", Count: 2},
	)
	box.NativeSave(func(name string) bool { return !managed(name) })
	require.NoError(t, c.OnSaved(box))

	// The host reloads from its native save; extension stacks are lost.
	box.NativeLoad()
	require.Len(t, box.Live(), 1)

	require.NoError(t, c.OnLoaded(box))

	live := box.Live()
	require.Len(t, live, 2)
	assert.Equal(t, host.Stack{Name: "titanium", Count: 5}, live[0])
	assert.Equal(t, host.Stack{Name: "mod_blade", Count: 2}, live[1])

	// Still not natively covered, so the side file stays.
	assert.FileExists(t, sideFilePath(dir, "locker-4"))
}

func TestOnLoadedDeletesFileWhenNativeCoversIt(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container("locker-5")
	box.SetLive(host.Stack{Name: "mod_blade", Count: 2})
	box.NativeSave(func(string) bool { return false })
	require.NoError(t, c.OnSaved(box))
	require.FileExists(t, sideFilePath(dir, "locker-5"))

	// The native snapshot now includes the stack; loading must merge
	// nothing new and clean up the side file.
	box.NativeSave(func(string) bool { return true })
	box.NativeLoad()
	require.NoError(t, c.OnLoaded(box))

	require.Len(t, box.Live(), 1)
	assert.Equal(t, 2, box.Live()[0].Count)
	assert.NoFileExists(t, sideFilePath(dir, "locker-5"))
}

func TestOnLoadedWithoutFileIsNoop(t *testing.T) {
	c, _ := newChannel(t)
	h := memhost.New()
	box := h.Container("locker-6")

	require.NoError(t, c.OnLoaded(box))
	assert.Empty(t, box.Live())
}

func TestBindDrivesChannelFromNotifications(t *testing.T) {
	c, dir := newChannel(t)
	d := hooks.NewDispatcher(log.Nop())
	subs := c.Bind(d)
	require.Len(t, subs, 2)

	h := memhost.New()
	box := h.Container("locker-7")
	box.SetLive(host.Stack{Name: "mod_blade", Count: 1})
	box.NativeSave(func(string) bool { return false })

	require.NoError(t, d.Emit(hooks.InventorySaved, box))
	require.FileExists(t, sideFilePath(dir, "locker-7"))

	box.NativeLoad()
	require.NoError(t, d.Emit(hooks.InventoryLoaded, box))
	require.Len(t, box.Live(), 1)
	assert.Equal(t, "mod_blade", box.Live()[0].Name)
}

func TestSanitizeOwnerID(t *testing.T) {
	c, dir := newChannel(t)
	h := memhost.New()

	box := h.Container(`save/slot:1?*`)
	box.SetLive(host.Stack{Name: "mod_blade", Count: 1})
	box.NativeSave(func(string) bool { return false })

	require.NoError(t, c.OnSaved(box))
	assert.FileExists(t, filepath.Join(dir, "save_slot_1__.yaml"))
}
