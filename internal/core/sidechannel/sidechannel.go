// Package sidechannel persists extension-managed inventory entries the
// host's native save format cannot serialize. Each owner gets one YAML
// side file; the file holds exactly the stacks missing from the native
// snapshot and is deleted as soon as it would be redundant.
package sidechannel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host"
	"github.com/modforge/modforge/internal/core/observability/log"
)

// Managed reports whether a stack name belongs to an extension-registered
// entity. Only managed stacks go into side files.
type Managed func(name string) bool

// Channel synchronizes side files with the host's save/load lifecycle.
type Channel struct {
	dir     string
	managed Managed
	log     log.Log
}

func New(dir string, managed Managed, lg log.Log) *Channel {
	return &Channel{
		dir:     dir,
		managed: managed,
		log:     lg.Named("sidechannel"),
	}
}

type sideFile struct {
	Owner  string       `yaml:"owner"`
	Stacks []host.Stack `yaml:"stacks"`
}

// OnSaved runs after the host's native save pass for one owner. It writes
// the managed stacks missing from the native snapshot; if none are
// missing the side file would be redundant and is deleted instead.
func (c *Channel) OnSaved(owner host.Container) error {
	missing := c.missing(owner)
	path := c.path(owner.Owner())

	if len(missing) == 0 {
		return c.delete(path)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("sidechannel: create dir: %w", err)
	}
	data, err := yaml.Marshal(sideFile{Owner: owner.Owner(), Stacks: missing})
	if err != nil {
		return fmt.Errorf("sidechannel: encode %s: %w", owner.Owner(), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sidechannel: write %s: %w", path, err)
	}
	c.log.Debug("wrote side file",
		log.String("owner", owner.Owner()),
		log.Int("stacks", len(missing)),
	)
	return nil
}

// OnLoaded runs after the host's native load pass for one owner. It merges
// side-file entries back into live state, then deletes the file if the
// native snapshot already covers everything it would restore.
func (c *Channel) OnLoaded(owner host.Container) error {
	path := c.path(owner.Owner())
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sidechannel: read %s: %w", path, err)
	}

	var f sideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("sidechannel: decode %s: %w", path, err)
	}

	native := stackSet(owner.Native())
	live := stackSet(owner.Live())
	redundant := true
	for _, s := range f.Stacks {
		if !live[s.Name] {
			owner.Merge(s)
		}
		if !native[s.Name] {
			redundant = false
		}
	}
	c.log.Debug("merged side file",
		log.String("owner", owner.Owner()),
		log.Int("stacks", len(f.Stacks)),
	)

	if redundant {
		return c.delete(path)
	}
	return nil
}

// missing returns the owner's live managed stacks absent from the native
// snapshot, in live order.
func (c *Channel) missing(owner host.Container) []host.Stack {
	native := stackSet(owner.Native())
	var out []host.Stack
	for _, s := range owner.Live() {
		if c.managed(s.Name) && !native[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func (c *Channel) delete(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sidechannel: delete %s: %w", path, err)
	}
	if err == nil {
		c.log.Debug("deleted redundant side file", log.String("path", path))
	}
	return nil
}

func (c *Channel) path(ownerID string) string {
	return filepath.Join(c.dir, sanitize(ownerID)+".yaml")
}

// Bind subscribes the channel to the host's save/load notifications at
// late priority. Payloads must be host.Container values.
func (c *Channel) Bind(d *hooks.Dispatcher) []*hooks.Subscription {
	onSaved := d.Subscribe(hooks.InventorySaved, hooks.PriorityLate, func(e hooks.Event) error {
		owner, ok := e.Data.(host.Container)
		if !ok {
			return fmt.Errorf("sidechannel: inventory saved with unexpected payload %T", e.Data)
		}
		return c.OnSaved(owner)
	})
	onLoaded := d.Subscribe(hooks.InventoryLoaded, hooks.PriorityLate, func(e hooks.Event) error {
		owner, ok := e.Data.(host.Container)
		if !ok {
			return fmt.Errorf("sidechannel: inventory loaded with unexpected payload %T", e.Data)
		}
		return c.OnLoaded(owner)
	})
	return []*hooks.Subscription{onSaved, onLoaded}
}

func stackSet(stacks []host.Stack) map[string]bool {
	set := make(map[string]bool, len(stacks))
	for _, s := range stacks {
		set[s.Name] = true
	}
	return set
}

const forbidden = `\/:*?"<>|`

// sanitize makes an owner id safe to use as a file name.
func sanitize(ownerID string) string {
	var b strings.Builder
	b.Grow(len(ownerID))
	for _, r := range ownerID {
		if r < 0x20 || strings.ContainsRune(forbidden, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
