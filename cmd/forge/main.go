// Command forge runs a simulated host session against a definitions file:
// it registers the definitions, drives two full rebuild cycles and prints
// the reconciliation outcome of each, which makes idempotence visible.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/modforge/modforge/internal/core/content"
	"github.com/modforge/modforge/internal/core/engine"
	"github.com/modforge/modforge/internal/core/hooks"
	"github.com/modforge/modforge/internal/core/host/memhost"
	"github.com/modforge/modforge/internal/core/inject"
	"github.com/modforge/modforge/internal/core/observability/log"
)

func main() {
	defs := flag.String("defs", "definitions.yaml", "path to the YAML definitions file")
	dir := flag.String("side-dir", "sidechannel", "directory for per-owner side files")
	cycles := flag.Int("cycles", 2, "number of rebuild cycles to simulate")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := log.NewDevelopment()
	if !*verbose {
		logger.SetLevel(log.LevelInfo)
	}

	if err := run(logger, *defs, *dir, *cycles); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		os.Exit(1)
	}
}

func run(logger log.Log, defsPath, sideDir string, cycles int) error {
	f, err := os.Open(defsPath)
	if err != nil {
		return err
	}
	defer f.Close()

	file, err := content.LoadYAML(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", defsPath, err)
	}
	bundle, err := file.Build()
	if err != nil {
		return fmt.Errorf("build %s: %w", defsPath, err)
	}

	h := memhost.New()
	h.SeedNative("titanium", "copper", "quartz")
	dispatcher := hooks.NewDispatcher(logger)
	eng := engine.New(h, dispatcher, logger, engine.Config{SideChannelDir: sideDir})
	defer eng.Close()

	dispatcher.Subscribe(hooks.RegistrationComplete, hooks.PriorityDefault, func(e hooks.Event) error {
		if report, ok := e.Data.(*inject.Report); ok {
			for _, failure := range report.Failures() {
				logger.Warn("definition dropped",
					log.String("kind", failure.Kind),
					log.String("name", failure.Name),
					log.Error(failure.Err),
				)
			}
		}
		return nil
	})

	accepted := eng.Register(bundle)
	logger.Info("definitions registered", log.Int("accepted", accepted))

	for i := 1; i <= cycles; i++ {
		if i > 1 {
			h.Rebuild()
		}
		if err := dispatcher.Emit(hooks.PreDatabaseRebuild, nil); err != nil {
			logger.Warn("pre-rebuild listeners reported errors", log.Error(err))
		}
		if err := dispatcher.Emit(hooks.PostDatabaseRebuild, nil); err != nil {
			logger.Warn("post-rebuild listeners reported errors", log.Error(err))
		}
		logger.Info("cycle finished",
			log.Int("cycle", i),
			log.Int("items", h.Items().Len()),
			log.Int("recipes", h.Recipes().Len()),
			log.Int("effects", h.Effects().Len()),
			log.Int("spawns", h.Spawns().Len()),
		)
	}
	return nil
}
