// Package container is the composition root: it wires every concrete
// adapter (cache store, engine, fetcher, policy parser, secrets store) into
// a LifecycleManager and StartupLoader, the same shape as the teacher's own
// internal/infrastructure/container/container.go ("make the full dependency
// graph visible at the composition root").
package container

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loomhost/loom/internal/application/ports"
	"github.com/loomhost/loom/internal/application/services"
	"github.com/loomhost/loom/internal/config"
	"github.com/loomhost/loom/internal/infrastructure/engine"
	"github.com/loomhost/loom/internal/infrastructure/fetch"
	"github.com/loomhost/loom/internal/infrastructure/policy"
	"github.com/loomhost/loom/internal/infrastructure/secrets"
	"github.com/loomhost/loom/internal/infrastructure/store"
)

// Container holds every composed dependency the CLI commands need.
type Container struct {
	cfg     config.Config
	logger  *slog.Logger
	manager *services.LifecycleManager
	loader  *services.StartupLoader
	engine  *engine.Engine
}

// New constructs a Container from cfg: the Cache Store, wazero engine
// adapter, resource fetcher, policy parser, and secrets store, composed
// into a LifecycleManager and StartupLoader.
func New(cfg config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cacheStore, err := store.New(cfg.PluginDir, cfg.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("container: init cache store: %w", err)
	}

	compCache := filepath.Join(cfg.PluginDir, ".compile-cache")
	compEngine := engine.New(
		engine.WithCompilationCacheDir(compCache),
		engine.WithDefaultMemoryLimitMB(cfg.MemoryLimitMB),
	)

	stagingDir := filepath.Join(cfg.PluginDir, "downloads")
	fetcher, err := fetch.New(stagingDir, cfg.HTTPTimeout, cfg.OCITimeout)
	if err != nil {
		return nil, fmt.Errorf("container: init fetcher: %w", err)
	}

	policyParser := policy.NewParser()
	secretsStore := secrets.NewFileStore(cfg.SecretsDir)

	capBuilder := services.NewCapabilityBuilder(cfg.PluginDir, frozenEnv())

	notifier := ports.NotifierFunc(func() {
		logger.Info("tool list changed")
	})

	manager := services.NewLifecycleManager(
		cacheStore,
		compEngine,
		fetcher,
		policyParser,
		secretsStore,
		capBuilder,
		notifier,
	)

	loader := services.NewStartupLoader(manager, 0)

	return &Container{cfg: cfg, logger: logger, manager: manager, loader: loader, engine: compEngine}, nil
}

// LifecycleManager returns the composed LifecycleManager every CLI command
// operates through.
func (c *Container) LifecycleManager() *services.LifecycleManager { return c.manager }

// StartupLoader returns the composed StartupLoader `loom serve` runs at
// process start.
func (c *Container) StartupLoader() *services.StartupLoader { return c.loader }

// Logger returns the configured logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// Config returns the resolved configuration the container was built from.
func (c *Container) Config() config.Config { return c.cfg }

// Close releases the engine's compilation cache. Call during graceful
// shutdown of `loom serve`.
func (c *Container) Close() error {
	return c.engine.Close(context.Background())
}

// frozenEnv snapshots the process environment once at startup, matching
// a "frozen environment snapshot" contract: a component's
// environment.allow[] rules are checked against this fixed map, not against
// os.Getenv at call time.
func frozenEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := splitEnv(kv); ok {
			env[k] = v
		}
	}
	return env
}

func splitEnv(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
