package services

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/loomhost/loom/internal/domain/component"
)

// StartupLoader scans the plugin directory at process start and gets the
// host serving tools as fast as possible: phase 1 trusts metadata sidecars
// whose validation stamp still matches, phase 2 compiles and pre-links every
// module, trusted or not, in the background with bounded concurrency.
type StartupLoader struct {
	manager     *LifecycleManager
	maxParallel int64
}

// NewStartupLoader builds a loader bounded at min(runtime.NumCPU(), 4)
// concurrent compiles, unless overridden.
func NewStartupLoader(manager *LifecycleManager, maxParallel int) *StartupLoader {
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
		if maxParallel > 4 {
			maxParallel = 4
		}
	}
	return &StartupLoader{manager: manager, maxParallel: int64(maxParallel)}
}

// Run executes phase 1 synchronously then launches phase 2 in the
// background, returning once phase 1 is complete. Callers that want to
// block until every component is fully compiled should call RunAndWait
// with blockOnPhase2 set to true instead.
func (l *StartupLoader) Run(ctx context.Context) error {
	_, err := l.RunAndWait(ctx, false)
	return err
}

// RunAndWait runs phase 1, then phase 2; if blockOnPhase2 is true it waits
// for every background compile to finish before returning. It always
// returns the phase-1 hydrated id set.
func (l *StartupLoader) RunAndWait(ctx context.Context, blockOnPhase2 bool) ([]component.ID, error) {
	ids, err := l.manager.store.ListModuleIDs()
	if err != nil {
		return nil, component.New("startup", component.KindIO, err)
	}

	hydrated := make(map[component.ID]bool, len(ids))
	for _, id := range ids {
		if l.hydrateFromMetadata(id) {
			hydrated[id] = true
		}
	}

	sem := semaphore.NewWeighted(l.maxParallel)
	group, gctx := errgroup.WithContext(ctx)

	for _, id := range ids {
		id := id
		skipRegister := hydrated[id]
		group.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			l.compileAndInsert(gctx, id, skipRegister)
			return nil
		})
	}

	if blockOnPhase2 {
		if err := group.Wait(); err != nil {
			return nil, err
		}
		l.manager.notifier.ToolListChanged()
	} else {
		go func() {
			if err := group.Wait(); err != nil {
				slog.Warn("startup background compile group finished with error", "err", err)
			}
			l.manager.notifier.ToolListChanged()
		}()
	}

	hydratedIDs := make([]component.ID, 0, len(hydrated))
	for id := range hydrated {
		hydratedIDs = append(hydratedIDs, id)
	}
	return hydratedIDs, nil
}

// hydrateFromMetadata registers id's tools from its sidecar without
// compiling, iff the sidecar's validation stamp still matches the module on
// disk.
func (l *StartupLoader) hydrateFromMetadata(id component.ID) bool {
	meta, err := l.manager.store.ReadMetadata(id)
	if err != nil || meta == nil {
		return false
	}
	current, err := l.manager.store.ValidationStampOf(id)
	if err != nil {
		return false
	}
	if !meta.ValidationStamp.Matches(current) {
		return false
	}
	l.manager.tools.Unregister(id)
	l.manager.tools.Register(id, meta.ToolSchemas)
	l.manager.installValidators(meta.ToolSchemas)
	return true
}

// compileAndInsert compiles, pre-links, and inserts id into the component
// map, warming the precompiled marker on a cache miss. It logs and skips id
// on failure rather than aborting the whole scan.
func (l *StartupLoader) compileAndInsert(ctx context.Context, id component.ID, skipRegister bool) {
	m := l.manager

	wasmBytes, err := m.store.ReadModule(id)
	if err != nil {
		slog.Warn("startup: failed to read module", "component", id, "err", err)
		return
	}

	compiled, err := m.engine.Compile(ctx, id, wasmBytes)
	if err != nil {
		slog.Warn("startup: failed to compile module", "component", id, "err", err)
		return
	}

	linked, err := m.engine.PreLink(ctx, id, compiled)
	if err != nil {
		slog.Warn("startup: failed to pre-link module", "component", id, "err", err)
		return
	}

	if !m.store.HasPrecompiledMarker(id) {
		if _, ok := compiled.PrecompiledBytes(); ok {
			if err := m.store.WritePrecompiledMarker(id); err != nil {
				slog.Warn("startup: failed to write precompiled marker", "component", id, "err", err)
			}
		}
	}

	if !skipRegister {
		entries := toolEntriesFor(id, linked.Functions())
		m.tools.Unregister(id)
		m.tools.Register(id, entries)
		m.installValidators(entries)
	}

	m.attachColocatedPolicy(ctx, id)

	m.mu.Lock()
	m.components[id] = linked
	m.mu.Unlock()
}
