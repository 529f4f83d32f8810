package catalog

import (
	"context"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"gqlmcpd/internal/domain"
)

const reloadDebounce = 200 * time.Millisecond

// EndpointApplier receives endpoint changes produced by config reloads.
type EndpointApplier interface {
	Register(ctx context.Context, info domain.EndpointInfo) (int, error)
	Unregister(name string) error
}

// Watcher watches the config file and re-registers endpoints whose
// definition changed. Runtime settings are not hot-swapped; only the
// endpoint list is.
type Watcher struct {
	logger     *zap.Logger
	loader     *Loader
	configPath string
	applier    EndpointApplier
	current    []domain.EndpointInfo
}

func NewWatcher(logger *zap.Logger, loader *Loader, configPath string, applier EndpointApplier, initial []domain.EndpointInfo) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		logger:     logger.Named("catalog_watcher"),
		loader:     loader,
		configPath: configPath,
		applier:    applier,
		current:    initial,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher failed", zap.Error(err))
		return
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files on save, which drops a
	// watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(w.configPath)); err != nil {
		w.logger.Warn("config watcher add failed", zap.String("path", w.configPath), zap.Error(err))
		return
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-watcher.Errors:
			if err != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
				continue
			}
			timer.Reset(reloadDebounce)
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	catalog, err := w.loader.Load(ctx, w.configPath)
	if err != nil {
		w.logger.Warn("config reload failed", zap.Error(err))
		return
	}

	previous := make(map[string]domain.EndpointInfo, len(w.current))
	for _, info := range w.current {
		previous[info.Name] = info
	}

	for _, info := range catalog.Endpoints {
		old, existed := previous[info.Name]
		delete(previous, info.Name)
		if existed && reflect.DeepEqual(old, info) {
			continue
		}
		if _, err := w.applier.Register(ctx, info); err != nil {
			w.logger.Warn("endpoint re-registration failed",
				zap.String("endpoint", info.Name),
				zap.Error(err))
		}
	}
	for name := range previous {
		if err := w.applier.Unregister(name); err != nil {
			w.logger.Warn("endpoint unregistration failed",
				zap.String("endpoint", name),
				zap.Error(err))
		}
	}

	w.current = catalog.Endpoints
	w.logger.Info("config reloaded", zap.Int("endpoints", len(catalog.Endpoints)))
}
