package providers

import (
	"context"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/mediaqc-server/internal/config"
	"github.com/listenupapp/mediaqc-server/internal/logger"
	"github.com/listenupapp/mediaqc-server/internal/media"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/service"
	"github.com/listenupapp/mediaqc-server/internal/watcher"
)

// ProvideMediaLibrary provides the media library for MEDIA_ROOT. The
// library exists even without a root; rescans then report UNAVAILABLE.
func ProvideMediaLibrary(i do.Injector) (*media.Library, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	groupingService := do.MustInvoke[*service.GroupingService](i)

	return media.NewLibrary(log.Component("media"), cfg.Media.Root, media.NewRegistry(), groupingService), nil
}

// FileWatcherHandle wraps the file watcher with shutdown capability.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideFileWatcher provides the media root watcher. It is inert when no
// root is configured or watching is disabled.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	library := do.MustInvoke[*media.Library](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	if cfg.Media.Root == "" || !cfg.Media.Watch {
		log.Info("File watcher disabled", "media_root", cfg.Media.Root, "watch", cfg.Media.Watch)
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log.Component("watcher"), cfg.Media.Root, watcher.Options{
		IgnoreHidden: true,
		SettleDelay:  cfg.Media.SettleDelay,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := w.Run(ctx, func(batch watcher.Batch) {
			log.Debug("media root changed", "events", len(batch.Events))
			_, err := library.Rescan(ctx)
			m.ObserveRescan(err)
			if err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("rescan after change failed")
			}
		})
		if err != nil {
			log.WithError(err).Error("File watcher error")
		}
	}()

	log.Info("File watcher started", "root", cfg.Media.Root, "settle_delay", cfg.Media.SettleDelay)

	return &FileWatcherHandle{Watcher: w, cancel: cancel, done: done}, nil
}

// RunStartupTasks imports the configured QC sheet and variable preset and
// performs the initial scan of the media root. Failures are logged; the
// server keeps running with whatever state it has.
func RunStartupTasks(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	qcService := do.MustInvoke[*service.QCService](i)
	library := do.MustInvoke[*media.Library](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if cfg.QC.VariablesPath != "" {
		if _, err := qcService.LoadPreset(ctx, cfg.QC.VariablesPath); err != nil {
			log.WithError(err).Warn("Failed to load QC variable preset", "path", cfg.QC.VariablesPath)
		}
	}

	if cfg.QC.CSVPath != "" {
		data, err := os.ReadFile(cfg.QC.CSVPath)
		if err != nil {
			log.WithError(err).Warn("Failed to read QC sheet", "path", cfg.QC.CSVPath)
		} else if res, err := qcService.ImportCSV(ctx, string(data)); err != nil {
			log.WithError(err).Warn("Failed to import QC sheet", "path", cfg.QC.CSVPath)
		} else {
			log.Info("QC sheet imported", "path", cfg.QC.CSVPath, "rows", res.Rows, "headers", len(res.Headers))
		}
	}

	if cfg.Media.Root != "" {
		res, err := library.Rescan(ctx)
		m.ObserveRescan(err)
		if err != nil {
			log.WithError(err).Warn("Initial media scan failed", "root", cfg.Media.Root)
			return
		}
		log.Info("Initial media scan complete",
			"root", res.Root,
			"admitted", res.Stats.Admitted,
			"groups", res.Stats.Groups,
			"duration", res.Duration,
		)
	}
}
