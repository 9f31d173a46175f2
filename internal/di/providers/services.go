package providers

import (
	"github.com/samber/do/v2"
	"golang.org/x/text/language"

	"github.com/listenupapp/mediaqc-server/internal/config"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/logger"
	"github.com/listenupapp/mediaqc-server/internal/metrics"
	"github.com/listenupapp/mediaqc-server/internal/qc"
	"github.com/listenupapp/mediaqc-server/internal/service"
	"github.com/listenupapp/mediaqc-server/internal/validation"
)

// ProvideGroupingEngine provides the file grouping engine.
func ProvideGroupingEngine(i do.Injector) (*grouping.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	// Config.Validate has already rejected malformed tags.
	locale, err := language.Parse(cfg.Media.Locale)
	if err != nil {
		return nil, err
	}

	return grouping.NewEngine(log.Component("grouping"), grouping.Options{Locale: locale}), nil
}

// ProvideQCLedger provides the QC ledger, reporting recomputes to the
// event stream and metrics.
func ProvideQCLedger(i do.Injector) (*qc.Ledger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return qc.NewLedger(log.Component("qc"), qc.Options{
		ProgressEvery: cfg.QC.ProgressEvery,
		Observer:      service.NewRecomputeNotifier(sseHandle.Manager, m),
	}), nil
}

// ProvideGroupingService provides the grouping service.
func ProvideGroupingService(i do.Injector) (*service.GroupingService, error) {
	engine := do.MustInvoke[*grouping.Engine](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewGroupingService(engine, sseHandle.Manager, m, v, log.Component("grouping")), nil
}

// ProvideQCService provides the QC service.
func ProvideQCService(i do.Injector) (*service.QCService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	ledger := do.MustInvoke[*qc.Ledger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewQCService(ledger, sseHandle.Manager, m, v, log.Component("qc"), cfg.QC.WaitTimeout), nil
}
