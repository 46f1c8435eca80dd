package scheduler

import (
	"github.com/google/wire"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

// ProviderSet is the Wire provider set for the scheduler.
var ProviderSet = wire.NewSet(
	ProvideScheduler,
)

// ProvideScheduler constructs the Scheduler from ScheduleConfig and the
// orchestrator it drives.
func ProvideScheduler(cfg config.ScheduleConfig, o *orchestrator.Orchestrator, logger observability.Logger) *Scheduler {
	return New(cfg, o, o, logger)
}
