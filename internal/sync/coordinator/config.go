package coordinator

import (
	"time"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
)

const (
	defaultSchedule = "0 3 * * *"
	defaultTimeout  = 15 * time.Minute
)

// settings are the scheduling values read from the sync configuration
type settings struct {
	schedule     string
	runOnStartup bool
	timeout      time.Duration
}

func settingsFrom(cfg *config.SyncConfig) settings {
	if cfg == nil {
		return settings{schedule: defaultSchedule, runOnStartup: true, timeout: defaultTimeout}
	}
	return settings{
		schedule:     cfg.GetSchedule(),
		runOnStartup: cfg.GetRunOnStartup(),
		timeout:      cfg.GetTimeout(),
	}
}
