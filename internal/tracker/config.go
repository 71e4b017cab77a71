package tracker

import "time"

const (
	// DefaultReclaimIdleAfter is spec §3's default reclaim_idle_after.
	DefaultReclaimIdleAfter = 10 * time.Minute
	// DefaultCleanupInterval is spec §3's default cleanup_interval.
	DefaultCleanupInterval = 60 * time.Second
	// DefaultCleanupTaskName is spec §6's default cleanup_task_name.
	DefaultCleanupTaskName = "CleanupTrackedErrors"
)

// Config is spec §3's Configuration: the tunables the tracker is
// constructed with. MaxDeliveryAttempts is required and must be >= 1;
// the rest default per spec §3/§6 when left zero.
type Config struct {
	MaxDeliveryAttempts int
	ReclaimIdleAfter    time.Duration
	CleanupInterval     time.Duration
	CleanupTaskName     string
}

// withDefaults returns a copy of cfg with zero-valued optional fields
// replaced by their spec-mandated defaults.
func (cfg Config) withDefaults() Config {
	if cfg.ReclaimIdleAfter <= 0 {
		cfg.ReclaimIdleAfter = DefaultReclaimIdleAfter
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.CleanupTaskName == "" {
		cfg.CleanupTaskName = DefaultCleanupTaskName
	}
	return cfg
}
