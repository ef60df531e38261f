package config

const (
	defaultDataDir       = "~/.local/share/docflow/data"
	defaultReportDir     = "~/.local/share/docflow/reports"
	defaultLogDir        = "~/.local/share/docflow/logs"
	defaultAPIBind       = "127.0.0.1:7910"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultDriverTimeout = 30

	defaultDeliveryMode       = "json"
	defaultDeliveryTimeout    = 30
	defaultDeliveryRetryCount = 3
	defaultDeliveryRetryDelay = 5

	defaultQueuePollInterval  = 10
	defaultTaskCooldown       = 5
	defaultErrorRetryInterval = 10

	defaultMaintenanceSchedule = "0 3 * * *"
	defaultRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ReportDir: defaultReportDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Driver: Driver{
			RequestTimeout: defaultDriverTimeout,
		},
		Delivery: Delivery{
			Enabled:       true,
			Mode:          defaultDeliveryMode,
			IncludeReport: true,
			Timeout:       defaultDeliveryTimeout,
			RetryCount:    defaultDeliveryRetryCount,
			RetryDelay:    defaultDeliveryRetryDelay,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Tasks:          true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			TaskCooldown:       defaultTaskCooldown,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Maintenance: Maintenance{
			Enabled:       true,
			Schedule:      defaultMaintenanceSchedule,
			RetentionDays: defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
