package config

import "strings"

// normalize expands paths and fills empty values with defaults so the rest of
// the system never needs to re-check them.
func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.ReportDir,
		&c.Paths.LogDir,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	c.Driver.BaseURL = strings.TrimSpace(c.Driver.BaseURL)
	c.Driver.Environment = strings.TrimSpace(c.Driver.Environment)
	if c.Driver.RequestTimeout <= 0 {
		c.Driver.RequestTimeout = defaultDriverTimeout
	}

	c.Delivery.URL = strings.TrimSpace(c.Delivery.URL)
	c.Delivery.Mode = strings.ToLower(strings.TrimSpace(c.Delivery.Mode))
	if c.Delivery.Mode == "" {
		c.Delivery.Mode = defaultDeliveryMode
	}
	if c.Delivery.Timeout <= 0 {
		c.Delivery.Timeout = defaultDeliveryTimeout
	}
	if c.Delivery.RetryCount <= 0 {
		c.Delivery.RetryCount = defaultDeliveryRetryCount
	}
	if c.Delivery.RetryDelay < 0 {
		c.Delivery.RetryDelay = defaultDeliveryRetryDelay
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}

	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.TaskCooldown < 0 {
		c.Workflow.TaskCooldown = defaultTaskCooldown
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}

	c.Maintenance.Schedule = strings.TrimSpace(c.Maintenance.Schedule)
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = defaultMaintenanceSchedule
	}
	if c.Maintenance.RetentionDays <= 0 {
		c.Maintenance.RetentionDays = defaultRetentionDays
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	return nil
}
