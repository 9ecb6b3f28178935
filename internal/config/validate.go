package config

import (
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"codeberg.org/mutker/nvidiawatch/internal/scheduler"
)

// Validate checks the loaded configuration for consistency.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval < 1 {
		return errFactory.WithData(errors.ErrInvalidInterval, FieldError{
			Field: "interval", Value: c.Interval, Reason: "must be at least 1 second",
		})
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, FieldError{
			Field: "log_level", Value: c.LogLevel, Reason: "must be one of debug, info, warning, error",
		})
	}

	if c.Device < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "device", Value: c.Device, Reason: "must not be negative",
		})
	}

	if c.Capacity < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "capacity", Value: c.Capacity, Reason: "must be at least 1",
		})
	}

	if err := c.validateRules(); err != nil {
		return err
	}

	if c.History.Enabled {
		if err := c.History.validate(); err != nil {
			return err
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Listen == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "telemetry.listen", Value: "", Reason: "required when telemetry is enabled",
		})
	}

	return nil
}

func (c *Config) validateRules() error {
	errFactory := errors.New()
	seen := make(map[string]struct{}, len(c.Rules))

	for _, r := range c.Rules {
		switch {
		case r.Name == "":
			return errFactory.WithData(errors.ErrInvalidRule, FieldError{
				Field: "rule.name", Value: r.Name, Reason: "required",
			})
		case r.Metric == "":
			return errFactory.WithData(errors.ErrInvalidRule, FieldError{
				Field: "rule.metric", Value: r.Name, Reason: "required",
			})
		case r.Condition == "":
			return errFactory.WithData(errors.ErrInvalidRule, FieldError{
				Field: "rule.condition", Value: r.Name, Reason: "required",
			})
		}

		if _, dup := seen[r.Name]; dup {
			return errFactory.WithData(errors.ErrInvalidRule, FieldError{
				Field: "rule.name", Value: r.Name, Reason: "duplicate rule name",
			})
		}
		seen[r.Name] = struct{}{}

		if _, err := r.Rule(); err != nil {
			return errFactory.Wrap(errors.ErrInvalidRule, err).WithData(FieldError{
				Field: "rule", Value: r.Name, Reason: err.Error(),
			})
		}
	}

	return nil
}

func (h HistoryConfig) validate() error {
	errFactory := errors.New()

	switch {
	case h.DBPath == "":
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "history.db_path", Value: h.DBPath, Reason: "required when history is enabled",
		})
	case h.BatchSize < 1:
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "history.batch_size", Value: h.BatchSize, Reason: "must be at least 1",
		})
	case h.BatchTimeout <= 0:
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "history.batch_timeout", Value: h.BatchTimeout, Reason: "must be positive",
		})
	case h.Retention < 0:
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field: "history.retention", Value: h.Retention, Reason: "must not be negative",
		})
	}

	if h.Retention > 0 {
		if _, err := scheduler.ParseSpec(h.PruneSchedule); err != nil {
			return err
		}
	}

	return nil
}
