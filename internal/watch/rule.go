package watch

import (
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/alert"
	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps the configured text to a Severity. The empty string is
// treated as warning.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case "":
		return SeverityWarning, nil
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(s), nil
	default:
		return "", errors.New().WithData(ErrInvalidSeverity, s)
	}
}

// Rule binds a condition to the metric series it watches.
type Rule struct {
	Name      string
	Metric    string
	Condition *alert.Condition
	Severity  Severity
}

type State string

const (
	StateRaised  State = "raised"
	StateCleared State = "cleared"
)

// Transition records a rule changing between raised and cleared.
type Transition struct {
	ID        uuid.UUID
	Rule      string
	Metric    string
	Severity  Severity
	State     State
	Value     int64
	Time      time.Time
	Condition string
}
