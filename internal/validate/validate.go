package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

var controlRE = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// ActivityName reports whether name can address an activity. Names are
// server keys used verbatim, so only the empty selection is rejected.
func ActivityName(name string) bool {
	return name != ""
}

// Email reports whether email is usable as a participant key. The server
// owns real address validation.
func Email(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && !controlRE.MatchString(email)
}

// CronExpression validates a standard 5-field cron expression or descriptor
// such as "@hourly" or "@every 30s".
func CronExpression(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// ParseCron parses a standard cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("cron expression is required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}
