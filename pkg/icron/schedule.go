package icron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

type TriggerInfo struct {
	Next          time.Time
	Expression    string
	TimeUntilNext time.Duration
}

// Parse accepts standard five-field expressions and descriptors such as
// "@hourly" or "@every 30s".
func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	next := schedule.Next(refTime)
	return &TriggerInfo{
		Expression:    cronExpr,
		Next:          next,
		TimeUntilNext: next.Sub(refTime),
	}, nil
}

// Run invokes fn on every trigger of cronExpr until ctx is done, then waits
// for a running invocation to return.
func Run(ctx context.Context, cronExpr string, fn func()) error {
	if _, err := Parse(cronExpr); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(cronExpr, fn); err != nil {
		return fmt.Errorf("schedule %q: %w", cronExpr, err)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
