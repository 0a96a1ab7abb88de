package service

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/quote-translator/pkg/icron"
	"github.com/MimeLyc/quote-translator/pkg/log"
)

// Watch runs fn once and then on every tick of the cron expression until
// ctx is done. A tick that fires while fn is still running is dropped.
func Watch(ctx context.Context, expr string, fn func(ctx context.Context) error) error {
	var group singleflight.Group
	run := func() {
		_, _, _ = group.Do("watch", func() (any, error) {
			if err := fn(ctx); err != nil {
				log.Error("Watch run failed: %v", err)
			}
			return nil, nil
		})
	}

	if _, err := icron.Parse(expr); err != nil {
		return WrapError(err, ErrValidation, "invalid schedule").WithContext("expr", expr)
	}
	run()
	return icron.Run(ctx, expr, run)
}
