// internal/telegram/poller.go
//
// getUpdates long-polling loop used when no webhook is configured.

package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Poll long-polls getUpdates and hands every update to handle, in order,
// until ctx is cancelled. Transport errors back off and retry.
func (c *Client) Poll(ctx context.Context, timeout time.Duration, handle func(Update)) {
	var offset int64
	backoff := time.Second
	for ctx.Err() == nil {
		updates, err := c.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := backoff
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
			log.Warn().Err(err).Dur("retry_in", wait).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second
		for _, u := range updates {
			offset = u.UpdateID + 1
			handle(u)
		}
	}
}
