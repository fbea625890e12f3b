package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// Subscribe opens a websocket to the realtime feed for one table and invokes
// h for every decoded event. The read loop reconnects with a capped backoff
// until the returned cancel func is called or ctx is done.
func (c *Client) Subscribe(ctx context.Context, table string, h EventHandler) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/realtime/v1"
	query := url.Values{"table": {table}}
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}
	wsURL += "?" + query.Encode()

	logger := c.logger.With().Str("table", table).Logger()

	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}

			conn, _, err := websocket.Dial(ctx, wsURL, nil)
			if err != nil {
				logger.Warn().Err(err).Dur("backoff", backoff).Msg("realtime dial failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}

			logger.Info().Msg("realtime subscribed")
			backoff = time.Second

			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					conn.Close(websocket.StatusNormalClosure, "")
					if ctx.Err() != nil {
						return
					}
					logger.Warn().Err(err).Msg("realtime read failed, reconnecting")
					break
				}

				var ev Event
				if err := json.Unmarshal(data, &ev); err != nil {
					logger.Error().Err(err).Msg("realtime event decode failed")
					continue
				}
				if ev.Table == "" {
					ev.Table = table
				}
				h(ev)
			}
		}
	}()

	return cancel, nil
}
