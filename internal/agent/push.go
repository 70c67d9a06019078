package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"cattleherd/internal/protocol"
	"cattleherd/internal/session"
	"cattleherd/internal/types"

	"go.uber.org/zap"
)

const dialTimeout = 10 * time.Second

// runPush dials the herder and reports on the configured interval,
// restarting from Idle with a capped backoff whenever the connection
// faults. The handshake is repeated in full on every reconnect.
func (c *Controller) runPush(ctx context.Context) {
	defer c.wg.Done()

	backoff := session.NewBackoff(time.Second, time.Minute)
	addr := c.cfg.Mode.Push.Address()

	for ctx.Err() == nil {
		err := c.pushSession(ctx, addr, backoff)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Push session faulted, reconnecting",
			zap.String("server", addr),
			zap.Error(err))
		if backoff.Wait(ctx) != nil {
			return
		}
	}
}

// pushSession runs one full connection lifecycle: dial, handshake, then a
// SendUpdate on every interval tick until the connection faults.
func (c *Controller) pushSession(ctx context.Context, addr string, backoff *session.Backoff) error {
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrConnectionLost, addr, err)
	}

	sc := session.Wrap(nc, c.logger)
	defer sc.Close()
	release := session.CloseOnCancel(ctx, sc)
	defer release()

	if err := c.handshake(ctx, sc); err != nil {
		sc.SetState(session.StateFaulted)
		return err
	}

	c.logger.Info("Connected to herder", zap.String("server", addr))
	backoff.Reset()

	ticker := time.NewTicker(c.cfg.Mode.Push.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := c.engine.Update(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Tick-local: skip this interval, retry on the next
				c.logger.Warn("Snapshot failed, skipping tick", zap.Error(err))
				continue
			}
			if err := sc.Send(protocol.SendUpdate(report)); err != nil {
				sc.SetState(session.StateFaulted)
				return err
			}
		}
	}
}
