package agent

import (
	"context"
	"errors"
	"io"
	"net"

	"cattleherd/internal/protocol"
	"cattleherd/internal/session"
	"cattleherd/internal/types"

	"go.uber.org/zap"
)

// acceptLoop spawns an independent session per inbound herder connection.
// Sessions share nothing but read access to the snapshot engine.
func (c *Controller) acceptLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		nc, err := c.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Warn("Accept failed", zap.Error(err))
			continue
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.servePull(ctx, nc)
		}()
	}
}

// servePull handshakes actively on an accepted connection, then answers
// each inbound RequestUpdate with a freshly computed report. Wire errors
// close this session only; sibling sessions are unaffected.
func (c *Controller) servePull(ctx context.Context, nc net.Conn) {
	sc := session.Wrap(nc, c.logger)
	defer sc.Close()
	release := session.CloseOnCancel(ctx, sc)
	defer release()

	peer := sc.RemoteAddr()

	if err := c.handshake(ctx, sc); err != nil {
		c.logger.Warn("Handshake failed",
			zap.String("peer", peer),
			zap.Error(err))
		return
	}
	c.logger.Info("Herder connected", zap.String("peer", peer))

	for {
		msg, err := sc.Receive()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				c.logger.Debug("Herder disconnected", zap.String("peer", peer))
			case errors.Is(err, types.ErrMalformedMessage), errors.Is(err, types.ErrSchemaMismatch):
				c.logger.Warn("Closing session on bad message",
					zap.String("peer", peer),
					zap.Error(err))
			default:
				c.logger.Warn("Session lost",
					zap.String("peer", peer),
					zap.Error(err))
			}
			return
		}

		if msg.Type != protocol.TypeRequestUpdate {
			c.logger.Warn("Unexpected message in steady state, closing session",
				zap.String("peer", peer),
				zap.String("type", msg.Type.String()))
			return
		}

		report, err := c.engine.Update(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The herder's own timeout marks this cycle failed
			c.logger.Warn("Snapshot failed, not answering request", zap.Error(err))
			continue
		}

		if err := sc.Send(protocol.SendUpdate(report)); err != nil {
			c.logger.Warn("Failed to send update",
				zap.String("peer", peer),
				zap.Error(err))
			return
		}
	}
}
