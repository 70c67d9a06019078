package agent

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cattleherd/internal/config"
	"cattleherd/internal/identity"
	"cattleherd/internal/protocol"
	"cattleherd/internal/session"
	"cattleherd/internal/snapshot"

	"go.uber.org/zap"
)

// Controller drives the cattle side of the wire conversation in exactly one
// of two roles: Push (dial out to the herder on a timer) or Pull (listen for
// inbound herder connections). Poll is refused upstream by config
// validation.
type Controller struct {
	cfg    *config.Config
	ident  *identity.Identity
	engine *snapshot.Engine
	logger *zap.Logger

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller for the configured mode
func New(cfg *config.Config, ident *identity.Identity, engine *snapshot.Engine, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		ident:  ident,
		engine: engine,
		logger: logger,
	}
}

// Start launches the configured role. It returns once the role is running;
// sessions continue until Stop or context cancellation.
func (c *Controller) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	switch c.cfg.Mode.Type {
	case config.ModePush:
		c.wg.Add(1)
		go c.runPush(ctx)
		return nil

	case config.ModePull:
		ln, err := net.Listen("tcp", c.cfg.Mode.Pull.Address())
		if err != nil {
			return fmt.Errorf("failed to bind listen port: %w", err)
		}
		c.ln = ln
		c.logger.Info("Listening for herder connections",
			zap.String("addr", ln.Addr().String()))
		c.wg.Add(1)
		go c.acceptLoop(ctx)
		return nil

	default:
		return fmt.Errorf("mode %q is not a cattle mode", c.cfg.Mode.Type)
	}
}

// Stop cancels all sessions and waits for them to close
func (c *Controller) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.ln != nil {
		_ = c.ln.Close()
	}
	c.wg.Wait()
	return nil
}

// Addr returns the bound listen address in Pull mode
func (c *Controller) Addr() net.Addr {
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// handshake announces this device on a fresh connection: the public key,
// then exactly one initial-info report. The report is recomputed for every
// connection, never replayed from a cache.
func (c *Controller) handshake(ctx context.Context, sc *session.Conn) error {
	sc.SetState(session.StateHandshaking)

	key, err := c.ident.PublicKeyBytes()
	if err != nil {
		return err
	}
	if err := sc.Send(protocol.SendPublicKey(key)); err != nil {
		return err
	}

	initial, err := c.engine.Initial(ctx)
	if err != nil {
		return err
	}
	initial.DeviceID = c.ident.ID

	if err := sc.Send(protocol.SendInitialInfo(initial)); err != nil {
		return err
	}

	sc.SetState(session.StateSteady)
	return nil
}
