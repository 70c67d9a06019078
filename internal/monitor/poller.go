package monitor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"cattleherd/internal/config"
	"cattleherd/internal/protocol"
	"cattleherd/internal/session"
	"cattleherd/internal/types"

	"go.uber.org/zap"
)

// Poller is the herder's Poll role: every interval it walks the target list
// in order, opens a session to each, and requests one update. A dead target
// gets an explicit failure record and never blocks the rest of the cycle.
type Poller struct {
	cfg      config.PollConfig
	registry *Registry
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller over the configured targets
func NewPoller(cfg config.PollConfig, registry *Registry, logger *zap.Logger) *Poller {
	return &Poller{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Start launches the poll loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Stop cancels the loop and any in-flight target session
func (p *Poller) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval())
	defer ticker.Stop()

	p.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle polls every target once, in configured order
func (p *Poller) runCycle(ctx context.Context) {
	for _, target := range p.cfg.Targets {
		if ctx.Err() != nil {
			return
		}
		if err := p.pollTarget(ctx, target); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.registry.RecordFailure(target, target, err)
			p.logger.Warn("Poll target failed",
				zap.String("target", target),
				zap.Error(err))
		}
	}
}

// pollTarget runs one session against one target under the per-target
// timeout: read the passive handshake, request one update, record it.
func (p *Poller) pollTarget(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
	defer cancel()

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", types.ErrConnectionLost, target, err)
	}

	sc := session.Wrap(nc, p.logger)
	defer sc.Close()
	release := session.CloseOnCancel(ctx, sc)
	defer release()

	_ = sc.SetDeadline(time.Now().Add(p.cfg.Timeout()))
	sc.SetState(session.StateHandshaking)

	keyMsg, err := p.expect(sc, protocol.TypeSendPublicKey)
	if err != nil {
		return err
	}
	infoMsg, err := p.expect(sc, protocol.TypeSendInitialInfo)
	if err != nil {
		return err
	}
	sc.SetState(session.StateSteady)

	if err := sc.Send(protocol.RequestUpdate()); err != nil {
		return err
	}
	updMsg, err := p.expect(sc, protocol.TypeSendUpdate)
	if err != nil {
		return err
	}

	p.registry.RecordHandshake(target, target, keyMsg.PublicKey, infoMsg.Initial)
	p.registry.RecordUpdate(target, updMsg.Update)

	p.logger.Debug("Polled target",
		zap.String("target", target),
		zap.String("device_id", infoMsg.Initial.DeviceID.String()))
	return nil
}

// expect reads one message and requires the given type
func (p *Poller) expect(sc *session.Conn, want protocol.MessageType) (*protocol.Message, error) {
	msg, err := sc.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type != want {
		return nil, fmt.Errorf("%w: expected %s, got %s", types.ErrSchemaMismatch, want, msg.Type)
	}
	return msg, nil
}
