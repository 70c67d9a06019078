package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"cattleherd/internal/config"
	"cattleherd/internal/protocol"
	"cattleherd/internal/session"
	"cattleherd/internal/types"

	"go.uber.org/zap"
)

// Intake is the herder's Pull role: it accepts inbound cattle connections,
// consumes each one's handshake, then records the stream of pushed updates.
// Every accepted connection is an independent session; one misbehaving peer
// never affects the others.
type Intake struct {
	cfg      config.PullConfig
	registry *Registry
	logger   *zap.Logger

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIntake creates an intake listener for pushed reports
func NewIntake(cfg config.PullConfig, registry *Registry, logger *zap.Logger) *Intake {
	return &Intake{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Start binds the listen port and begins accepting cattle connections
func (in *Intake) Start(ctx context.Context) error {
	ctx, in.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", in.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to bind listen port: %w", err)
	}
	in.ln = ln
	in.logger.Info("Listening for cattle connections",
		zap.String("addr", ln.Addr().String()))

	in.wg.Add(1)
	go in.acceptLoop(ctx)
	return nil
}

// Stop closes the listener and all live sessions
func (in *Intake) Stop() error {
	if in.cancel != nil {
		in.cancel()
	}
	if in.ln != nil {
		_ = in.ln.Close()
	}
	in.wg.Wait()
	return nil
}

// Addr returns the bound listen address
func (in *Intake) Addr() net.Addr {
	if in.ln == nil {
		return nil
	}
	return in.ln.Addr()
}

func (in *Intake) acceptLoop(ctx context.Context) {
	defer in.wg.Done()

	for {
		nc, err := in.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			in.logger.Warn("Accept failed", zap.Error(err))
			continue
		}

		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			in.serve(ctx, nc)
		}()
	}
}

// serve consumes one cattle session: SendPublicKey, then SendInitialInfo,
// then updates until the peer disconnects. Entries are keyed by the
// announced device ID.
func (in *Intake) serve(ctx context.Context, nc net.Conn) {
	sc := session.Wrap(nc, in.logger)
	defer sc.Close()
	release := session.CloseOnCancel(ctx, sc)
	defer release()

	peer := sc.RemoteAddr()
	sc.SetState(session.StateHandshaking)

	keyMsg, err := in.expect(sc, protocol.TypeSendPublicKey)
	if err != nil {
		in.logger.Warn("Handshake failed",
			zap.String("peer", peer),
			zap.Error(err))
		return
	}
	infoMsg, err := in.expect(sc, protocol.TypeSendInitialInfo)
	if err != nil {
		in.logger.Warn("Handshake failed",
			zap.String("peer", peer),
			zap.Error(err))
		return
	}
	sc.SetState(session.StateSteady)

	key := infoMsg.Initial.DeviceID.String()
	in.registry.RecordHandshake(key, peer, keyMsg.PublicKey, infoMsg.Initial)
	in.logger.Info("Cattle connected",
		zap.String("peer", peer),
		zap.String("device_id", key))

	for {
		msg, err := sc.Receive()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				in.logger.Debug("Cattle disconnected", zap.String("peer", peer))
			case errors.Is(err, types.ErrMalformedMessage), errors.Is(err, types.ErrSchemaMismatch):
				in.registry.RecordFailure(key, peer, err)
				in.logger.Warn("Closing session on bad message",
					zap.String("peer", peer),
					zap.Error(err))
			default:
				in.registry.RecordFailure(key, peer, err)
				in.logger.Warn("Session lost",
					zap.String("peer", peer),
					zap.Error(err))
			}
			return
		}

		if msg.Type != protocol.TypeSendUpdate {
			in.registry.RecordFailure(key, peer,
				fmt.Errorf("%w: expected SendUpdate, got %s", types.ErrSchemaMismatch, msg.Type))
			in.logger.Warn("Unexpected message in steady state, closing session",
				zap.String("peer", peer),
				zap.String("type", msg.Type.String()))
			return
		}

		in.registry.RecordUpdate(key, msg.Update)
	}
}

// expect reads one message and requires the given type
func (in *Intake) expect(sc *session.Conn, want protocol.MessageType) (*protocol.Message, error) {
	msg, err := sc.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type != want {
		return nil, fmt.Errorf("%w: expected %s, got %s", types.ErrSchemaMismatch, want, msg.Type)
	}
	return msg, nil
}
