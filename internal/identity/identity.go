package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cattleherd/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identity is the stable device identity plus the per-process keypair. The
// UUID never changes once written; the keypair is regenerated on every
// process start and never persisted, so collectors must not pin it.
type Identity struct {
	ID         uuid.UUID
	publicKey  *ecdsa.PublicKey
	privateKey *ecdsa.PrivateKey
}

// PublicKeyBytes returns the public key as PKIX DER bytes for the handshake
func (i *Identity) PublicKeyBytes() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(i.publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return der, nil
}

// Store persists the device UUID at a fixed, platform-resolved path
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a store backed by the given identity file path
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// LoadOrCreate reads the persisted device UUID, creating it on first run,
// and generates a fresh P-384 keypair. A present but unparsable identity
// file is never overwritten.
func (s *Store) LoadOrCreate() (*Identity, error) {
	id, err := s.loadOrCreateID()
	if err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}

	return &Identity{
		ID:         id,
		publicKey:  &key.PublicKey,
		privateKey: key,
	}, nil
}

func (s *Store) loadOrCreateID() (uuid.UUID, error) {
	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if len(raw) != 16 {
			return uuid.Nil, fmt.Errorf("%w: %s holds %d bytes, want 16",
				types.ErrIdentityCorrupt, s.path, len(raw))
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %s: %v", types.ErrIdentityCorrupt, s.path, err)
		}
		s.logger.Debug("Loaded device identity",
			zap.String("id", id.String()),
			zap.String("path", s.path))
		return id, nil

	case errors.Is(err, fs.ErrNotExist):
		return s.createID()

	default:
		return uuid.Nil, fmt.Errorf("%w: %s: %v", types.ErrIdentityUnwritable, s.path, err)
	}
}

// createID generates a fresh UUID and writes its 16 raw bytes
func (s *Store) createID() (uuid.UUID, error) {
	id := uuid.New()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", types.ErrIdentityUnwritable, s.path, err)
	}
	if err := os.WriteFile(s.path, id[:], 0600); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", types.ErrIdentityUnwritable, s.path, err)
	}

	s.logger.Info("Created device identity",
		zap.String("id", id.String()),
		zap.String("path", s.path))
	return id, nil
}
