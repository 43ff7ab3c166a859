package fanout

import (
	"context"

	"github.com/decred/slog"
	"golang.org/x/sync/errgroup"

	"hearth/internal/domain"
)

// Service fans a plaintext out to every participant device.
type Service struct {
	cipher domain.MessageCipher
	log    slog.Logger
}

// New constructs a fanout coordinator.
func New(cipher domain.MessageCipher, log slog.Logger) *Service {
	if log == nil {
		log = slog.Disabled
	}
	return &Service{cipher: cipher, log: log}
}

// EncryptForAll produces one pairwise envelope per participant, in
// participant order. Distinct recipients encrypt in parallel; the
// session manager serializes concurrent work per recipient. If any
// recipient fails the whole fanout fails — ratchets already advanced
// for other recipients stay advanced, which is safe: their unsent
// envelopes are simply discarded and the counters never reused.
func (s *Service) EncryptForAll(ctx context.Context, passphrase string, from domain.Address, participants []domain.Address, plaintext []byte) ([]domain.MessageEnvelope, error) {
	envs := make([]domain.MessageEnvelope, len(participants))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range participants {
		i, p := i, p
		g.Go(func() error {
			env, err := s.cipher.Encrypt(ctx, passphrase, from, p, plaintext)
			if err != nil {
				return err
			}
			envs[i] = env
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.log.Debugf("fanned out message from %s to %d participants", from, len(participants))
	return envs, nil
}

var _ domain.FanoutCoordinator = (*Service)(nil)
