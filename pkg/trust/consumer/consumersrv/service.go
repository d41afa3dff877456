package consumersrv

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
)

// ConsumerService resolves and trust-checks consumer applications.
type ConsumerService struct {
	repo consumer.Repository
}

// NewConsumerService creates a new service.
func NewConsumerService(repo consumer.Repository) *ConsumerService {
	return &ConsumerService{repo: repo}
}

// TrustCheck resolves a consumer by name and verifies it may call from the
// given address. Every login and verification flow starts here.
func (s *ConsumerService) TrustCheck(ctx context.Context, name, callerIP string) (*consumer.Consumer, error) {
	c, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, consumer.ErrConsumerInactive()
	}
	if callerIP != "" && !c.AllowsIP(callerIP) {
		return nil, consumer.ErrConsumerIPDenied().WithDetail("ip", callerIP)
	}
	return c, nil
}

// VerifyAPIKey resolves a consumer from a raw API key. The key is stored
// only as a SHA-256 lookup hash.
func (s *ConsumerService) VerifyAPIKey(ctx context.Context, rawKey string) (*consumer.Consumer, error) {
	if rawKey == "" {
		return nil, consumer.ErrInvalidAPIKey()
	}

	c, err := s.repo.FindByAPIKeyHash(ctx, cryptox.SHA256Hex(rawKey))
	if err != nil {
		// An unknown key must not be distinguishable from a malformed one,
		// but storage failures are not authentication failures.
		if !errx.IsCode(err, consumer.CodeConsumerNotFound) {
			return nil, err
		}
		return nil, consumer.ErrInvalidAPIKey()
	}
	if !c.IsActive {
		return nil, consumer.ErrConsumerInactive()
	}
	return c, nil
}
