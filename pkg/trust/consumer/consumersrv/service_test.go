package consumersrv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/trustgate/pkg/cryptox"
	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/Abraxas-365/trustgate/pkg/kernel"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer"
	"github.com/Abraxas-365/trustgate/pkg/trust/consumer/consumersrv"
)

type memoryConsumerRepo struct {
	consumers []*consumer.Consumer
}

func (r *memoryConsumerRepo) FindByID(ctx context.Context, id kernel.ConsumerID) (*consumer.Consumer, error) {
	for _, c := range r.consumers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, consumer.ErrConsumerNotFound()
}

func (r *memoryConsumerRepo) FindByName(ctx context.Context, name string) (*consumer.Consumer, error) {
	for _, c := range r.consumers {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, consumer.ErrConsumerNotFound()
}

func (r *memoryConsumerRepo) FindByAPIKeyHash(ctx context.Context, hash string) (*consumer.Consumer, error) {
	for _, c := range r.consumers {
		if c.APIKeyHash == hash {
			return c, nil
		}
	}
	return nil, consumer.ErrConsumerNotFound()
}

func (r *memoryConsumerRepo) Save(ctx context.Context, c consumer.Consumer) error {
	cp := c
	r.consumers = append(r.consumers, &cp)
	return nil
}

// failingConsumerRepo simulates a storage outage on lookups.
type failingConsumerRepo struct {
	*memoryConsumerRepo
}

func (r *failingConsumerRepo) FindByName(ctx context.Context, name string) (*consumer.Consumer, error) {
	return nil, errx.Wrap(errors.New("connection refused"), "failed to find consumer by name", errx.TypeInternal)
}

func (r *failingConsumerRepo) FindByAPIKeyHash(ctx context.Context, hash string) (*consumer.Consumer, error) {
	return nil, errx.Wrap(errors.New("connection refused"), "failed to find consumer by api key", errx.TypeInternal)
}

const testAPIKey = "ak_live_billing_portal"

func billingPortal() *consumer.Consumer {
	return &consumer.Consumer{
		ID:         kernel.NewConsumerID("consumer-1"),
		Name:       "billing-portal",
		APIKeyHash: cryptox.SHA256Hex(testAPIKey),
		AllowedIPs: []string{"10.0.0.1"},
		IsActive:   true,
	}
}

func TestTrustCheck(t *testing.T) {
	svc := consumersrv.NewConsumerService(&memoryConsumerRepo{consumers: []*consumer.Consumer{billingPortal()}})
	ctx := context.Background()

	c, err := svc.TrustCheck(ctx, "billing-portal", "10.0.0.1")
	if err != nil {
		t.Fatalf("TrustCheck: %v", err)
	}
	if c.Name != "billing-portal" {
		t.Errorf("expected billing-portal, got %s", c.Name)
	}

	_, err = svc.TrustCheck(ctx, "billing-portal", "192.168.1.1")
	if !errx.IsCode(err, consumer.CodeConsumerIPDenied) {
		t.Errorf("expected IP_DENIED, got %v", err)
	}

	_, err = svc.TrustCheck(ctx, "ghost-portal", "10.0.0.1")
	if !errx.IsCode(err, consumer.CodeConsumerNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestTrustCheck_StorageFailurePropagates(t *testing.T) {
	svc := consumersrv.NewConsumerService(&failingConsumerRepo{&memoryConsumerRepo{}})

	_, err := svc.TrustCheck(context.Background(), "billing-portal", "10.0.0.1")
	if errx.IsCode(err, consumer.CodeConsumerNotFound) {
		t.Fatalf("storage failure reported as consumer not found: %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}

func TestVerifyAPIKey(t *testing.T) {
	svc := consumersrv.NewConsumerService(&memoryConsumerRepo{consumers: []*consumer.Consumer{billingPortal()}})
	ctx := context.Background()

	c, err := svc.VerifyAPIKey(ctx, testAPIKey)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	if c.Name != "billing-portal" {
		t.Errorf("expected billing-portal, got %s", c.Name)
	}

	_, err = svc.VerifyAPIKey(ctx, "ak_live_wrong")
	if !errx.IsCode(err, consumer.CodeInvalidAPIKey) {
		t.Errorf("expected INVALID_API_KEY, got %v", err)
	}

	_, err = svc.VerifyAPIKey(ctx, "")
	if !errx.IsCode(err, consumer.CodeInvalidAPIKey) {
		t.Errorf("empty key: expected INVALID_API_KEY, got %v", err)
	}
}

func TestVerifyAPIKey_StorageFailurePropagates(t *testing.T) {
	svc := consumersrv.NewConsumerService(&failingConsumerRepo{&memoryConsumerRepo{}})

	_, err := svc.VerifyAPIKey(context.Background(), testAPIKey)
	if errx.IsCode(err, consumer.CodeInvalidAPIKey) {
		t.Fatalf("storage failure reported as an invalid key: %v", err)
	}
	var e *errx.Error
	if !errx.As(err, &e) || e.Type != errx.TypeInternal {
		t.Errorf("expected an internal error, got %v", err)
	}
}
