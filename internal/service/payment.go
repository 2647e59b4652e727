package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// Processor is the interface for an external payment processor.
// Only PaymentGateway talks to it.
type Processor interface {
	Authorize(ctx context.Context, amount domain.Money, source, idempotencyKey string) (string, error)
	Capture(ctx context.Context, authRef string, amount domain.Money) (string, error)
	Void(ctx context.Context, authRef string) error
	Refund(ctx context.Context, captureRef string, amount domain.Money, idempotencyKey string) (string, error)
	RefundSettled(ctx context.Context, refundRef string) (bool, error)
}

// MockProcessor is an in-process Processor. Holds live in memory and every
// operation is idempotent the way a real processor's is. Sources starting
// with "tok_decline" are refused.
type MockProcessor struct {
	mu      sync.Mutex
	holds   map[string]*mockHold
	byKey   map[string]string
	refunds map[string]string
}

type mockHold struct {
	amount     domain.Money
	captureRef string
	voided     bool
}

// NewMockProcessor creates a new mock processor.
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{
		holds:   make(map[string]*mockHold),
		byKey:   make(map[string]string),
		refunds: make(map[string]string),
	}
}

// Authorize places a hold.
func (p *MockProcessor) Authorize(ctx context.Context, amount domain.Money, source, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.byKey[idempotencyKey]; ok {
		return ref, nil
	}
	if source == "" || strings.HasPrefix(source, "tok_decline") {
		return "", errors.New("card declined")
	}

	ref := "auth_" + uuid.New().String()
	p.holds[ref] = &mockHold{amount: amount}
	p.byKey[idempotencyKey] = ref
	return ref, nil
}

// Capture charges a hold. Capturing twice returns the first capture.
func (p *MockProcessor) Capture(ctx context.Context, authRef string, amount domain.Money) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hold, ok := p.holds[authRef]
	if !ok {
		return "", fmt.Errorf("unknown authorization %s", authRef)
	}
	if hold.voided {
		return "", errors.New("authorization was voided")
	}
	if hold.captureRef == "" {
		hold.captureRef = "cap_" + uuid.New().String()
	}
	return hold.captureRef, nil
}

// Void releases a hold. Voiding twice is a no-op.
func (p *MockProcessor) Void(ctx context.Context, authRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hold, ok := p.holds[authRef]
	if !ok {
		return fmt.Errorf("unknown authorization %s", authRef)
	}
	if hold.captureRef != "" {
		return errors.New("authorization already captured")
	}
	hold.voided = true
	return nil
}

// Refund returns part of a captured charge.
func (p *MockProcessor) Refund(ctx context.Context, captureRef string, amount domain.Money, idempotencyKey string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ref, ok := p.refunds[idempotencyKey]; ok {
		return ref, nil
	}
	for _, hold := range p.holds {
		if hold.captureRef == captureRef {
			if amount > hold.amount {
				return "", errors.New("refund exceeds captured amount")
			}
			ref := "ref_" + uuid.New().String()
			p.refunds[idempotencyKey] = ref
			return ref, nil
		}
	}
	return "", fmt.Errorf("unknown capture %s", captureRef)
}

// RefundSettled reports refunds as settled immediately.
func (p *MockProcessor) RefundSettled(ctx context.Context, refundRef string) (bool, error) {
	return refundRef != "", nil
}

// PaymentGateway is the sole bridge between bookings and the processor.
// It records every hold so capture, void and refund are idempotent per
// authorization reference.
type PaymentGateway struct {
	authRepo  repository.AuthorizationRepository
	processor Processor
	logger    *logrus.Logger
}

// NewPaymentGateway creates a new PaymentGateway.
func NewPaymentGateway(authRepo repository.AuthorizationRepository, processor Processor, logger *logrus.Logger) *PaymentGateway {
	return &PaymentGateway{
		authRepo:  authRepo,
		processor: processor,
		logger:    logger,
	}
}

// Authorize places a hold of amount on the payment source. Repeating a call
// with the same idempotency key returns the existing authorization.
func (g *PaymentGateway) Authorize(ctx context.Context, amount domain.Money, source, idempotencyKey string) (*domain.Authorization, error) {
	if amount <= 0 {
		return nil, validationError("amount must be positive")
	}
	if source == "" {
		return nil, validationError("payment_source is required")
	}

	existing, err := g.authRepo.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	ref, err := g.processor.Authorize(ctx, amount, source, idempotencyKey)
	if err != nil {
		g.logger.WithError(err).WithField("amount", amount.String()).Warn("authorization refused")
		return nil, fmt.Errorf("%w: %v", ErrPaymentAuthorizationFailed, err)
	}

	now := time.Now().UTC()
	auth := &domain.Authorization{
		Ref:            ref,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Status:         domain.AuthorizationStatusAuthorized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := g.authRepo.Create(ctx, auth); err != nil {
		// Without a local record the hold could never be resolved; drop it.
		if voidErr := g.processor.Void(ctx, ref); voidErr != nil {
			g.logger.WithError(voidErr).WithField("authorization_ref", ref).Error("orphaned authorization")
			return nil, fmt.Errorf("%w: record authorization %s: %v", ErrReconciliationRequired, ref, err)
		}
		return nil, fmt.Errorf("%w: record authorization: %v", ErrPaymentAuthorizationFailed, err)
	}

	return auth, nil
}

// Capture charges the hold at most once and returns the capture reference.
// A retry on an already captured hold returns the stored reference.
func (g *PaymentGateway) Capture(ctx context.Context, authRef string) (string, error) {
	auth, err := g.authRepo.GetByRef(ctx, authRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentCaptureFailed, err)
	}

	switch auth.Status {
	case domain.AuthorizationStatusCaptured, domain.AuthorizationStatusRefunded:
		return auth.CaptureRef, nil
	case domain.AuthorizationStatusVoided:
		return "", fmt.Errorf("%w: authorization %s was voided", ErrPaymentCaptureFailed, authRef)
	}

	captureRef, err := g.processor.Capture(ctx, authRef, auth.Amount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentCaptureFailed, err)
	}

	if err := g.authRepo.MarkCaptured(ctx, authRef, captureRef); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if current, getErr := g.authRepo.GetByRef(ctx, authRef); getErr == nil && current.CaptureRef != "" {
				return current.CaptureRef, nil
			}
		}
		return "", fmt.Errorf("%w: capture %s not recorded: %v", ErrReconciliationRequired, captureRef, err)
	}

	return captureRef, nil
}

// Void releases the hold. Voiding an already voided hold succeeds.
func (g *PaymentGateway) Void(ctx context.Context, authRef string) error {
	auth, err := g.authRepo.GetByRef(ctx, authRef)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVoidFailed, err)
	}

	switch auth.Status {
	case domain.AuthorizationStatusVoided:
		return nil
	case domain.AuthorizationStatusCaptured, domain.AuthorizationStatusRefunded:
		return fmt.Errorf("%w: authorization %s already captured", ErrVoidFailed, authRef)
	}

	if err := g.processor.Void(ctx, authRef); err != nil {
		return fmt.Errorf("%w: %v", ErrVoidFailed, err)
	}

	if err := g.authRepo.MarkVoided(ctx, authRef); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if current, getErr := g.authRepo.GetByRef(ctx, authRef); getErr == nil && current.Status == domain.AuthorizationStatusVoided {
				return nil
			}
		}
		return fmt.Errorf("%w: void of %s not recorded: %v", ErrReconciliationRequired, authRef, err)
	}

	return nil
}

// Refund returns amount of a captured hold to the payer and returns the
// refund reference. A retry returns the stored reference.
func (g *PaymentGateway) Refund(ctx context.Context, authRef string, amount domain.Money) (string, error) {
	auth, err := g.authRepo.GetByRef(ctx, authRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	switch auth.Status {
	case domain.AuthorizationStatusRefunded:
		return auth.RefundRef, nil
	case domain.AuthorizationStatusCaptured:
	default:
		return "", fmt.Errorf("%w: authorization %s is %s", ErrRefundFailed, authRef, auth.Status)
	}

	if amount <= 0 || amount > auth.Amount {
		return "", fmt.Errorf("%w: refund %s outside captured %s", ErrRefundFailed, amount, auth.Amount)
	}

	refundRef, err := g.processor.Refund(ctx, auth.CaptureRef, amount, "refund:"+authRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	if err := g.authRepo.MarkRefunded(ctx, authRef, refundRef, amount); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if current, getErr := g.authRepo.GetByRef(ctx, authRef); getErr == nil && current.RefundRef != "" {
				return current.RefundRef, nil
			}
		}
		return "", fmt.Errorf("%w: refund %s not recorded: %v", ErrReconciliationRequired, refundRef, err)
	}

	return refundRef, nil
}

// RefundSettled asks the processor whether the refund on authRef has settled.
func (g *PaymentGateway) RefundSettled(ctx context.Context, authRef string) (bool, error) {
	auth, err := g.authRepo.GetByRef(ctx, authRef)
	if err != nil {
		return false, err
	}
	if auth.Status != domain.AuthorizationStatusRefunded {
		return false, nil
	}
	return g.processor.RefundSettled(ctx, auth.RefundRef)
}
