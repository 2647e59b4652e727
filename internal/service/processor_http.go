package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
)

// HTTPProcessor talks to a card processor's REST API. Holds are created
// with capture=false and captured later. Every mutating call carries an
// Idempotence-Key.
type HTTPProcessor struct {
	baseURL   string
	shopID    string
	secretKey string
	currency  string
	client    *http.Client
}

// NewHTTPProcessor creates a new HTTPProcessor.
func NewHTTPProcessor(baseURL, shopID, secretKey, currency string, timeout time.Duration) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:   baseURL,
		shopID:    shopID,
		secretKey: secretKey,
		currency:  currency,
		client:    &http.Client{Timeout: timeout},
	}
}

// processorAmount is the wire amount with exactly two decimals.
type processorAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type paymentRequest struct {
	Amount        processorAmount `json:"amount"`
	PaymentMethod string          `json:"payment_method_id,omitempty"`
	Capture       bool            `json:"capture"`
}

type refundRequest struct {
	PaymentID string          `json:"payment_id"`
	Amount    processorAmount `json:"amount"`
}

type processorResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Authorize creates a payment with capture disabled.
func (p *HTTPProcessor) Authorize(ctx context.Context, amount domain.Money, source, idempotencyKey string) (string, error) {
	resp, err := p.do(ctx, "/payments", idempotencyKey, paymentRequest{
		Amount:        p.amount(amount),
		PaymentMethod: source,
		Capture:       false,
	})
	if err != nil {
		return "", err
	}
	if resp.Status != "waiting_for_capture" {
		return "", fmt.Errorf("payment %s in status %s", resp.ID, resp.Status)
	}
	return resp.ID, nil
}

// Capture captures the full held amount.
func (p *HTTPProcessor) Capture(ctx context.Context, authRef string, amount domain.Money) (string, error) {
	resp, err := p.do(ctx, "/payments/"+authRef+"/capture", "capture:"+authRef, map[string]processorAmount{
		"amount": p.amount(amount),
	})
	if err != nil {
		return "", err
	}
	if resp.Status != "succeeded" {
		return "", fmt.Errorf("capture of %s in status %s", authRef, resp.Status)
	}
	// The processor reuses the payment ID for the captured charge.
	return resp.ID, nil
}

// Void cancels a payment that is waiting for capture.
func (p *HTTPProcessor) Void(ctx context.Context, authRef string) error {
	resp, err := p.do(ctx, "/payments/"+authRef+"/cancel", "void:"+authRef, struct{}{})
	if err != nil {
		return err
	}
	if resp.Status != "canceled" {
		return fmt.Errorf("void of %s in status %s", authRef, resp.Status)
	}
	return nil
}

// Refund refunds part of a captured payment.
func (p *HTTPProcessor) Refund(ctx context.Context, captureRef string, amount domain.Money, idempotencyKey string) (string, error) {
	resp, err := p.do(ctx, "/refunds", idempotencyKey, refundRequest{
		PaymentID: captureRef,
		Amount:    p.amount(amount),
	})
	if err != nil {
		return "", err
	}
	if resp.Status == "canceled" {
		return "", fmt.Errorf("refund for %s was canceled", captureRef)
	}
	return resp.ID, nil
}

// RefundSettled reports whether the refund reached the succeeded status.
func (p *HTTPProcessor) RefundSettled(ctx context.Context, refundRef string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/refunds/"+refundRef, nil)
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(p.shopID, p.secretKey)

	resp, err := p.send(req)
	if err != nil {
		return false, err
	}
	return resp.Status == "succeeded", nil
}

func (p *HTTPProcessor) amount(m domain.Money) processorAmount {
	return processorAmount{Value: m.String(), Currency: p.currency}
}

func (p *HTTPProcessor) do(ctx context.Context, path, idempotencyKey string, body any) (*processorResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode processor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build processor request: %w", err)
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}
	req.SetBasicAuth(p.shopID, p.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", idempotencyKey)

	return p.send(req)
}

func (p *HTTPProcessor) send(req *http.Request) (*processorResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("processor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read processor response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(body))
	}

	var out processorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode processor response: %w", err)
	}
	return &out, nil
}

var (
	_ Processor = (*HTTPProcessor)(nil)
	_ Processor = (*MockProcessor)(nil)
)
