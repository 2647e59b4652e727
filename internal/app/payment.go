package app

import (
	"fmt"

	"carpool/internal/config"
	"carpool/internal/service"
)

// NewProcessor creates the payment processor selected by cfg.Processor.
func NewProcessor(cfg config.PaymentConfig) (service.Processor, error) {
	switch cfg.Processor {
	case "mock", "":
		return service.NewMockProcessor(), nil
	case "http":
		if cfg.BaseURL == "" || cfg.ShopID == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("http processor needs PAYMENT_BASE_URL, PAYMENT_SHOP_ID and PAYMENT_SECRET_KEY")
		}
		return service.NewHTTPProcessor(cfg.BaseURL, cfg.ShopID, cfg.SecretKey, cfg.Currency, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown payment processor %q", cfg.Processor)
	}
}
