package config

import (
	"testing"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":          "postgres://localhost/bazaar",
		"REDIS_URL":             "",
		"SELLER_STATE":          "",
		"SHIPPING_FREE_ABOVE":   "",
		"SHIPPING_FLAT_FEE":     "",
		"WALLET_MAX_RETRIES":    "",
		"DOCUMENT_NUMBER_WIDTH": "",
		"PORT":                  "",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SellerState != "KA" {
		t.Errorf("seller state = %q, want KA", cfg.SellerState)
	}
	if cfg.ShippingFreeAbove != money.FromRupees(500) {
		t.Errorf("free above = %s, want 500.00", cfg.ShippingFreeAbove)
	}
	if cfg.ShippingFlatFee != money.FromRupees(50) {
		t.Errorf("flat fee = %s, want 50.00", cfg.ShippingFlatFee)
	}
	if cfg.WalletMaxRetries != 5 || cfg.DocumentNumberWidth != 4 {
		t.Errorf("retries/width = %d/%d, want 5/4", cfg.WalletMaxRetries, cfg.DocumentNumberWidth)
	}
	if got := cfg.HTTPAddr(); got != ":8080" {
		t.Errorf("addr = %q, want :8080", got)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	if _, err := LoadForTests(map[string]string{"DATABASE_URL": ""}); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":        "postgres://localhost/bazaar",
		"SELLER_STATE":        "MH",
		"SHIPPING_FREE_ABOVE": "999.50",
		"WALLET_MAX_RETRIES":  "9",
		"PORT":                "9090",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SellerState != "MH" {
		t.Errorf("seller state = %q, want MH", cfg.SellerState)
	}
	if cfg.ShippingFreeAbove != money.FromPaise(99950) {
		t.Errorf("free above = %s, want 999.50", cfg.ShippingFreeAbove)
	}
	if cfg.WalletMaxRetries != 9 {
		t.Errorf("retries = %d, want 9", cfg.WalletMaxRetries)
	}
	if got := cfg.HTTPAddr(); got != ":9090" {
		t.Errorf("addr = %q, want :9090", got)
	}
}
