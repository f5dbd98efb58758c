package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func null() decimal.NullDecimal { return decimal.NullDecimal{} }

func val(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestMid(t *testing.T) {
	tests := []struct {
		name string
		bid  decimal.NullDecimal
		ask  decimal.NullDecimal
		want string
		ok   bool
	}{
		{"both sides", val("60123.4"), val("60123.6"), "60123.5", true},
		{"bid only", val("1.25"), null(), "1.25", true},
		{"ask only", null(), val("0.003"), "0.003", true},
		{"neither", null(), null(), "", false},
		{"exact average", val("0.1"), val("0.2"), "0.15", true},
	}
	for _, tt := range tests {
		mid, ok := Mid(tt.bid, tt.ask)
		if ok != tt.ok {
			t.Fatalf("%s: ok=%v want %v", tt.name, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if want := decimal.RequireFromString(tt.want); !mid.Equal(want) {
			t.Errorf("%s: mid=%s want %s", tt.name, mid, want)
		}
		// invariant: mid present => at least one side present
		if !tt.bid.Valid && !tt.ask.Valid {
			t.Errorf("%s: mid computed without any side", tt.name)
		}
	}
}

func TestTickSubject(t *testing.T) {
	if got := TickSubject("", "BTC"); got != "ticks.BTC" {
		t.Errorf("default prefix: got %s", got)
	}
	if got := TickSubject("quotes", "ETH"); got != "quotes.ETH" {
		t.Errorf("custom prefix: got %s", got)
	}
}
