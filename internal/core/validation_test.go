package core

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRequirePrice(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		wantReason string
	}{
		{in: "4990", want: "4990"},
		{in: " 4990,555 ", want: "4990.56"},
		{in: "0", want: "0"},
		{in: "", wantReason: ReasonRequired},
		{in: "дорого", wantReason: ReasonInvalidNumber},
		{in: "-1", wantReason: ReasonNegative},
		{in: "9999999999.99", want: "9999999999.99"},
		{in: "10000000000", wantReason: ReasonTooLarge},
		{in: "9999999999.995", wantReason: ReasonTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := requirePrice("price", tt.in)
			if tt.wantReason != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Reason != tt.wantReason || ve.Field != "price" {
					t.Fatalf("error = %v, want reason %q", err, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("price = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpsertProduct_PriceTooLarge(t *testing.T) {
	svc := &Service{}
	err := svc.UpsertProduct(context.Background(), ProductInput{
		Article: "B1", Name: "Boot", Price: "10000000000",
		Category: "Женская обувь", Supplier: "Kari", Manufacturer: "Kari",
	})

	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Reason != ReasonTooLarge {
		t.Fatalf("error = %v, want %q", err, ReasonTooLarge)
	}
	if got := MapError(err).Code; got != "VAL010" {
		t.Errorf("code = %q, want VAL010", got)
	}
}

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		name          string
		in            string
		allowNegative bool
		want          int32
		wantReason    string
	}{
		{name: "empty is zero", in: "", want: 0},
		{name: "plain", in: "12", want: 12},
		{name: "negative allowed", in: "-3", allowNegative: true, want: -3},
		{name: "negative rejected", in: "-3", wantReason: ReasonNegative},
		{name: "fraction", in: "1.5", wantReason: ReasonInvalidInteger},
		{name: "text", in: "много", wantReason: ReasonInvalidInteger},
		{name: "overflow", in: "99999999999", wantReason: ReasonInvalidInteger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := optionalInt("quantity", tt.in, tt.allowNegative)
			if tt.wantReason != "" {
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Reason != tt.wantReason {
					t.Fatalf("error = %v, want reason %q", err, tt.wantReason)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("optionalInt(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestRequireText(t *testing.T) {
	if got, err := requireText("name", "  Ботинки "); err != nil || got != "Ботинки" {
		t.Errorf("requireText() = %q, %v", got, err)
	}
	_, err := requireText("name", "   ")
	if err == nil || err.Error() != "name: "+ReasonRequired {
		t.Errorf("requireText(blank) error = %v", err)
	}
}

func TestRequireDate(t *testing.T) {
	if _, err := requireDate("order_date", "05.03.2025"); err != nil {
		t.Errorf("requireDate() error = %v", err)
	}

	var ve *ValidationError
	if _, err := requireDate("order_date", "завтра"); !errors.As(err, &ve) || ve.Reason != ReasonInvalidDate {
		t.Errorf("requireDate(text) error = %v", err)
	}
	if _, err := requireDate("order_date", ""); !errors.As(err, &ve) || ve.Reason != ReasonRequired {
		t.Errorf("requireDate(empty) error = %v", err)
	}
}
