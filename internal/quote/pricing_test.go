package quote

import (
	"errors"
	"testing"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPrice(t *testing.T) {
	lines := []LineInput{
		{Description: "Partition panel", Quantity: d("4"), UnitPrice: d("125.50")},
		{Description: "Hinge", Quantity: d("8"), UnitPrice: d("3.333")},
	}
	totals, err := Price(lines, d("10"), d("18"))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if got := totals.Lines[1].LineTotal.StringFixed(2); got != "26.66" {
		t.Fatalf("expected hinge total 26.66, got %s", got)
	}
	checks := map[string]decimal.Decimal{
		"528.66": totals.Subtotal,
		"52.87":  totals.Discount,
		"85.64":  totals.Tax,
		"561.43": totals.Total,
	}
	for want, got := range checks {
		if got.StringFixed(2) != want {
			t.Fatalf("expected %s, got %s (totals %+v)", want, got.StringFixed(2), totals)
		}
	}
}

func TestPrice_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		line     LineInput
		discount string
		tax      string
	}{
		{name: "zero quantity", line: LineInput{Description: "x", Quantity: d("0"), UnitPrice: d("1")}, discount: "0", tax: "0"},
		{name: "negative price", line: LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("-1")}, discount: "0", tax: "0"},
		{name: "blank description", line: LineInput{Description: " ", Quantity: d("1"), UnitPrice: d("1")}, discount: "0", tax: "0"},
		{name: "discount over 100", line: LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1")}, discount: "101", tax: "0"},
		{name: "negative tax", line: LineInput{Description: "x", Quantity: d("1"), UnitPrice: d("1")}, discount: "0", tax: "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Price([]LineInput{tc.line}, d(tc.discount), d(tc.tax)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	_, err := Price([]LineInput{{Description: "x", Quantity: d("-2"), UnitPrice: d("1")}}, decimal.Zero, decimal.Zero)
	if !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}
}

func TestFormatNumber(t *testing.T) {
	at := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)
	if got := FormatNumber("qt", at, 42); got != "QT-202610-0042" {
		t.Fatalf("unexpected number %q", got)
	}
	if got := FormatNumber("", at, 0); got != "QT-202610-0001" {
		t.Fatalf("unexpected default number %q", got)
	}
}

func TestFill(t *testing.T) {
	totals, err := Price([]LineInput{{Description: "Lock", Quantity: d("2"), UnitPrice: d("7.5")}}, d("0"), d("5"))
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	var q models.Quotation
	Fill(&q, d("0"), d("5"), totals)
	if q.Subtotal != "15.00" || q.Tax != "0.75" || q.Total != "15.75" {
		t.Fatalf("unexpected totals %+v", q)
	}
	if len(q.Items) != 1 || q.Items[0].LineTotal != "15.00" || q.Items[0].Quantity != "2" {
		t.Fatalf("unexpected items %+v", q.Items)
	}
}
