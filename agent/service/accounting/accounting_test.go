package accounting

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
)

func newTestService() *Service {
	frozen := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	return NewService(storage.NewMemoryStore()).WithClock(func() time.Time { return frozen })
}

func TestCreateVoucherBalanced(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rows := []storage.VoucherRow{
		{Account: 1930, Debit: 425},
		{Account: 3001, Credit: 450},
		{Account: 6570, Debit: 25},
	}

	v, err := svc.CreateVoucher(context.Background(), "Försäljning teakbyrå", rows, "o-1", "2026-04-01")
	if err != nil {
		t.Fatalf("CreateVoucher() error = %v", err)
	}
	if v.Number != 1 {
		t.Fatalf("first voucher number = %d, want 1", v.Number)
	}
	if got := FormatNumber(v.Number); got != "V-001" {
		t.Fatalf("FormatNumber() = %q", got)
	}
	if v.TransactionDate != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("transaction date = %v", v.TransactionDate)
	}
	if v.OrderID != "o-1" || len(v.Rows) != 3 {
		t.Fatalf("voucher = %+v", v)
	}
}

func TestCreateVoucherRejectsUnbalanced(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rows := []storage.VoucherRow{
		{Account: 1930, Debit: 500},
		{Account: 3001, Credit: 450},
	}

	if _, err := svc.CreateVoucher(context.Background(), "Obalanserad", rows, "", ""); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("unbalanced voucher error = %v, want ErrValidation", err)
	}

	// The failed attempt must not consume a voucher number.
	v, err := svc.CreateVoucher(context.Background(), "Rättad", []storage.VoucherRow{
		{Account: 1930, Debit: 450},
		{Account: 3001, Credit: 450},
	}, "", "")
	if err != nil {
		t.Fatalf("CreateVoucher() error = %v", err)
	}
	if v.Number != 1 {
		t.Fatalf("voucher number = %d, rejected voucher consumed a number", v.Number)
	}
}

func TestCreateVoucherToleratesOreRounding(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rows := []storage.VoucherRow{
		{Account: 1930, Debit: 100.004},
		{Account: 3001, Credit: 100},
	}
	if _, err := svc.CreateVoucher(context.Background(), "Avrundning", rows, "", ""); err != nil {
		t.Fatalf("CreateVoucher() error = %v, sub-öre drift must pass", err)
	}
}

func TestCreateVoucherValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	balanced := []storage.VoucherRow{{Account: 1930, Debit: 100}, {Account: 3001, Credit: 100}}

	cases := []struct {
		name        string
		description string
		rows        []storage.VoucherRow
		date        string
	}{
		{name: "empty description", description: "  ", rows: balanced},
		{name: "no rows", description: "x", rows: nil},
		{name: "missing account", description: "x", rows: []storage.VoucherRow{{Debit: 100}, {Account: 3001, Credit: 100}}},
		{name: "negative amount", description: "x", rows: []storage.VoucherRow{{Account: 1930, Debit: -100}, {Account: 3001, Credit: -100}}},
		{name: "bad date", description: "x", rows: balanced, date: "01/04/2026"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := svc.CreateVoucher(context.Background(), tc.description, tc.rows, "", tc.date); !errors.Is(err, contractx.ErrValidation) {
				t.Fatalf("CreateVoucher() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestVoucherNumbersAreMonotonic(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rows := []storage.VoucherRow{{Account: 1930, Debit: 50}, {Account: 3001, Credit: 50}}

	for want := int64(1); want <= 3; want++ {
		v, err := svc.CreateVoucher(context.Background(), "Löpande", rows, "", "")
		if err != nil {
			t.Fatalf("CreateVoucher() error = %v", err)
		}
		if v.Number != want {
			t.Fatalf("voucher number = %d, want %d", v.Number, want)
		}
	}
}

func TestListVouchersDateRange(t *testing.T) {
	t.Parallel()

	svc := newTestService()
	rows := []storage.VoucherRow{{Account: 1930, Debit: 50}, {Account: 3001, Credit: 50}}
	for _, date := range []string{"2026-03-30", "2026-03-31", "2026-04-01"} {
		if _, err := svc.CreateVoucher(context.Background(), "Dag "+date, rows, "", date); err != nil {
			t.Fatalf("CreateVoucher(%s) error = %v", date, err)
		}
	}

	got, err := svc.ListVouchers(context.Background(), "2026-03-31", "2026-03-31")
	if err != nil {
		t.Fatalf("ListVouchers() error = %v", err)
	}
	if len(got) != 1 || got[0].Description != "Dag 2026-03-31" {
		t.Fatalf("range query returned %d vouchers", len(got))
	}

	all, err := svc.ListVouchers(context.Background(), "", "")
	if err != nil {
		t.Fatalf("ListVouchers() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("open range returned %d vouchers, want 3", len(all))
	}

	if _, err := svc.ListVouchers(context.Background(), "igår", ""); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("bad from date error = %v, want ErrValidation", err)
	}
}

func TestSaleVoucherRows(t *testing.T) {
	t.Parallel()

	rows := SaleVoucherRows(450, 25)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Account != 1930 || rows[0].Debit != 425 {
		t.Fatalf("bank row = %+v", rows[0])
	}
	if rows[1].Account != 3001 || rows[1].Credit != 450 {
		t.Fatalf("sales row = %+v", rows[1])
	}
	if rows[2].Account != 6570 || rows[2].Debit != 25 {
		t.Fatalf("fee row = %+v", rows[2])
	}

	var debit, credit float64
	for _, r := range rows {
		debit += r.Debit
		credit += r.Credit
	}
	if debit != credit {
		t.Fatalf("sale rows unbalanced: %v vs %v", debit, credit)
	}

	if rows := SaleVoucherRows(200, 0); len(rows) != 2 {
		t.Fatalf("zero fee rows = %d, want 2", len(rows))
	}
}

func TestAccountName(t *testing.T) {
	t.Parallel()

	if got := AccountName(1930); got != "Företagskonto" {
		t.Fatalf("AccountName(1930) = %q", got)
	}
	if got := AccountName(9999); got != "Konto 9999" {
		t.Fatalf("AccountName(9999) = %q", got)
	}
}
