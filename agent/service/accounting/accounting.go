package accounting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
)

// BAS chart accounts the shop books against.
var basAccounts = map[int]string{
	1910: "Kassa",
	1930: "Företagskonto",
	2611: "Utgående moms 25%",
	2640: "Ingående moms",
	3001: "Försäljning varor",
	4010: "Inköp varor",
	6250: "Porto/frakt",
	6570: "Bankkostnader",
}

// AccountName resolves a BAS account number to its Swedish name.
func AccountName(account int) string {
	if name, ok := basAccounts[account]; ok {
		return name
	}
	return fmt.Sprintf("Konto %d", account)
}

// Service books vouchers. Voucher numbers come from a durable counter in the
// store, so they stay unique and monotonic across deletes and restarts.
type Service struct {
	vouchers storage.VoucherStore
	now      func() time.Time
}

func NewService(vouchers storage.VoucherStore) *Service {
	return &Service{vouchers: vouchers, now: time.Now}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateVoucher books a balanced voucher. Debits and credits must match to
// the öre; an unbalanced voucher fails validation without touching the store.
func (s *Service) CreateVoucher(ctx context.Context, description string, rows []storage.VoucherRow, orderID string, transactionDate string) (*storage.Voucher, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: voucher description is required", contractx.ErrValidation)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: voucher needs at least one row", contractx.ErrValidation)
	}

	var totalDebit, totalCredit float64
	for _, r := range rows {
		if r.Account <= 0 {
			return nil, fmt.Errorf("%w: row has no account number", contractx.ErrValidation)
		}
		if r.Debit < 0 || r.Credit < 0 {
			return nil, fmt.Errorf("%w: negative amounts are not allowed", contractx.ErrValidation)
		}
		totalDebit += r.Debit
		totalCredit += r.Credit
	}
	if math.Abs(totalDebit-totalCredit) > 0.01 {
		return nil, fmt.Errorf("%w: debet (%.2f) och kredit (%.2f) balanserar inte", contractx.ErrValidation, totalDebit, totalCredit)
	}

	txDate := s.now().UTC()
	if transactionDate != "" {
		parsed, err := time.Parse("2006-01-02", transactionDate)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, transactionDate)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: invalid transaction date %q", contractx.ErrValidation, transactionDate)
		}
		txDate = parsed.UTC()
	}

	number, err := s.vouchers.NextVoucherNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate voucher number: %w", err)
	}

	v := &storage.Voucher{
		ID:              uuid.NewString(),
		Number:          number,
		Description:     description,
		Rows:            rows,
		OrderID:         orderID,
		TransactionDate: txDate,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.vouchers.InsertVoucher(ctx, v); err != nil {
		return nil, fmt.Errorf("insert voucher: %w", err)
	}

	log.Info().Int64("number", number).Str("description", description).Msg("voucher booked")
	return v, nil
}

// FormatNumber renders a voucher number the way exports show it.
func FormatNumber(number int64) string {
	return fmt.Sprintf("V-%03d", number)
}

func (s *Service) ListVouchers(ctx context.Context, fromDate, toDate string) ([]*storage.Voucher, error) {
	var from, to time.Time
	var err error
	if fromDate != "" {
		from, err = time.Parse("2006-01-02", fromDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid from date %q", contractx.ErrValidation, fromDate)
		}
	}
	if toDate != "" {
		to, err = time.Parse("2006-01-02", toDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid to date %q", contractx.ErrValidation, toDate)
		}
		// Inclusive upper bound.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return s.vouchers.ListVouchers(ctx, from, to)
}

// SaleVoucherRows builds the standard rows for a marketplace sale: bank
// debit for the payout, sales credit, fee as a bank cost.
func SaleVoucherRows(salePrice, platformFee float64) []storage.VoucherRow {
	rows := []storage.VoucherRow{
		{Account: 1930, Debit: round2(salePrice - platformFee)},
		{Account: 3001, Credit: round2(salePrice)},
	}
	if platformFee > 0 {
		rows = append(rows, storage.VoucherRow{Account: 6570, Debit: round2(platformFee)})
	}
	return rows
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
