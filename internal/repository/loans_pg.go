package repository

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/pegvault/pegvault/internal/model"
)

// PostgresLoanRepo is the durable record of settled flash loans.
type PostgresLoanRepo struct {
	db *sqlx.DB
}

func NewPostgresLoanRepo(db *sqlx.DB) *PostgresLoanRepo {
	repo := &PostgresLoanRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type loanRow struct {
	ID            string    `db:"id"`
	Borrower      string    `db:"borrower"`
	Asset         string    `db:"asset"`
	Amount        string    `db:"amount"`
	Fee           string    `db:"fee"`
	BalanceBefore string    `db:"balance_before"`
	BalanceAfter  string    `db:"balance_after"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *PostgresLoanRepo) Append(ctx context.Context, rec *model.LoanRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO flash_loans (
			id, borrower, asset, amount, fee, balance_before, balance_after, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.Borrower.Hex(), rec.Asset.Hex(),
		rec.Amount.String(), rec.Fee.String(),
		rec.BalanceBefore.String(), rec.BalanceAfter.String(), rec.CreatedAt)
	return err
}

// List returns the most recent loans, newest first.
func (r *PostgresLoanRepo) List(ctx context.Context, limit int) ([]*model.LoanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []loanRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, borrower, asset, amount, fee, balance_before, balance_after, created_at
		FROM flash_loans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.LoanRecord, 0, len(rows))
	for i := range rows {
		rec, err := rowToLoan(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Cleanup removes loan rows older than the cutoff and returns the
// number deleted.
func (r *PostgresLoanRepo) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM flash_loans WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func rowToLoan(row *loanRow) (*model.LoanRecord, error) {
	amount, ok := math.NewIntFromString(row.Amount)
	if !ok {
		return nil, fmt.Errorf("corrupt amount %q", row.Amount)
	}
	fee, ok := math.NewIntFromString(row.Fee)
	if !ok {
		return nil, fmt.Errorf("corrupt fee %q", row.Fee)
	}
	before, ok := math.NewIntFromString(row.BalanceBefore)
	if !ok {
		return nil, fmt.Errorf("corrupt balance_before %q", row.BalanceBefore)
	}
	after, ok := math.NewIntFromString(row.BalanceAfter)
	if !ok {
		return nil, fmt.Errorf("corrupt balance_after %q", row.BalanceAfter)
	}
	return &model.LoanRecord{
		ID:            row.ID,
		Borrower:      common.HexToAddress(row.Borrower),
		Asset:         common.HexToAddress(row.Asset),
		Amount:        amount,
		Fee:           fee,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (r *PostgresLoanRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS flash_loans (
			id UUID PRIMARY KEY,
			borrower TEXT NOT NULL,
			asset TEXT NOT NULL,
			amount TEXT NOT NULL,
			fee TEXT NOT NULL,
			balance_before TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_flash_loans_created_at ON flash_loans (created_at)
	`)
	return err
}
