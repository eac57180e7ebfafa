package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/pegvault/pegvault/internal/model"
)

// PostgresStateStore persists the single treasury row: configuration
// plus the tracked-supply counter. Writes are whole-row upserts so
// config and counter can never drift apart in storage.
type PostgresStateStore struct {
	db *sqlx.DB
}

func NewPostgresStateStore(db *sqlx.DB) *PostgresStateStore {
	repo := &PostgresStateStore{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

type stateRow struct {
	Address         string    `db:"address"`
	Admin           string    `db:"admin"`
	Asset           string    `db:"asset"`
	CollateralAsset string    `db:"collateral_asset"`
	Pool            string    `db:"pool"`
	Exchange        string    `db:"exchange"`
	Borrower        string    `db:"borrower"`
	LoanFee         string    `db:"loan_fee"`
	TrackedSupply   string    `db:"tracked_supply"`
	Initialized     bool      `db:"initialized"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *PostgresStateStore) Load(ctx context.Context) (*model.Treasury, error) {
	var row stateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT address, admin, asset, collateral_asset, pool, exchange, borrower,
		       loan_fee, tracked_supply, initialized, updated_at
		FROM treasury_state WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToState(&row)
}

func (r *PostgresStateStore) Save(ctx context.Context, t *model.Treasury) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO treasury_state (
			id, address, admin, asset, collateral_asset, pool, exchange, borrower,
			loan_fee, tracked_supply, initialized, updated_at
		) VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			admin = EXCLUDED.admin,
			asset = EXCLUDED.asset,
			collateral_asset = EXCLUDED.collateral_asset,
			pool = EXCLUDED.pool,
			exchange = EXCLUDED.exchange,
			borrower = EXCLUDED.borrower,
			loan_fee = EXCLUDED.loan_fee,
			tracked_supply = EXCLUDED.tracked_supply,
			initialized = EXCLUDED.initialized,
			updated_at = EXCLUDED.updated_at
	`, t.Address.Hex(), t.Admin.Hex(), t.Asset.Hex(), t.CollateralAsset.Hex(),
		t.Pool.Hex(), t.Exchange.Hex(), t.Borrower.Hex(),
		t.LoanFee.String(), t.TrackedSupply.String(), t.Initialized, t.UpdatedAt)
	return err
}

// Touch is satisfied by the cache layer; the durable row needs no
// retention management.
func (r *PostgresStateStore) Touch(ctx context.Context) error {
	return nil
}

func rowToState(row *stateRow) (*model.Treasury, error) {
	fee, ok := math.NewIntFromString(row.LoanFee)
	if !ok {
		return nil, fmt.Errorf("corrupt loan_fee %q", row.LoanFee)
	}
	supply, ok := math.NewIntFromString(row.TrackedSupply)
	if !ok {
		return nil, fmt.Errorf("corrupt tracked_supply %q", row.TrackedSupply)
	}
	return &model.Treasury{
		Address:         common.HexToAddress(row.Address),
		Admin:           common.HexToAddress(row.Admin),
		Asset:           common.HexToAddress(row.Asset),
		CollateralAsset: common.HexToAddress(row.CollateralAsset),
		Pool:            common.HexToAddress(row.Pool),
		Exchange:        common.HexToAddress(row.Exchange),
		Borrower:        common.HexToAddress(row.Borrower),
		LoanFee:         fee,
		TrackedSupply:   supply,
		Initialized:     row.Initialized,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func (r *PostgresStateStore) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS treasury_state (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			address TEXT NOT NULL,
			admin TEXT NOT NULL,
			asset TEXT NOT NULL,
			collateral_asset TEXT NOT NULL,
			pool TEXT NOT NULL,
			exchange TEXT NOT NULL,
			borrower TEXT NOT NULL,
			loan_fee TEXT NOT NULL,
			tracked_supply TEXT NOT NULL,
			initialized BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}
