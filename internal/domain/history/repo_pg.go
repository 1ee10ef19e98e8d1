package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerLockKey is the transaction-scoped advisory lock that serializes
// appends across every process sharing the database.
const ledgerLockKey int64 = 0x7472616e73

const historyCols = `id, abha_id, source_system, source_code, target_system, target_code,
	snomed_ct_code, loinc_code, created_at`

type ledgerPG struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewLedgerPG returns a Ledger stored in the translation_history table.
func NewLedgerPG(pool *pgxpool.Pool) Ledger {
	return &ledgerPG{pool: pool, now: time.Now}
}

func (r *ledgerPG) Append(ctx context.Context, e Entry) (string, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM translation_history`).Scan(&count); err != nil {
			return err
		}

		e.ID = FormatID(count + 1)
		e.Timestamp = r.now().UTC()
		_, err := tx.Exec(ctx, `
			INSERT INTO translation_history (position, id, abha_id, source_system, source_code,
				target_system, target_code, snomed_ct_code, loinc_code, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			count+1, e.ID, e.ABHAID, e.SourceSystem, e.SourceCode,
			e.TargetSystem, e.TargetCode, e.SNOMEDCode, e.LOINCCode, e.Timestamp)
		return err
	})
	if err != nil {
		return "", storageErr("append history", err)
	}
	return e.ID, nil
}

func (r *ledgerPG) ListBy(ctx context.Context, abhaID string) ([]*Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+historyCols+` FROM translation_history WHERE abha_id = $1 ORDER BY position`, abhaID)
	if err != nil {
		return nil, storageErr("list history", err)
	}
	defer rows.Close()

	items := make([]*Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ABHAID, &e.SourceSystem, &e.SourceCode,
			&e.TargetSystem, &e.TargetCode, &e.SNOMEDCode, &e.LOINCCode, &e.Timestamp); err != nil {
			return nil, storageErr("scan history", err)
		}
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate history", err)
	}
	return items, nil
}
