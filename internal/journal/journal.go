package journal

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id            TEXT PRIMARY KEY,
	cycle_started TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	instrument    TEXT NOT NULL,
	market        TEXT NOT NULL,
	source        TEXT NOT NULL,
	kind          TEXT NOT NULL,
	side          TEXT NOT NULL,
	score         DOUBLE PRECISION NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	entry         DOUBLE PRECISION NOT NULL,
	stop          DOUBLE PRECISION NOT NULL,
	tp1           DOUBLE PRECISION NOT NULL,
	tp2           DOUBLE PRECISION NOT NULL,
	risk          DOUBLE PRECISION NOT NULL DEFAULT 0,
	risk_pct      DOUBLE PRECISION NOT NULL DEFAULT 0,
	tp1_pct       DOUBLE PRECISION NOT NULL DEFAULT 0,
	tp2_pct       DOUBLE PRECISION NOT NULL DEFAULT 0,
	conditional   BOOLEAN NOT NULL,
	entry_rule    TEXT NOT NULL,
	rationale     TEXT NOT NULL
);
ALTER TABLE proposals
	ADD COLUMN IF NOT EXISTS risk     DOUBLE PRECISION NOT NULL DEFAULT 0,
	ADD COLUMN IF NOT EXISTS risk_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	ADD COLUMN IF NOT EXISTS tp1_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
	ADD COLUMN IF NOT EXISTS tp2_pct  DOUBLE PRECISION NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS proposals_created_at_idx ON proposals (created_at DESC);
`

const insertProposal = `
INSERT INTO proposals (
	id, cycle_started, created_at, instrument, market, source, kind, side,
	score, price, entry, stop, tp1, tp2, risk, risk_pct, tp1_pct, tp2_pct,
	conditional, entry_rule, rationale
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
ON CONFLICT (id) DO NOTHING`

const selectRecent = `
SELECT id, created_at, instrument, market, source, kind, side,
       score, price, entry, stop, tp1, tp2, risk, risk_pct, tp1_pct, tp2_pct,
       conditional, entry_rule, rationale
FROM proposals
ORDER BY created_at DESC
LIMIT $1`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Journal пишет прошедшие фильтр предложения в Postgres.
// Это архив: на отбор в следующих циклах он не влияет.
type Journal struct {
	tx db.TxManager
}

func New(tx db.TxManager) *Journal {
	return &Journal{tx: tx}
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.tx.Conn().Exec(ctx, schema); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}
	return nil
}

func (j *Journal) Notify(ctx context.Context, report models.CycleReport) error {
	if report.Total() == 0 {
		return nil
	}
	return j.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return insertReport(ctxTx, tx, report)
	})
}

// Recent: последние limit записей, новые первыми.
func (j *Journal) Recent(ctx context.Context, limit int) ([]models.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.tx.Conn().Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()

	var out []models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanProposal: порядок колонок как в selectRecent.
func scanProposal(row rowScanner) (models.Proposal, error) {
	var (
		p            models.Proposal
		market, kind string
		side         string
	)
	if err := row.Scan(
		&p.ID, &p.CreatedAt, &p.Instrument, &market, &p.Source, &kind, &side,
		&p.Score, &p.Price, &p.Plan.Entry, &p.Plan.Stop, &p.Plan.TP1, &p.Plan.TP2,
		&p.Plan.Risk, &p.Plan.RiskPct, &p.Plan.TP1Pct, &p.Plan.TP2Pct,
		&p.Plan.Conditional, &p.Plan.EntryRule, &p.Rationale,
	); err != nil {
		return models.Proposal{}, fmt.Errorf("journal scan: %w", err)
	}
	p.Market = models.Market(market)
	p.Kind = models.Kind(kind)
	p.Side = models.Side(side)
	return p, nil
}

func insertReport(ctx context.Context, e execer, report models.CycleReport) error {
	for _, m := range report.Markets {
		for _, p := range report.Proposals[m] {
			if _, err := e.Exec(ctx, insertProposal, proposalArgs(report.StartedAt, p)...); err != nil {
				return fmt.Errorf("insert %s: %w", p.Key(), err)
			}
		}
	}
	return nil
}

func proposalArgs(cycle time.Time, p models.Proposal) []any {
	return []any{
		p.ID, cycle, p.CreatedAt, p.Instrument, string(p.Market), p.Source, string(p.Kind), string(p.Side),
		p.Score, p.Price, p.Plan.Entry, p.Plan.Stop, p.Plan.TP1, p.Plan.TP2,
		p.Plan.Risk, p.Plan.RiskPct, p.Plan.TP1Pct, p.Plan.TP2Pct,
		p.Plan.Conditional, p.Plan.EntryRule, p.Rationale,
	}
}
