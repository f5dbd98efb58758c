package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"quoteflow/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS venues (
	code TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS instruments (
	asset TEXT PRIMARY KEY,
	scale INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS markets (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	asset         TEXT NOT NULL REFERENCES instruments(asset),
	venue         TEXT NOT NULL REFERENCES venues(code),
	kind          TEXT NOT NULL,
	native_symbol TEXT NOT NULL,
	price_scale   INT NOT NULL DEFAULT 0,
	qty_scale     INT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT '',
	UNIQUE (asset, venue, kind)
);

CREATE TABLE IF NOT EXISTS market_quality (
	market_id     UUID PRIMARY KEY REFERENCES markets(id) ON DELETE CASCADE,
	vol_24h_usd   NUMERIC NOT NULL,
	liquidity_usd NUMERIC,
	score         DOUBLE PRECISION NOT NULL,
	as_of         TIMESTAMPTZ NOT NULL
);
`

// Postgres is the durable Store, backed by database/sql over the pgx
// driver. The schema is applied on open.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) EnsureVenue(ctx context.Context, code string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO venues (code) VALUES ($1) ON CONFLICT (code) DO NOTHING`, code)
	return err
}

func (p *Postgres) EnsureInstrument(ctx context.Context, asset string, scale int) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO instruments (asset, scale) VALUES ($1, $2)
		 ON CONFLICT (asset) DO NOTHING`, asset, scale)
	return err
}

func (p *Postgres) UpsertMarket(ctx context.Context, m Market) (Market, error) {
	row := p.db.QueryRowContext(ctx,
		`INSERT INTO markets (asset, venue, kind, native_symbol, price_scale, qty_scale, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (asset, venue, kind) DO UPDATE SET
			native_symbol = EXCLUDED.native_symbol,
			price_scale   = GREATEST(markets.price_scale, EXCLUDED.price_scale),
			qty_scale     = GREATEST(markets.qty_scale, EXCLUDED.qty_scale),
			status        = EXCLUDED.status
		 RETURNING id, price_scale, qty_scale`,
		m.Asset, m.Venue, string(m.Kind), m.NativeSymbol, m.PriceScale, m.QtyScale, m.Status)
	if err := row.Scan(&m.ID, &m.PriceScale, &m.QtyScale); err != nil {
		return Market{}, fmt.Errorf("upsert market %s/%s/%s: %w", m.Asset, m.Venue, m.Kind, err)
	}
	return m, nil
}

func (p *Postgres) FindMarket(ctx context.Context, asset, venue string, kind models.MarketKind) (*Market, error) {
	var m Market
	var kindStr string
	err := p.db.QueryRowContext(ctx,
		`SELECT id, asset, venue, kind, native_symbol, price_scale, qty_scale, status
		 FROM markets WHERE asset = $1 AND venue = $2 AND kind = $3`,
		asset, venue, string(kind)).
		Scan(&m.ID, &m.Asset, &m.Venue, &kindStr, &m.NativeSymbol, &m.PriceScale, &m.QtyScale, &m.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Kind = models.MarketKind(kindStr)
	return &m, nil
}

func (p *Postgres) ListMarkets(ctx context.Context) ([]Market, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, asset, venue, kind, native_symbol, price_scale, qty_scale, status
		 FROM markets ORDER BY asset, venue, kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Market
	for rows.Next() {
		var m Market
		var kindStr string
		if err := rows.Scan(&m.ID, &m.Asset, &m.Venue, &kindStr, &m.NativeSymbol, &m.PriceScale, &m.QtyScale, &m.Status); err != nil {
			return nil, err
		}
		m.Kind = models.MarketKind(kindStr)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteMarket(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM markets WHERE id = $1`, id)
	return err
}

func (p *Postgres) UpsertMarketQuality(ctx context.Context, q Quality) error {
	var liquidity interface{}
	if q.LiquidityUSD.Valid {
		liquidity = q.LiquidityUSD.Decimal.String()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO market_quality (market_id, vol_24h_usd, liquidity_usd, score, as_of)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (market_id) DO UPDATE SET
			vol_24h_usd   = EXCLUDED.vol_24h_usd,
			liquidity_usd = EXCLUDED.liquidity_usd,
			score         = EXCLUDED.score,
			as_of         = EXCLUDED.as_of`,
		q.MarketID, q.Vol24hUSD.String(), liquidity, q.Score, q.AsOf)
	return err
}

func (p *Postgres) Close() error { return p.db.Close() }
