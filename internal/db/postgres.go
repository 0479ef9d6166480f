// Package db is the pgx-backed store for assets, history rows and the
// materialized ranking view.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/inspect-gateway/internal/identity"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside runtime images that do not ship the .sql file.
//
//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool and verifies the database is
// reachable.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	return nil
}

const assetColumns = `asset_id, unique_id, ms, d, paint_seed, paint_index,
	paint_wear, def_index, quality, rarity, origin, custom_name, quest_id,
	reason, music_index, ent_index, is_stattrak, is_souvenir, stickers,
	keychains, killeater_score_type, killeater_value, pet_index, inventory,
	drop_reason, created_at, updated_at`

// GetAsset reads one asset by primary key. Returns (nil, nil) when the asset
// is unknown.
func (s *Store) GetAsset(ctx context.Context, assetID int64) (*models.Asset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE asset_id = $1`, assetID)
	return scanAsset(row)
}

// LatestByUniqueID returns the most recently updated asset sharing the
// content hash, excluding excludeAssetID. Used to decide whether a fresh
// observation warrants a history row. Returns (nil, nil) when there is no
// prior observation.
func (s *Store) LatestByUniqueID(ctx context.Context, uniqueID string, excludeAssetID int64) (*models.Asset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets
		 WHERE unique_id = $1 AND asset_id <> $2
		 ORDER BY updated_at DESC LIMIT 1`, uniqueID, excludeAssetID)
	return scanAsset(row)
}

// SaveInspection upserts the asset and, when hist is non-nil, appends the
// history row in the same transaction.
func (s *Store) SaveInspection(ctx context.Context, asset *models.Asset, hist *models.History) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stickers, keychains, err := encodeDecorations(asset.Stickers, asset.Keychains)
	if err != nil {
		return err
	}

	upsertSQL := `
		INSERT INTO assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, NOW(), NOW())
		ON CONFLICT (asset_id) DO UPDATE SET
			unique_id = EXCLUDED.unique_id,
			ms = EXCLUDED.ms,
			d = EXCLUDED.d,
			paint_seed = EXCLUDED.paint_seed,
			paint_index = EXCLUDED.paint_index,
			paint_wear = EXCLUDED.paint_wear,
			def_index = EXCLUDED.def_index,
			quality = EXCLUDED.quality,
			rarity = EXCLUDED.rarity,
			origin = EXCLUDED.origin,
			custom_name = EXCLUDED.custom_name,
			quest_id = EXCLUDED.quest_id,
			reason = EXCLUDED.reason,
			music_index = EXCLUDED.music_index,
			ent_index = EXCLUDED.ent_index,
			is_stattrak = EXCLUDED.is_stattrak,
			is_souvenir = EXCLUDED.is_souvenir,
			stickers = EXCLUDED.stickers,
			keychains = EXCLUDED.keychains,
			killeater_score_type = EXCLUDED.killeater_score_type,
			killeater_value = EXCLUDED.killeater_value,
			pet_index = EXCLUDED.pet_index,
			inventory = EXCLUDED.inventory,
			drop_reason = EXCLUDED.drop_reason,
			updated_at = NOW();
	`
	_, err = tx.Exec(ctx, upsertSQL,
		asset.AssetID, asset.UniqueID, identity.SignedID(asset.Ms), asset.D,
		asset.PaintSeed, asset.PaintIndex, asset.PaintWear, asset.DefIndex,
		asset.Quality, asset.Rarity, asset.Origin, asset.CustomName,
		asset.QuestID, asset.Reason, asset.MusicIndex, asset.EntIndex,
		asset.IsStattrak, asset.IsSouvenir, stickers, keychains,
		asset.KilleaterScoreType, asset.KilleaterValue, asset.PetIndex,
		asset.Inventory, asset.DropReason,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	if hist != nil {
		hs, hk, err := encodeDecorations(hist.Stickers, hist.Keychains)
		if err != nil {
			return err
		}
		phs, phk, err := encodeDecorations(hist.PrevStickers, hist.PrevKeychains)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO history
				(unique_id, type, asset_id, prev_asset_id, ms, prev_ms,
				 stickers, prev_stickers, keychains, prev_keychains)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
		`, hist.UniqueID, hist.Type, hist.AssetID, hist.PrevAssetID,
			identity.SignedID(hist.Ms), identity.SignedID(hist.PrevMs),
			hs, phs, hk, phk)
		if err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetRanking reads the ranking row for a content hash. Returns (nil, nil)
// when the view has not picked up the asset yet.
func (s *Store) GetRanking(ctx context.Context, uniqueID string) (*models.Ranking, error) {
	var r models.Ranking
	err := s.pool.QueryRow(ctx, `
		SELECT unique_id, low_rank, high_rank, global_low, global_high, total_count
		FROM rankings WHERE unique_id = $1
	`, uniqueID).Scan(&r.UniqueID, &r.LowRank, &r.HighRank, &r.GlobalLow,
		&r.GlobalHigh, &r.TotalCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RefreshRankings rebuilds the materialized view. Normally driven by an
// external operator on a schedule; exposed here for bootstrap and tooling.
func (s *Store) RefreshRankings(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY rankings`)
	return err
}

// DeleteDuplicates removes assets whose unique_id collides with a row that
// has a larger asset_id, keeping the newer row. Returns how many rows were
// deleted.
func (s *Store) DeleteDuplicates(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM assets a
		USING assets b
		WHERE a.unique_id = b.unique_id
		  AND a.asset_id < b.asset_id
		  AND a.ms = b.ms
		  AND a.d = b.d;
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var a models.Asset
	var ms int64
	var stickers, keychains []byte
	err := row.Scan(
		&a.AssetID, &a.UniqueID, &ms, &a.D, &a.PaintSeed, &a.PaintIndex,
		&a.PaintWear, &a.DefIndex, &a.Quality, &a.Rarity, &a.Origin,
		&a.CustomName, &a.QuestID, &a.Reason, &a.MusicIndex, &a.EntIndex,
		&a.IsStattrak, &a.IsSouvenir, &stickers, &keychains,
		&a.KilleaterScoreType, &a.KilleaterValue, &a.PetIndex, &a.Inventory,
		&a.DropReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Ms = identity.UnsignedID(ms)
	if err := json.Unmarshal(stickers, &a.Stickers); err != nil {
		return nil, fmt.Errorf("corrupt stickers column for asset %d: %w", a.AssetID, err)
	}
	if err := json.Unmarshal(keychains, &a.Keychains); err != nil {
		return nil, fmt.Errorf("corrupt keychains column for asset %d: %w", a.AssetID, err)
	}
	return &a, nil
}

func encodeDecorations(stickers []models.Sticker, keychains []models.Keychain) ([]byte, []byte, error) {
	if stickers == nil {
		stickers = []models.Sticker{}
	}
	if keychains == nil {
		keychains = []models.Keychain{}
	}
	s, err := json.Marshal(stickers)
	if err != nil {
		return nil, nil, err
	}
	k, err := json.Marshal(keychains)
	if err != nil {
		return nil, nil, err
	}
	return s, k, nil
}
