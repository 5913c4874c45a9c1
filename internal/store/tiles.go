package store

import (
	"context"
	"time"

	"github.com/cesargomez89/tilevault/internal/domain"
)

// GetTile returns the stored bytes for a tile. found is false when the tile
// is absent; absence is not an error.
func (db *DB) GetTile(ctx context.Context, key domain.TileKey) (data []byte, found bool, err error) {
	err = db.GetContext(ctx, &data,
		`SELECT data FROM tiles WHERE source = ? AND z = ? AND x = ? AND y = ?`,
		key.Source, key.Z, key.X, key.Y)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (db *DB) HasTile(ctx context.Context, key domain.TileKey) (bool, error) {
	var exists bool
	err := db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM tiles WHERE source = ? AND z = ? AND x = ? AND y = ?)`,
		key.Source, key.Z, key.X, key.Y)
	return exists, err
}

// PutTile upserts a tile; a second put for the same key replaces the bytes.
func (db *DB) PutTile(ctx context.Context, key domain.TileKey, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tiles (source, z, x, y, data, size, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, z, x, y) DO UPDATE SET data = excluded.data, size = excluded.size, updated_at = excluded.updated_at
	`, key.Source, key.Z, key.X, key.Y, data, len(data), time.Now().UnixMilli())
	return err
}

// DeleteTileRange removes every tile of source at r.Z inside the inclusive
// rectangle and returns the number of rows removed.
func (db *DB) DeleteTileRange(ctx context.Context, source string, r domain.TileRange) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM tiles WHERE source = ? AND z = ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?`,
		source, r.Z, r.MinX, r.MaxX, r.MinY, r.MaxY)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) TileStats(ctx context.Context) ([]domain.SourceStats, error) {
	type statsRow struct {
		Source     string `db:"source"`
		TileCount  int64  `db:"tile_count"`
		TotalBytes int64  `db:"total_bytes"`
		OldestMs   int64  `db:"oldest_ms"`
		NewestMs   int64  `db:"newest_ms"`
	}

	var rows []statsRow
	err := db.SelectContext(ctx, &rows, `
		SELECT source,
			COUNT(*) AS tile_count,
			COALESCE(SUM(size), 0) AS total_bytes,
			MIN(updated_at) AS oldest_ms,
			MAX(updated_at) AS newest_ms
		FROM tiles
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.SourceStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, domain.SourceStats{
			Source:     r.Source,
			TileCount:  r.TileCount,
			TotalBytes: r.TotalBytes,
			Oldest:     time.UnixMilli(r.OldestMs).UTC(),
			Newest:     time.UnixMilli(r.NewestMs).UTC(),
		})
	}
	return stats, nil
}

func (db *DB) CountTiles(ctx context.Context) (int64, error) {
	var n int64
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tiles`)
	return n, err
}
