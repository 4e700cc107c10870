package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmaslov/passage-search/internal/core/domain"
)

// PassageRepository reads chunked passages written by the external ingestion
// subsystem. The engine never writes passage rows; the table is owned by the
// ingestion side and consumed here in corpus-sized batches.
type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the passages table when the ingestion side has not run
// yet, so a fresh environment starts clean.
func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS passages (
	corpus_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	page TEXT NOT NULL DEFAULT '',
	section TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (corpus_id, position)
);

CREATE INDEX IF NOT EXISTS idx_passages_corpus ON passages(corpus_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ListByCorpus returns every passage of one corpus in ingestion order. The
// index builder depends on that ordering for deterministic tie-breaks.
func (r *PassageRepository) ListByCorpus(ctx context.Context, corpusID string) ([]domain.Passage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT content, source, page, section, metadata
FROM passages
WHERE corpus_id = $1
ORDER BY position ASC
`, corpusID)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var passage domain.Passage
		var metadataRaw []byte
		if err := rows.Scan(&passage.Content, &passage.Source, &passage.Page, &passage.Section, &metadataRaw); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &passage.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal passage metadata: %w", err)
			}
		}
		passages = append(passages, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return passages, nil
}

// ListCorpusIDs enumerates corpora present in storage, used by the worker to
// warm every index at startup.
func (r *PassageRepository) ListCorpusIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT corpus_id FROM passages ORDER BY corpus_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query corpus ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan corpus id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus ids: %w", err)
	}
	return ids, nil
}
