package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iago/career-agent/internal/domain"
)

const trackerSchema = `
CREATE TABLE IF NOT EXISTS tracker_records (
	id           uuid PRIMARY KEY,
	company      text NOT NULL,
	title        text NOT NULL DEFAULT '',
	status       text NOT NULL,
	date_applied date,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
)`

// PostgresStore keeps the tracker in a tracker_records table.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, timeout time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PostgresStore{pool: pool, timeout: timeout}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Migrate creates the tracker table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, trackerSchema); err != nil {
		return fmt.Errorf("migrate tracker_records: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMatch(ctx context.Context, companyOrHeadline string) (domain.RecordMatch, error) {
	patterns := likePatterns(SplitKeywords(companyOrHeadline))
	if len(patterns) == 0 {
		return domain.RecordMatch{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var id, company string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, company
		FROM tracker_records
		WHERE company ILIKE ANY($1)
		ORDER BY created_at ASC
		LIMIT 1
	`, patterns).Scan(&id, &company)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RecordMatch{}, nil
		}
		return domain.RecordMatch{}, fmt.Errorf("query tracker match: %w", err)
	}
	return domain.NewRecordMatch(id, company), nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, recordID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	command, err := s.pool.Exec(ctx, `
		UPDATE tracker_records
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, recordID, status)
	if err != nil {
		return fmt.Errorf("update tracker status: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, company, title string, appliedDate time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracker_records (id, company, title, status, date_applied)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), company, title, StatusApplied, appliedDate)
	if err != nil {
		return fmt.Errorf("insert tracker record: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePatterns(keywords []string) []string {
	patterns := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		patterns = append(patterns, "%"+likeEscaper.Replace(keyword)+"%")
	}
	return patterns
}
