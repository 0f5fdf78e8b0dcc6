package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/dshills/juris/internal/review"
)

// ErrNotFound is returned when a review does not exist.
var ErrNotFound = eris.New("review not found")

const memoryPath = ":memory:"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS reviews (
		id             TEXT PRIMARY KEY,
		contract_id    TEXT NOT NULL DEFAULT '',
		contract_title TEXT NOT NULL DEFAULT '',
		contract_type  TEXT NOT NULL,
		pages          INTEGER NOT NULL DEFAULT 0,
		total_clauses  INTEGER NOT NULL DEFAULT 0,
		risky_clauses  INTEGER NOT NULL DEFAULT 0,
		tokens_used    INTEGER NOT NULL DEFAULT 0,
		success_rate   REAL NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		result         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_contract_type ON reviews (contract_type)`,
}

// Store is a SQLite-backed review repository.
type Store struct {
	db *sql.DB
}

// ReviewSummary is one row of a review listing.
type ReviewSummary struct {
	ID            string    `json:"id"`
	ContractID    string    `json:"contract_id"`
	ContractTitle string    `json:"contract_title"`
	ContractType  string    `json:"contract_type"`
	TotalClauses  int       `json:"total_clauses"`
	RiskyClauses  int       `json:"risky_clauses"`
	SuccessRate   float64   `json:"success_rate"`
	CreatedAt     time.Time `json:"created_at"`
}

// Totals aggregates every stored review.
type Totals struct {
	Contracts    int            `json:"contracts"`
	Pages        int            `json:"pages"`
	Clauses      int            `json:"clauses"`
	RiskyClauses int            `json:"risky_clauses"`
	TokensUsed   int            `json:"tokens_used"`
	ByType       map[string]int `json:"contracts_by_type"`
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrap(err, "creating store directory")
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, eris.Wrap(err, "opening store")
	}
	// one connection: sqlite serializes writers, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "migrating store")
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReview inserts r. Saving the same ID twice is an error.
func (s *Store) SaveReview(ctx context.Context, r *review.Result) error {
	if r == nil || r.ID == "" {
		return eris.New("review has no id")
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "encoding review")
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO reviews
		(id, contract_id, contract_title, contract_type, pages, total_clauses, risky_clauses, tokens_used, success_rate, created_at, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ContractID, r.ContractTitle, string(r.ContractType), r.Pages,
		r.Analytics.TotalClauses, r.Analytics.RiskyClauses, r.Analytics.TokensUsed, r.Analytics.SuccessRate,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return eris.Wrapf(err, "saving review %s", r.ID)
	}
	return nil
}

// GetReview loads the review with id.
func (s *Store) GetReview(ctx context.Context, id string) (*review.Result, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM reviews WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "review %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "loading review %s", id)
	}
	var r review.Result
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, eris.Wrapf(err, "decoding review %s", id)
	}
	return &r, nil
}

// ListReviews returns up to limit reviews, newest first. A limit <= 0
// returns all of them.
func (s *Store) ListReviews(ctx context.Context, limit int) ([]ReviewSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, contract_id, contract_title, contract_type,
		total_clauses, risky_clauses, success_rate, created_at
		FROM reviews ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "listing reviews")
	}
	defer rows.Close()

	var out []ReviewSummary
	for rows.Next() {
		var (
			rs      ReviewSummary
			created string
		)
		if err := rows.Scan(&rs.ID, &rs.ContractID, &rs.ContractTitle, &rs.ContractType,
			&rs.TotalClauses, &rs.RiskyClauses, &rs.SuccessRate, &created); err != nil {
			return nil, eris.Wrap(err, "scanning review row")
		}
		rs.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, eris.Wrapf(err, "parsing created_at of review %s", rs.ID)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "listing reviews")
	}
	return out, nil
}

// Totals aggregates every stored review.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	t := Totals{ByType: map[string]int{}}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(pages), 0), COALESCE(SUM(total_clauses), 0),
		COALESCE(SUM(risky_clauses), 0), COALESCE(SUM(tokens_used), 0)
		FROM reviews`).Scan(&t.Contracts, &t.Pages, &t.Clauses, &t.RiskyClauses, &t.TokensUsed)
	if err != nil {
		return Totals{}, eris.Wrap(err, "computing totals")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT contract_type, COUNT(*) FROM reviews GROUP BY contract_type`)
	if err != nil {
		return Totals{}, eris.Wrap(err, "counting reviews by type")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ct string
			n  int
		)
		if err := rows.Scan(&ct, &n); err != nil {
			return Totals{}, eris.Wrap(err, "scanning type count")
		}
		t.ByType[ct] = n
	}
	if err := rows.Err(); err != nil {
		return Totals{}, eris.Wrap(err, "counting reviews by type")
	}
	return t, nil
}
