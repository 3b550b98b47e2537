// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package middleware

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ghosttype/ghosttype/config"
)

// PostgresTokenStore is the source-of-record tier: a token found here
// but not yet in Redis gets cached back into Redis by the caller so
// the next lookup for that token skips Postgres entirely.
type PostgresTokenStore struct {
	db    *sql.DB
	query string
}

func NewPostgresTokenStore(cfg *config.Config) (*PostgresTokenStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Auth.Postgres.Host,
		cfg.Auth.Postgres.Port,
		cfg.Auth.Postgres.User,
		cfg.Auth.Postgres.Password,
		cfg.Auth.Postgres.DBName,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %v", err)
	}

	return &PostgresTokenStore{db: db, query: cfg.Auth.Postgres.Query}, nil
}

func (s *PostgresTokenStore) ValidateToken(token string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(s.query, token).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CacheToken is a no-op: Postgres is the record of truth here, not a
// cache tier, so there is nothing for it to write.
func (s *PostgresTokenStore) CacheToken(token string) error {
	return nil
}

func (s *PostgresTokenStore) Close() error {
	return s.db.Close()
}
