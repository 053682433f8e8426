// Package relstore is the relational persistence layer backing account
// registration, channel registration, and the ban-persistence tables of
// spec.md §6, on top of a Postgres connection pool.
package relstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberd/emberd/irc/auth"
	"github.com/emberd/emberd/irc/bans"
)

// Store implements sasl.AccountLookup plus the account/channel/ban
// administration operations the OPER-only command family needs.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and checks the connection with a ping. It does not
// check that the tables this package uses exist; the schema is applied
// out-of-band by an operator (this package never runs DDL itself).
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("relstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("relstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// PasswordHash implements sasl.AccountLookup.
func (s *Store) PasswordHash(account string) (string, bool) {
	var hash string
	err := s.pool.QueryRow(context.Background(),
		`SELECT password_hash FROM accounts WHERE account_fold = $1`, account).Scan(&hash)
	return hash, err == nil
}

// ScramVerifier implements sasl.AccountLookup.
func (s *Store) ScramVerifier(account string) (storedKey, serverKey, salt []byte, iterCount int, ok bool) {
	err := s.pool.QueryRow(context.Background(),
		`SELECT scram_stored_key, scram_server_key, scram_salt, scram_iter_count
		   FROM accounts WHERE account_fold = $1`, account,
	).Scan(&storedKey, &serverKey, &salt, &iterCount)
	return storedKey, serverKey, salt, iterCount, err == nil
}

// AccountForCertFP implements sasl.AccountLookup.
func (s *Store) AccountForCertFP(fp string) (string, bool) {
	var account string
	err := s.pool.QueryRow(context.Background(),
		`SELECT account_fold FROM account_certfps WHERE certfp = $1`, fp).Scan(&account)
	return account, err == nil
}

// VerifyPassword implements sasl.AccountLookup by delegating to bcrypt.
func (s *Store) VerifyPassword(hash, plaintext string) bool {
	return auth.Verify(hash, plaintext)
}

// RegisterAccount inserts a freshly bcrypt-hashed account row. Called from
// the NickServ-equivalent REGISTER command once that surface exists.
func (s *Store) RegisterAccount(ctx context.Context, accountFold, displayName, plaintext string) error {
	hash, err := auth.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (account_fold, display_name, password_hash, registered_at)
		 VALUES ($1, $2, $3, $4)`, accountFold, displayName, hash, time.Now())
	return err
}

// RegisterChannel records channel ownership, for the ChanServ-equivalent
// REGISTER command.
func (s *Store) RegisterChannel(ctx context.Context, channelFold, founderAccount string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO channel_registrations (channel_fold, founder_account, registered_at)
		 VALUES ($1, $2, $3)`, channelFold, founderAccount, time.Now())
	return err
}

// ChannelFounder returns the registered founder account for channelFold,
// if the channel is registered at all.
func (s *Store) ChannelFounder(ctx context.Context, channelFold string) (string, bool) {
	var founder string
	err := s.pool.QueryRow(ctx,
		`SELECT founder_account FROM channel_registrations WHERE channel_fold = $1`, channelFold).Scan(&founder)
	return founder, err == nil
}

// PersistBan writes an X-line so it survives a restart; loaded back via
// LoadBans at startup into the matching in-memory bans.Table.
func (s *Store) PersistBan(ctx context.Context, e bans.Entry) error {
	var expires *time.Time
	if !e.ExpiresAt.IsZero() {
		expires = &e.ExpiresAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO xlines (kind, pattern, setter, reason, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kind, pattern) DO UPDATE SET reason = $4, expires_at = $6`,
		e.Kind.String(), e.Pattern, e.Setter, e.Reason, e.CreatedAt, expires)
	return err
}

// RemoveBan deletes a persisted X-line so it is not reloaded after restart.
func (s *Store) RemoveBan(ctx context.Context, kind, pattern string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM xlines WHERE kind = $1 AND pattern = $2`, kind, pattern)
	return err
}

// LoadBans returns every non-expired persisted X-line of the given kind,
// for Matrix startup to replay into the in-memory bans.Table.
func (s *Store) LoadBans(ctx context.Context, kind string) ([]bans.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pattern, setter, reason, created_at, expires_at FROM xlines
		   WHERE kind = $1 AND (expires_at IS NULL OR expires_at > now())`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bans.Entry
	for rows.Next() {
		var e bans.Entry
		var expires *time.Time
		if err := rows.Scan(&e.Pattern, &e.Setter, &e.Reason, &e.CreatedAt, &expires); err != nil {
			return nil, err
		}
		if expires != nil {
			e.ExpiresAt = *expires
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReputationScore returns an account's accumulated abuse-report score.
// The admission pipeline's spam stage does not call it.
func (s *Store) ReputationScore(ctx context.Context, account string) (int, error) {
	var score int
	err := s.pool.QueryRow(ctx,
		`SELECT score FROM reputation WHERE account_fold = $1`, account).Scan(&score)
	if err != nil {
		return 0, nil // unscored accounts default to zero, not an error
	}
	return score, nil
}
