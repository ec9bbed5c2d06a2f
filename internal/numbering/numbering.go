// Package numbering mints human-readable business numbers (ASM-2025-016)
// for workflow aggregates. Generation is generate-then-insert: the caller
// reads the current sequence, formats a candidate, and attempts the insert;
// a unique-constraint collision under concurrent creation is resolved by
// regenerating and retrying a bounded number of times.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"claimtech_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// maxAttempts bounds the regenerate-and-retry loop.
	maxAttempts = 3
	// baseBackoff is the first retry delay; subsequent delays double.
	baseBackoff = 100 * time.Millisecond

	pgUniqueViolation = "23505"
)

// Aggregate number prefixes.
const (
	PrefixRequest     = "REQ"
	PrefixInspection  = "INS"
	PrefixAppointment = "APT"
	PrefixAssessment  = "ASM"
)

// Format renders a business number, e.g. Format("ASM", 2025, 16) = "ASM-2025-016".
func Format(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// InsertWithRetry runs fn, which is expected to generate a fresh number and
// attempt the insert. On a unique violation it backs off and retries with a
// regenerated number; any other error propagates unchanged. Exhausting all
// attempts surfaces a conflict error rather than the raw constraint failure.
func InsertWithRetry(ctx context.Context, entity string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}
		lastErr = err

		if attempt < maxAttempts {
			delay := baseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return apperr.Wrap(apperr.KindConflict, fmt.Sprintf("failed to allocate %s number", entity), lastErr)
}
