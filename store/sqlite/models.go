package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Timestamps are stored as unix nanoseconds so range predicates and ORDER BY
// behave correctly on INTEGER columns.

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func toNullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

// jsonText marshals v to a JSON string for a TEXT column. Nil-ish values
// produce the given fallback so NOT NULL defaults hold.
func jsonText(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

// fromJSONText unmarshals a TEXT column into dest, ignoring empty strings.
func fromJSONText(s string, dest any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), dest) //nolint:errcheck // best-effort
}

// nullString returns a NULL for empty strings.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
