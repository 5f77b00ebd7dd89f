package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor indicates a cursor token that could not be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is a decoded keyset position: the timestamp and id of the last item seen.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// EncodeCursor renders c as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw := c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}

	return Cursor{Timestamp: parsed, ID: id}, nil
}
