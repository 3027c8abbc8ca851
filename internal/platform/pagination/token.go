package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cursor is the position after which the next page starts: the ordering value of the last
// document and its ID.
type Cursor struct {
	After string `json:"after"`
	ID    string `json:"id"`
}

// EncodeToken serialises the cursor into a base64 URL-safe page token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.ID == "" {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a token produced by EncodeToken. An empty token yields the zero cursor.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.ID == "" {
		return Cursor{}, fmt.Errorf("%w: missing document id", ErrInvalidPageToken)
	}
	return cursor, nil
}

// TimeCursor builds a token for listings ordered by a timestamp then document ID.
func TimeCursor(at time.Time, id string) (string, error) {
	return EncodeToken(Cursor{After: at.UTC().Format(time.RFC3339Nano), ID: id})
}

// DecodeTimeCursor reverses TimeCursor. ok is false for an empty token.
func DecodeTimeCursor(token string) (at time.Time, id string, ok bool, err error) {
	cursor, err := DecodeToken(token)
	if err != nil || cursor.ID == "" {
		return time.Time{}, "", false, err
	}
	at, err = time.Parse(time.RFC3339Nano, cursor.After)
	if err != nil {
		return time.Time{}, "", false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return at, cursor.ID, true, nil
}
