package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const tokenVersion = 1

// tokenBody is the wire form of a Cursor. Tokens are opaque to clients; the version lets the
// layout change without misreading tokens issued before a deploy.
type tokenBody struct {
	Version  int    `json:"v"`
	PlacedAt int64  `json:"p"`
	ID       string `json:"i"`
}

// EncodeToken renders cursor as a URL-safe page token. The first page has the empty token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.IsZero() {
		return "", nil
	}
	data, err := json.Marshal(tokenBody{
		Version:  tokenVersion,
		PlacedAt: cursor.PlacedAt.UTC().UnixNano(),
		ID:       cursor.ID,
	})
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken reverses EncodeToken. Any token it did not produce fails with ErrInvalidPageToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: not base64", ErrInvalidPageToken)
	}
	var body tokenBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed", ErrInvalidPageToken)
	}
	switch {
	case body.Version != tokenVersion:
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidPageToken, body.Version)
	case strings.TrimSpace(body.ID) == "":
		return Cursor{}, fmt.Errorf("%w: missing id", ErrInvalidPageToken)
	}
	return Cursor{PlacedAt: time.Unix(0, body.PlacedAt).UTC(), ID: body.ID}, nil
}
