package pagination

import (
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultPageSize, params.PageSize)
	}
	if params.PageToken != "" {
		t.Fatalf("expected empty token, got %q", params.PageToken)
	}
}

func TestParseRejectsOutOfRangePageSize(t *testing.T) {
	for _, raw := range []string{"0", "-1", "101", "abc"} {
		_, err := Parse(url.Values{"pageSize": {raw}}, Options{})
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestParseRejectsMalformedToken(t *testing.T) {
	_, err := Parse(url.Values{"pageToken": {"%%%"}}, Options{})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{PlacedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), ID: "ord_01"}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	params, err := Parse(url.Values{"pageToken": {token}, "pageSize": {"5"}}, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	decoded, err := DecodeToken(params.PageToken)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.PlacedAt.Equal(cursor.PlacedAt) || decoded.ID != cursor.ID {
		t.Fatalf("expected %+v, got %+v", cursor, decoded)
	}
	if params.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", params.PageSize)
	}
}

func TestDecodeTokenRejectsUnknownVersion(t *testing.T) {
	token := base64.RawURLEncoding.EncodeToString([]byte(`{"v":2,"p":0,"i":"ord_1"}`))
	if _, err := DecodeToken(token); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
	missingID := base64.RawURLEncoding.EncodeToString([]byte(`{"v":1,"p":0}`))
	if _, err := DecodeToken(missingID); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken for missing id, got %v", err)
	}
}

func TestCursorBefore(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cursor := Cursor{PlacedAt: at, ID: "ord_m"}

	if !cursor.Before(at.Add(-time.Second), "ord_z") {
		t.Fatalf("older order should follow the cursor")
	}
	if cursor.Before(at.Add(time.Second), "ord_a") {
		t.Fatalf("newer order should not follow the cursor")
	}
	if !cursor.Before(at, "ord_a") {
		t.Fatalf("same timestamp with smaller id should follow the cursor")
	}
	if cursor.Before(at, "ord_m") {
		t.Fatalf("cursor row itself must be excluded")
	}
	if !(Cursor{}).Before(at, "ord_m") {
		t.Fatalf("zero cursor admits every row")
	}
}

func TestNormalizePageSize(t *testing.T) {
	cases := map[int]int{0: DefaultPageSize, -3: DefaultPageSize, 7: 7, 1000: DefaultMaxPageSize}
	for in, want := range cases {
		if got := NormalizePageSize(in); got != want {
			t.Fatalf("NormalizePageSize(%d) = %d, want %d", in, got, want)
		}
	}
}
