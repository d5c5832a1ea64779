package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHistoryCursorRoundTrip(t *testing.T) {
	original := HistoryCursor{
		CreatedAt: time.Date(2026, time.October, 2, 9, 30, 15, 123456000, time.UTC),
		ID:        uuid.MustParse("3f1c1a52-8f53-4c86-9a58-0f0f3e1b7d21"),
	}

	decoded, err := DecodeHistoryCursor(original.Encode())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) || decoded.ID != original.ID {
		t.Fatalf("expected %+v, got %+v", original, decoded)
	}
}

func TestDecodeHistoryCursor(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantNil bool
		wantErr bool
	}{
		{name: "empty token starts from the newest entry", token: "  ", wantNil: true},
		{name: "not base64", token: "%%%", wantErr: true},
		{name: "missing separator", token: "MTIzNDU", wantErr: true},
		{name: "bad uuid", token: "MTIzOm5vdC1hLXV1aWQ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeHistoryCursor(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCursor) {
					t.Fatalf("expected ErrInvalidCursor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil && got != nil {
				t.Fatalf("expected nil cursor, got %+v", got)
			}
		})
	}
}

func TestNormalizeLimit(t *testing.T) {
	tests := map[int]int{0: 20, -4: 20, 15: 15, 100: 100, 500: 100}
	for in, want := range tests {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
