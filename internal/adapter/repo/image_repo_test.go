package repo

import (
	"errors"
	"testing"
	"time"

	"imagebot/internal/domain"
)

type stubScanner struct {
	values []any
	err    error
}

func (s stubScanner) Scan(dest ...any) error {
	if s.err != nil {
		return s.err
	}
	if len(dest) != len(s.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range s.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *domain.ImageStatus:
			*d = v.(domain.ImageStatus)
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported destination type")
		}
	}
	return nil
}

func TestScanImage(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiry := created.Add(time.Hour)

	img, err := scanImage(stubScanner{values: []any{
		"img-1",
		"req-1",
		"temp/req-1/img-1.png",
		domain.ImageStatusGenerated,
		"http://localhost:8080/files/temp/req-1/img-1.png?expires=1&sig=x",
		expiry,
		created,
	}})
	if err != nil {
		t.Fatalf("scanImage returned error: %v", err)
	}
	if img.ID != "img-1" || img.RequestID != "req-1" {
		t.Fatalf("scanned image = %+v", img)
	}
	if img.Status != domain.ImageStatusGenerated {
		t.Fatalf("status = %s", img.Status)
	}
	if img.RetrievalURLExpiry == nil || !img.RetrievalURLExpiry.Equal(expiry) {
		t.Fatalf("expiry = %v", img.RetrievalURLExpiry)
	}
}

func TestScanImageNullExpiry(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	img, err := scanImage(stubScanner{values: []any{
		"img-1", "req-1", "temp/req-1/img-1.png", domain.ImageStatusDiscarded, "", nil, created,
	}})
	if err != nil {
		t.Fatalf("scanImage returned error: %v", err)
	}
	if img.RetrievalURLExpiry != nil {
		t.Fatalf("expiry = %v, want nil", img.RetrievalURLExpiry)
	}
}

func TestScanImagePropagatesError(t *testing.T) {
	scanErr := errors.New("scan failed")
	if _, err := scanImage(stubScanner{err: scanErr}); !errors.Is(err, scanErr) {
		t.Fatalf("scanImage error = %v, want %v", err, scanErr)
	}
}

func TestNullableString(t *testing.T) {
	if nullableString("") != nil {
		t.Fatal("empty string should map to nil")
	}
	if got := nullableString("x"); got == nil || *got != "x" {
		t.Fatalf("nullableString = %v", got)
	}
}
