package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type pageRow struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func TestTrimPageKeepsFullPageAndEncodesNext(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]pageRow, 4)
	for i := range rows {
		rows[i] = pageRow{CreatedAt: base.Add(time.Duration(i) * time.Minute), ID: uuid.New()}
	}

	page, next := TrimPage(rows, 3, func(r pageRow) Cursor {
		return Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}
	if next == "" {
		t.Fatal("expected a next cursor")
	}

	cursor, err := ParseCursor(next)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if cursor.ID != rows[2].ID || !cursor.CreatedAt.Equal(rows[2].CreatedAt) {
		t.Fatalf("cursor should key the last retained row, got %+v", cursor)
	}
}

func TestTrimPageFinalPageHasNoCursor(t *testing.T) {
	t.Parallel()

	rows := []pageRow{{CreatedAt: time.Now(), ID: uuid.New()}}
	page, next := TrimPage(rows, 3, func(r pageRow) Cursor {
		return Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	if len(page) != 1 || next != "" {
		t.Fatalf("expected final page without cursor, got %d rows cursor=%q", len(page), next)
	}
}

func TestNormalizeLimitBounds(t *testing.T) {
	t.Parallel()

	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("zero limit should default to %d, got %d", DefaultLimit, got)
	}
	if got := NormalizeLimit(1000); got != MaxLimit {
		t.Fatalf("oversized limit should cap at %d, got %d", MaxLimit, got)
	}
	if got := NormalizeLimit(7); got != 7 {
		t.Fatalf("in-range limit should pass through, got %d", got)
	}
}
