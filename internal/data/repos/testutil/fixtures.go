package testutil

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, title string) *types.EvidenceDocument {
	tb.Helper()
	d := &types.EvidenceDocument{
		OwnerID:       1,
		PeriodID:      1,
		DeliverableID: 1,
		Title:         title,
		StorageKey:    "/evidence/" + title + ".txt",
		MimeType:      "text/plain",
		Status:        types.DocumentStatusSubmitted,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedSections(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID uint, contents ...string) []*types.Section {
	tb.Helper()
	out := make([]*types.Section, 0, len(contents))
	for i, c := range contents {
		s := &types.Section{
			DocumentID: documentID,
			Sequence:   i,
			Title:      fmt.Sprintf("Section %d", i+1),
			Content:    c,
		}
		if err := tx.WithContext(ctx).Create(s).Error; err != nil {
			tb.Fatalf("seed section: %v", err)
		}
		out = append(out, s)
	}
	return out
}

func PtrFloat(v float64) *float64 { return &v }

func PtrString(v string) *string { return &v }
