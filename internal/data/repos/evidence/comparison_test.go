package evidence

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/research-evidence-backend/internal/data/repos/testutil"
	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
)

func TestGetOrCreateDocumentComparisonCanonicalizes(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewComparisonRepo(db, testutil.Logger(t))

	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")

	ab, err := repo.GetOrCreateDocumentComparison(dbc, a.ID, b.ID)
	require.NoError(t, err)
	ba, err := repo.GetOrCreateDocumentComparison(dbc, b.ID, a.ID)
	require.NoError(t, err)

	assert.Equal(t, ab.ID, ba.ID)
	assert.Less(t, ba.FirstID, ba.SecondID)
	assert.Equal(t, a.ID, ba.FirstID)
	assert.Equal(t, types.AnalysisPending, ba.AnalysisStatus)
	assert.Nil(t, ba.SimilarityDegree)

	var n int64
	require.NoError(t, db.Model(&types.DocumentComparison{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestGetOrCreateDocumentComparisonRejectsSelfPair(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewComparisonRepo(db, testutil.Logger(t))
	a := testutil.SeedDocument(t, ctx, db, "a")

	_, err := repo.GetOrCreateDocumentComparison(dbctx.Context{Ctx: ctx}, a.ID, a.ID)
	var pairErr *types.InvalidPairError
	require.True(t, errors.As(err, &pairErr))
	assert.Equal(t, "document", pairErr.Kind)

	var n int64
	require.NoError(t, db.Model(&types.DocumentComparison{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestGetOrCreateDocumentComparisonConcurrent(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewComparisonRepo(db, testutil.Logger(t))
	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")

	const workers = 16
	ids := make([]uint, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a.ID, b.ID
			if i%2 == 1 {
				x, y = y, x
			}
			row, err := repo.GetOrCreateDocumentComparison(dbctx.Context{Ctx: ctx}, x, y)
			errs[i] = err
			if row != nil {
				ids[i] = row.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var n int64
	require.NoError(t, db.Model(&types.DocumentComparison{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

// insertFirstOnCreate makes the next insert of rival's type lose a race: just
// before gorm issues it, rival is written through the same connection.
func insertFirstOnCreate(t *testing.T, db *gorm.DB, rival any) {
	t.Helper()
	fired := false
	err := db.Callback().Create().Before("gorm:create").Register("test:insert_rival_first", func(tx *gorm.DB) {
		if fired || reflect.TypeOf(tx.Statement.Dest) != reflect.TypeOf(rival) {
			return
		}
		fired = true
		if err := tx.Session(&gorm.Session{NewDB: true, SkipDefaultTransaction: true}).Create(rival).Error; err != nil {
			_ = tx.AddError(err)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Create().Remove("test:insert_rival_first") })
}

func TestGetOrCreateDocumentComparisonLostRace(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewComparisonRepo(db, testutil.Logger(t))
	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")

	rival := &types.DocumentComparison{
		FirstID:    a.ID,
		SecondID:   b.ID,
		Similarity: types.Similarity{AnalysisStatus: types.AnalysisPending},
	}
	insertFirstOnCreate(t, db, rival)

	got, err := repo.GetOrCreateDocumentComparison(dbctx.Context{Ctx: ctx}, b.ID, a.ID)
	require.NoError(t, err)
	require.NotZero(t, rival.ID)
	assert.Equal(t, rival.ID, got.ID)
	assert.Equal(t, a.ID, got.FirstID)

	var n int64
	require.NoError(t, db.Model(&types.DocumentComparison{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestGetOrCreateSectionComparisonLostRace(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewComparisonRepo(db, testutil.Logger(t))
	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")
	sa := testutil.SeedSections(t, ctx, db, a.ID, "alpha")
	sb := testutil.SeedSections(t, ctx, db, b.ID, "beta")
	parent, err := repo.GetOrCreateDocumentComparison(dbc, a.ID, b.ID)
	require.NoError(t, err)

	rival := &types.SectionComparison{
		ParentComparisonID: parent.ID,
		FirstSectionID:     sa[0].ID,
		SecondSectionID:    sb[0].ID,
		ElementID:          3,
		Similarity:         types.Similarity{AnalysisStatus: types.AnalysisPending},
	}
	insertFirstOnCreate(t, db, rival)

	got, err := repo.GetOrCreateSectionComparison(dbc, parent.ID, sb[0].ID, sa[0].ID, 9)
	require.NoError(t, err)
	require.NotZero(t, rival.ID)
	assert.Equal(t, rival.ID, got.ID)
	assert.EqualValues(t, 3, got.ElementID)

	var n int64
	require.NoError(t, db.Model(&types.SectionComparison{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestDocumentComparisonOrderCheckConstraint(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")

	row := &types.DocumentComparison{FirstID: b.ID, SecondID: a.ID, Similarity: types.Similarity{AnalysisStatus: types.AnalysisPending}}
	assert.Error(t, db.Create(row).Error)
}

func TestGetOrCreateSectionComparison(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewComparisonRepo(db, testutil.Logger(t))

	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")
	sa := testutil.SeedSections(t, ctx, db, a.ID, "alpha")
	sb := testutil.SeedSections(t, ctx, db, b.ID, "beta")
	parent, err := repo.GetOrCreateDocumentComparison(dbc, a.ID, b.ID)
	require.NoError(t, err)

	first, err := repo.GetOrCreateSectionComparison(dbc, parent.ID, sb[0].ID, sa[0].ID, 7)
	require.NoError(t, err)
	assert.Equal(t, sa[0].ID, first.FirstSectionID)
	assert.Equal(t, sb[0].ID, first.SecondSectionID)
	assert.EqualValues(t, 7, first.ElementID)

	// The pair is unique regardless of element: a second element sees the first row.
	again, err := repo.GetOrCreateSectionComparison(dbc, parent.ID, sa[0].ID, sb[0].ID, 9)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.EqualValues(t, 7, again.ElementID)

	_, err = repo.GetOrCreateSectionComparison(dbc, parent.ID, sa[0].ID, sa[0].ID, 7)
	assert.True(t, types.IsInvalidPair(err))
}

func TestFillDocumentScoreNeverOverwrites(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewComparisonRepo(db, testutil.Logger(t))

	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")
	row, err := repo.GetOrCreateDocumentComparison(dbc, a.ID, b.ID)
	require.NoError(t, err)

	filled, ok, err := repo.FillDocumentScore(dbc, row.ID, types.Similarity{
		SimilarityDegree:  testutil.PtrFloat(86.6),
		SimilarityVerdict: testutil.PtrString("close"),
		AnalysisStatus:    types.AnalysisCompleted,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, filled.SimilarityDegree)
	assert.InDelta(t, 86.6, *filled.SimilarityDegree, 0.001)
	assert.Equal(t, "close", *filled.SimilarityVerdict)
	assert.NotNil(t, filled.ComputedAt)

	second, ok, err := repo.FillDocumentScore(dbc, row.ID, types.Similarity{SimilarityDegree: testutil.PtrFloat(1)})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 86.6, *second.SimilarityDegree, 0.001)

	_, _, err = repo.FillDocumentScore(dbc, row.ID, types.Similarity{})
	assert.Error(t, err)
}

func TestListAccessors(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewComparisonRepo(db, testutil.Logger(t))

	a := testutil.SeedDocument(t, ctx, db, "a")
	b := testutil.SeedDocument(t, ctx, db, "b")
	c := testutil.SeedDocument(t, ctx, db, "c")
	sa := testutil.SeedSections(t, ctx, db, a.ID, "one", "two")
	sb := testutil.SeedSections(t, ctx, db, b.ID, "three")

	ab, err := repo.GetOrCreateDocumentComparison(dbc, a.ID, b.ID)
	require.NoError(t, err)
	_, err = repo.GetOrCreateDocumentComparison(dbc, c.ID, a.ID)
	require.NoError(t, err)
	_, err = repo.GetOrCreateSectionComparison(dbc, ab.ID, sa[0].ID, sb[0].ID, 1)
	require.NoError(t, err)
	_, err = repo.GetOrCreateSectionComparison(dbc, ab.ID, sa[1].ID, sb[0].ID, 2)
	require.NoError(t, err)

	byDoc, err := repo.ListByDocument(dbc, a.ID)
	require.NoError(t, err)
	assert.Len(t, byDoc, 2)

	bySection, err := repo.ListBySection(dbc, sb[0].ID)
	require.NoError(t, err)
	assert.Len(t, bySection, 2)

	byParent, err := repo.ListByParent(dbc, ab.ID)
	require.NoError(t, err)
	require.Len(t, byParent, 2)
	assert.EqualValues(t, 1, byParent[0].ElementID)

	found, err := repo.FindDocumentComparison(dbc, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ab.ID, found.ID)

	_, err = repo.GetDocumentComparison(dbc, 9999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
