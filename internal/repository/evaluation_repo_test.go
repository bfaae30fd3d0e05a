package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bodylens/bodylens-go-api/internal/models"
)

func setupEvaluationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "evaluations.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Evaluation{}))
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestEvaluationRepositoryCreateAndList(t *testing.T) {
	db := setupEvaluationTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := models.Evaluation{
			URL:       fmt.Sprintf("https://example.com/%d.jpg", i),
			UserID:    "alice",
			FinalProb: 0.5 + float64(i)/10,
			Votes:     8 + i,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, &entry))
		require.NotZero(t, entry.ID)
	}
	require.NoError(t, repo.Create(ctx, &models.Evaluation{URL: "https://example.com/x.jpg", UserID: "bob", Intervention: true}))

	items, total, err := repo.List(ctx, EvaluationFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	require.Equal(t, "https://example.com/2.jpg", items[0].URL, "newest first")

	items, total, err = repo.List(ctx, EvaluationFilter{InterventionOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "bob", items[0].UserID)
}

func TestEvaluationRepositoryPagination(t *testing.T) {
	db := setupEvaluationTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &models.Evaluation{
			URL:       fmt.Sprintf("https://example.com/%d.jpg", i),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	page, total, err := repo.List(ctx, EvaluationFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	require.Equal(t, "https://example.com/2.jpg", page[0].URL)
}
