package photo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oracle-health/oracle-backend/internal/models"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * 24 * time.Hour)
}

func TestIndexAnalysesByPhotoMapsEveryID(t *testing.T) {
	a1 := models.PhotoAnalysis{ID: "a1", PhotoIDs: []string{"p1", "p2"}}
	a2 := models.PhotoAnalysis{ID: "a2", PhotoIDs: []string{"p3"}}
	idx := indexAnalysesByPhoto([]models.PhotoAnalysis{a1, a2})
	require.Contains(t, idx, "p1")
	assert.Equal(t, "a1", idx["p1"].ID)
	assert.Equal(t, "a1", idx["p2"].ID)
	assert.Equal(t, "a2", idx["p3"].ID)
}

func TestImportanceScoreRewardsRedFlagsAndWorseningTrend(t *testing.T) {
	plain := importanceScore(0, 0, models.PhotoUpload{}, models.PhotoAnalysis{})

	withRedFlags := importanceScore(0, 0, models.PhotoUpload{}, models.PhotoAnalysis{
		ID:           "a1",
		AnalysisData: map[string]any{"red_flags": []any{"bleeding"}},
	})
	assert.Greater(t, withRedFlags, plain, "expected red flags to increase importance")

	withWorsening := importanceScore(0, 0, models.PhotoUpload{}, models.PhotoAnalysis{
		ID:         "a1",
		Comparison: map[string]any{"trend": "worsening"},
	})
	assert.Greater(t, withWorsening, plain, "expected a worsening trend to increase importance")
}

func TestImportanceScoreRewardsFollowUpNotesAndQuality(t *testing.T) {
	base := importanceScore(0, 0, models.PhotoUpload{}, models.PhotoAnalysis{})
	withNotes := importanceScore(0, 0, models.PhotoUpload{FollowUpNotes: "itching more"}, models.PhotoAnalysis{})
	assert.Greater(t, withNotes, base, "expected follow-up notes to raise importance score")

	withQuality := importanceScore(0, 0, models.PhotoUpload{QualityScore: 80}, models.PhotoAnalysis{})
	assert.Greater(t, withQuality, base, "expected a positive quality score to raise importance score")
}

func TestImportanceScoreSpacingFavorsIdealInterval(t *testing.T) {
	onSpacing := importanceScore(4, 4, models.PhotoUpload{}, models.PhotoAnalysis{})
	offSpacing := importanceScore(2, 4, models.PhotoUpload{}, models.PhotoAnalysis{})
	assert.Greater(t, onSpacing, offSpacing, "expected an index exactly on the ideal spacing to score higher")
}

func TestOmittedRangesDescribesGapsBetweenSelections(t *testing.T) {
	middle := []models.PhotoUpload{
		{ID: "m1", UploadedAt: day(1)},
		{ID: "m2", UploadedAt: day(2)},
		{ID: "m3", UploadedAt: day(3)},
		{ID: "m4", UploadedAt: day(4)},
	}
	selected := []models.PhotoUpload{middle[0], middle[3]}
	ranges := omittedRanges(middle, selected)
	require.Len(t, ranges, 1, "expected a single contiguous omitted range")
	assert.Equal(t, "2026-01-03 to 2026-01-04", ranges[0])
}

func TestOmittedRangesEmptyWhenAllSelected(t *testing.T) {
	middle := []models.PhotoUpload{{ID: "m1", UploadedAt: day(1)}}
	ranges := omittedRanges(middle, middle)
	assert.Empty(t, ranges, "expected no omitted ranges when everything is selected")
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 2, maxInt(1, 2))
	assert.Equal(t, 2, maxInt(2, 1))
}
