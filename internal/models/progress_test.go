package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chromance-server/internal/models"
)

// TestPhaseForCount checks every interaction count exhaustively.
func TestPhaseForCount(t *testing.T) {
	expected := map[int]models.Phase{
		0:  models.PhaseIntroduction,
		1:  models.PhaseIntroduction,
		2:  models.PhaseIntroduction,
		3:  models.PhaseIntroduction,
		4:  models.PhaseDevelopment,
		5:  models.PhaseDevelopment,
		6:  models.PhaseDevelopment,
		7:  models.PhaseDevelopment,
		8:  models.PhaseResolution,
		9:  models.PhaseResolution,
		10: models.PhaseResolution,
	}

	for count := 0; count <= models.MaxInteractions; count++ {
		assert.Equal(t, expected[count], models.PhaseForCount(count), "count %d", count)
	}
}

func TestChapterRewarded(t *testing.T) {
	rec := &models.ProgressRecord{RewardedChapters: []int{0, 2}}

	assert.True(t, rec.ChapterRewarded(0))
	assert.False(t, rec.ChapterRewarded(1))
	assert.True(t, rec.ChapterRewarded(2))
}

func TestLastChapter(t *testing.T) {
	def := &models.CampaignDefinition{Chapters: []models.Chapter{{Index: 0}, {Index: 1}, {Index: 2}}}

	assert.False(t, def.LastChapter(0))
	assert.False(t, def.LastChapter(1))
	assert.True(t, def.LastChapter(2))
	assert.Nil(t, def.ChapterAt(3))
	assert.NotNil(t, def.ChapterAt(2))
}
