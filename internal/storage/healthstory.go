package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/oracle-health/oracle-backend/internal/models"
)

// InsertHealthStory persists a generated weekly narrative digest.
func (c *Client) InsertHealthStory(ctx context.Context, h models.HealthStory) (string, error) {
	id := h.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := c.Pool.Exec(ctx,
		`INSERT INTO health_stories (id, user_id, title, subtitle, story_text, date_range_start,
		 date_range_end, data_sources, generation_model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, h.UserID, h.Title, h.Subtitle, h.StoryText, h.DateRangeStart, h.DateRangeEnd,
		marshalJSON(h.DataSources), h.GenerationModel)
	return id, err
}
