package services

import (
	"context"

	"github.com/a2s-dz/gestion/internal/auth"
	"github.com/a2s-dz/gestion/internal/models"
	"github.com/a2s-dz/gestion/internal/store"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// HistoryService appends to and reads the prospect activity log
type HistoryService struct {
	*env
}

// Record appends an event to the prospect's history. Inside a transaction
// ctx it commits or rolls back with the surrounding write.
func (s *HistoryService) Record(ctx context.Context, prospectID uuid.UUID, action models.ActivityAction, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	event := &models.ActivityEvent{
		ProspectID: prospectID,
		Action:     action,
		Details:    datatypes.JSONMap(details),
		ActorID:    auth.ActorID(ctx),
		CreatedAt:  s.now(),
	}
	return s.activities.Insert(ctx, event)
}

// List returns the prospect's history in chronological order
func (s *HistoryService) List(ctx context.Context, prospectID uuid.UUID) ([]models.ActivityEvent, error) {
	if _, err := s.prospects.Get(ctx, prospectID); err != nil {
		return nil, err
	}
	return s.activities.Find(ctx, store.Eq("prospect_id", prospectID), store.Asc("created_at"))
}
