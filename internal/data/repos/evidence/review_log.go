package evidence

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"github.com/yungbote/research-evidence-backend/internal/platform/dbctx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

// ReviewLogRepo stores the review trail of every reviewable entity kind in one table.
type ReviewLogRepo interface {
	Append(dbc dbctx.Context, ref types.EntityRef, actorID uint, action, comment string, payload map[string]any) (*types.ReviewEntry, error)
	ListFor(dbc dbctx.Context, ref types.EntityRef) ([]*types.ReviewEntry, error)
}

type reviewLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return &reviewLogRepo{
		db:  db,
		log: baseLog.With("repo", "ReviewLogRepo"),
	}
}

func (r *reviewLogRepo) Append(dbc dbctx.Context, ref types.EntityRef, actorID uint, action, comment string, payload map[string]any) (*types.ReviewEntry, error) {
	if !ref.Kind.Valid() {
		return nil, fmt.Errorf("append review entry: unknown entity kind %q", ref.Kind)
	}
	if ref.ID == 0 {
		return nil, fmt.Errorf("append review entry: entity id required")
	}
	if action == "" {
		return nil, fmt.Errorf("append review entry: action required")
	}
	entry := &types.ReviewEntry{
		EntityKind: ref.Kind,
		EntityID:   ref.ID,
		ActorID:    actorID,
		Action:     action,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("append review entry: encode payload: %w", err)
		}
		entry.Payload = datatypes.JSON(b)
	}
	if err := dbc.Conn(r.db).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("append review entry %s: %w", ref, err)
	}
	return entry, nil
}

func (r *reviewLogRepo) ListFor(dbc dbctx.Context, ref types.EntityRef) ([]*types.ReviewEntry, error) {
	var out []*types.ReviewEntry
	if err := dbc.Conn(r.db).
		Where("entity_kind = ? AND entity_id = ?", ref.Kind, ref.ID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
