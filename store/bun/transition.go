package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
	"github.com/xraph/transit/transition"
)

// ── History ───────────────────────────────────────────────────────

// AppendHistory inserts an executed transition record.
func (s *Store) AppendHistory(ctx context.Context, rec *transition.Record) error {
	m := toHistoryModel(rec)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: append history: %w", err)
	}
	return nil
}

// LatestHistory returns the most recent record for the entity+field.
// Ties on the timestamp resolve to the highest record id, which is
// K-sortable and therefore the latest insert.
func (s *Store) LatestHistory(ctx context.Context, ref transit.EntityRef, field string) (*transition.Record, error) {
	m := new(historyModel)
	err := s.db.NewSelect().Model(m).
		Where("entity_type = ?", ref.Type).
		Where("entity_id = ?", ref.ID).
		Where("field_name = ?", field).
		Order("ts DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, transit.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("transit/bun: latest history: %w", err)
	}
	return fromHistoryModel(m)
}

// ListHistory returns records for the entity+field, most recent first.
func (s *Store) ListHistory(ctx context.Context, ref transit.EntityRef, field string, limit int) ([]*transition.Record, error) {
	var models []historyModel
	q := s.db.NewSelect().Model(&models).
		Where("entity_type = ?", ref.Type).
		Where("entity_id = ?", ref.ID).
		Where("field_name = ?", field).
		Order("ts DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("transit/bun: list history: %w", err)
	}

	records := make([]*transition.Record, 0, len(models))
	for i := range models {
		rec, convErr := fromHistoryModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("transit/bun: list history convert: %w", convErr)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReassignHistoryActor rewrites the actor id on records owned by
// oldActorID.
func (s *Store) ReassignHistoryActor(ctx context.Context, oldActorID, newActorID string) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*historyModel)(nil)).
		Set("actor_id = ?", newActorID).
		Set("updated_at = NOW()").
		Where("actor_id = ?", oldActorID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("transit/bun: reassign history actor: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

// DeleteHistoryByWorkflow removes all history for a deleted workflow.
func (s *Store) DeleteHistoryByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*historyModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("transit/bun: delete history by workflow: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

// ── Schedules ─────────────────────────────────────────────────────

// SaveSchedule upserts a pending schedule. The prior pending schedule
// for the same (entity, field) key is deleted in the same transaction,
// so at most one pending schedule exists per key.
func (s *Store) SaveSchedule(ctx context.Context, sch *transition.Scheduled) error {
	m := toScheduleModel(sch)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, delErr := tx.NewDelete().
			Model((*scheduleModel)(nil)).
			Where("entity_type = ?", m.EntityType).
			Where("entity_id = ?", m.EntityID).
			Where("field_name = ?", m.FieldName).
			Where("id != ?", m.ID).
			Exec(ctx)
		if delErr != nil {
			return delErr
		}
		_, insErr := tx.NewInsert().Model(m).
			On("CONFLICT (id) DO UPDATE").
			Set("from_id = EXCLUDED.from_id").
			Set("to_id = EXCLUDED.to_id").
			Set("actor_id = EXCLUDED.actor_id").
			Set("due_at = EXCLUDED.due_at").
			Set("comment = EXCLUDED.comment").
			Set("updated_at = NOW()").
			Exec(ctx)
		return insErr
	})
	if err != nil {
		return fmt.Errorf("transit/bun: save schedule: %w", err)
	}
	return nil
}

// PendingSchedule returns the pending schedule for the entity+field key.
func (s *Store) PendingSchedule(ctx context.Context, ref transit.EntityRef, field string) (*transition.Scheduled, error) {
	m := new(scheduleModel)
	err := s.db.NewSelect().Model(m).
		Where("entity_type = ?", ref.Type).
		Where("entity_id = ?", ref.ID).
		Where("field_name = ?", field).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, transit.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("transit/bun: pending schedule: %w", err)
	}
	return fromScheduleModel(m)
}

// ListDueBetween returns schedules due in the window (start, end). Both
// bounds are exclusive; a zero time means unbounded on that side.
func (s *Store) ListDueBetween(ctx context.Context, start, end time.Time) ([]*transition.Scheduled, error) {
	var models []scheduleModel
	q := s.db.NewSelect().Model(&models).
		Order("due_at ASC", "id ASC")
	if !start.IsZero() {
		q = q.Where("due_at > ?", start)
	}
	if !end.IsZero() {
		q = q.Where("due_at < ?", end)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("transit/bun: list due schedules: %w", err)
	}

	schedules := make([]*transition.Scheduled, 0, len(models))
	for i := range models {
		sch, convErr := fromScheduleModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("transit/bun: list due schedules convert: %w", convErr)
		}
		schedules = append(schedules, sch)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	res, err := s.db.NewDelete().
		Model((*scheduleModel)(nil)).
		Where("id = ?", scheduleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transit/bun: delete schedule: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return transit.ErrScheduleNotFound
	}
	return nil
}

// ReassignScheduleActor rewrites the actor id on pending schedules
// owned by oldActorID.
func (s *Store) ReassignScheduleActor(ctx context.Context, oldActorID, newActorID string) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*scheduleModel)(nil)).
		Set("actor_id = ?", newActorID).
		Set("updated_at = NOW()").
		Where("actor_id = ?", oldActorID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("transit/bun: reassign schedule actor: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}
