package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
	"github.com/xraph/transit/transition"
)

// ── History ───────────────────────────────────────────────────────

// AppendHistory inserts an executed transition record. The per-entity
// index scores records by transition timestamp; score ties resolve by
// member ordering, which follows the K-sortable record id.
func (s *Store) AppendHistory(ctx context.Context, rec *transition.Record) error {
	recID := rec.ID.String()
	if err := s.setEntity(ctx, historyKey(recID), rec); err != nil {
		return fmt.Errorf("transit/redis: append history: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, historyIDsKey, recID)
	pipe.ZAdd(ctx, historyIndexKey(rec.Ref, rec.FieldName), redis.Z{
		Score:  float64(rec.Timestamp.UnixMilli()),
		Member: recID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transit/redis: append history indexes: %w", err)
	}
	return nil
}

// LatestHistory returns the most recent record for the entity+field.
func (s *Store) LatestHistory(ctx context.Context, ref transit.EntityRef, field string) (*transition.Record, error) {
	ids, err := s.rdb.ZRevRange(ctx, historyIndexKey(ref, field), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: latest history index: %w", err)
	}
	if len(ids) == 0 {
		return nil, transit.ErrHistoryNotFound
	}

	var rec transition.Record
	if err := s.getEntity(ctx, historyKey(ids[0]), &rec); err != nil {
		if isNotFound(err) {
			return nil, transit.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("transit/redis: latest history: %w", err)
	}
	return &rec, nil
}

// ListHistory returns records for the entity+field, most recent first.
func (s *Store) ListHistory(ctx context.Context, ref transit.EntityRef, field string, limit int) ([]*transition.Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, historyIndexKey(ref, field), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: list history index: %w", err)
	}

	records := make([]*transition.Record, 0, len(ids))
	for _, recID := range ids {
		var rec transition.Record
		if getErr := s.getEntity(ctx, historyKey(recID), &rec); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return nil, fmt.Errorf("transit/redis: list history: %w", getErr)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// ReassignHistoryActor rewrites the actor id on records owned by
// oldActorID.
func (s *Store) ReassignHistoryActor(ctx context.Context, oldActorID, newActorID string) (int64, error) {
	ids, err := s.rdb.SMembers(ctx, historyIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("transit/redis: reassign history ids: %w", err)
	}

	var n int64
	for _, recID := range ids {
		var rec transition.Record
		if getErr := s.getEntity(ctx, historyKey(recID), &rec); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return n, fmt.Errorf("transit/redis: reassign history read: %w", getErr)
		}
		if rec.ActorID != oldActorID {
			continue
		}
		rec.ActorID = newActorID
		rec.Touch()
		if setErr := s.setEntity(ctx, historyKey(recID), &rec); setErr != nil {
			return n, fmt.Errorf("transit/redis: reassign history write: %w", setErr)
		}
		n++
	}
	return n, nil
}

// DeleteHistoryByWorkflow removes all history for a deleted workflow.
func (s *Store) DeleteHistoryByWorkflow(ctx context.Context, workflowID string) (int64, error) {
	ids, err := s.rdb.SMembers(ctx, historyIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("transit/redis: delete history ids: %w", err)
	}

	var n int64
	for _, recID := range ids {
		var rec transition.Record
		if getErr := s.getEntity(ctx, historyKey(recID), &rec); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return n, fmt.Errorf("transit/redis: delete history read: %w", getErr)
		}
		if rec.WorkflowID != workflowID {
			continue
		}

		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, historyKey(recID))
		pipe.SRem(ctx, historyIDsKey, recID)
		pipe.ZRem(ctx, historyIndexKey(rec.Ref, rec.FieldName), recID)
		if _, execErr := pipe.Exec(ctx); execErr != nil {
			return n, fmt.Errorf("transit/redis: delete history: %w", execErr)
		}
		n++
	}
	return n, nil
}

// ── Schedules ─────────────────────────────────────────────────────

// SaveSchedule upserts a pending schedule. The prior pending schedule
// for the same (entity, field) key is removed first, so at most one
// pending schedule exists per key.
func (s *Store) SaveSchedule(ctx context.Context, sch *transition.Scheduled) error {
	pendingField := sch.Ref.Key(sch.FieldName)
	schID := sch.ID.String()

	prior, err := s.rdb.HGet(ctx, schedulePendingKey, pendingField).Result()
	if err != nil && !isRedisNil(err) {
		return fmt.Errorf("transit/redis: save schedule check pending: %w", err)
	}
	if prior != "" && prior != schID {
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, scheduleKey(prior))
		pipe.ZRem(ctx, scheduleDueKey, prior)
		if _, execErr := pipe.Exec(ctx); execErr != nil {
			return fmt.Errorf("transit/redis: save schedule evict prior: %w", execErr)
		}
	}

	if err := s.setEntity(ctx, scheduleKey(schID), sch); err != nil {
		return fmt.Errorf("transit/redis: save schedule: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, schedulePendingKey, pendingField, schID)
	pipe.ZAdd(ctx, scheduleDueKey, redis.Z{
		Score:  float64(sch.DueAt.UnixMilli()),
		Member: schID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transit/redis: save schedule indexes: %w", err)
	}
	return nil
}

// PendingSchedule returns the pending schedule for the entity+field key.
func (s *Store) PendingSchedule(ctx context.Context, ref transit.EntityRef, field string) (*transition.Scheduled, error) {
	schID, err := s.rdb.HGet(ctx, schedulePendingKey, ref.Key(field)).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, transit.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("transit/redis: pending schedule index: %w", err)
	}

	var sch transition.Scheduled
	if err := s.getEntity(ctx, scheduleKey(schID), &sch); err != nil {
		if isNotFound(err) {
			return nil, transit.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("transit/redis: pending schedule: %w", err)
	}
	return &sch, nil
}

// ListDueBetween returns schedules due in the window (start, end). Both
// bounds are exclusive; a zero time means unbounded on that side.
func (s *Store) ListDueBetween(ctx context.Context, start, end time.Time) ([]*transition.Scheduled, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !start.IsZero() {
		rng.Min = "(" + strconv.FormatInt(start.UnixMilli(), 10)
	}
	if !end.IsZero() {
		rng.Max = "(" + strconv.FormatInt(end.UnixMilli(), 10)
	}

	ids, err := s.rdb.ZRangeByScore(ctx, scheduleDueKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("transit/redis: list due index: %w", err)
	}

	schedules := make([]*transition.Scheduled, 0, len(ids))
	for _, schID := range ids {
		var sch transition.Scheduled
		if getErr := s.getEntity(ctx, scheduleKey(schID), &sch); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return nil, fmt.Errorf("transit/redis: list due: %w", getErr)
		}
		schedules = append(schedules, &sch)
	}
	return schedules, nil
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	schID := scheduleID.String()

	var sch transition.Scheduled
	if err := s.getEntity(ctx, scheduleKey(schID), &sch); err != nil {
		if isNotFound(err) {
			return transit.ErrScheduleNotFound
		}
		return fmt.Errorf("transit/redis: delete schedule read: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, scheduleKey(schID))
	pipe.ZRem(ctx, scheduleDueKey, schID)
	pipe.HDel(ctx, schedulePendingKey, sch.Ref.Key(sch.FieldName))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("transit/redis: delete schedule: %w", err)
	}
	return nil
}

// ReassignScheduleActor rewrites the actor id on pending schedules
// owned by oldActorID.
func (s *Store) ReassignScheduleActor(ctx context.Context, oldActorID, newActorID string) (int64, error) {
	ids, err := s.rdb.ZRange(ctx, scheduleDueKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("transit/redis: reassign schedule ids: %w", err)
	}

	var n int64
	for _, schID := range ids {
		var sch transition.Scheduled
		if getErr := s.getEntity(ctx, scheduleKey(schID), &sch); getErr != nil {
			if isNotFound(getErr) {
				continue
			}
			return n, fmt.Errorf("transit/redis: reassign schedule read: %w", getErr)
		}
		if sch.ActorID != oldActorID {
			continue
		}
		sch.ActorID = newActorID
		sch.Touch()
		if setErr := s.setEntity(ctx, scheduleKey(schID), &sch); setErr != nil {
			return n, fmt.Errorf("transit/redis: reassign schedule write: %w", setErr)
		}
		n++
	}
	return n, nil
}
