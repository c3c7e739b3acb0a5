package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/transit"
	"github.com/xraph/transit/id"
	"github.com/xraph/transit/transition"
	"github.com/xraph/transit/workflow"
)

// ── Workflow model ────────────────────────────────────────────────

type workflowModel struct {
	bun.BaseModel `bun:"table:transit_workflows"`

	ID        string    `bun:"id,pk"`
	Label     string    `bun:"label,notnull"`
	Options   []byte    `bun:"options,notnull,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toWorkflowModel(wf *workflow.Workflow) (*workflowModel, error) {
	opts, err := json.Marshal(wf.Options)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: marshal workflow options: %w", err)
	}
	return &workflowModel{
		ID:        wf.ID,
		Label:     wf.Label,
		Options:   opts,
		CreatedAt: wf.CreatedAt,
		UpdatedAt: wf.UpdatedAt,
	}, nil
}

func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	wf := &workflow.Workflow{
		Entity: transit.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:    m.ID,
		Label: m.Label,
	}
	if len(m.Options) > 0 {
		if err := json.Unmarshal(m.Options, &wf.Options); err != nil {
			return nil, fmt.Errorf("transit/bun: unmarshal workflow options %q: %w", m.ID, err)
		}
	}
	return wf, nil
}

// ── State model ───────────────────────────────────────────────────

type stateModel struct {
	bun.BaseModel `bun:"table:transit_states"`

	WorkflowID string    `bun:"workflow_id,pk"`
	ID         string    `bun:"id,pk"`
	Label      string    `bun:"label,notnull"`
	Weight     int       `bun:"weight,notnull,default:0"`
	Active     bool      `bun:"active,notnull,default:true"`
	Creation   bool      `bun:"creation,notnull,default:false"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toStateModel(st *workflow.State) *stateModel {
	return &stateModel{
		WorkflowID: st.WorkflowID,
		ID:         st.ID,
		Label:      st.Label,
		Weight:     st.Weight,
		Active:     st.Active,
		Creation:   st.Creation,
		CreatedAt:  st.CreatedAt,
		UpdatedAt:  st.UpdatedAt,
	}
}

func fromStateModel(m *stateModel) *workflow.State {
	return &workflow.State{
		Entity: transit.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         m.ID,
		WorkflowID: m.WorkflowID,
		Label:      m.Label,
		Weight:     m.Weight,
		Active:     m.Active,
		Creation:   m.Creation,
	}
}

// ── Edge model ────────────────────────────────────────────────────

type edgeModel struct {
	bun.BaseModel `bun:"table:transit_edges"`

	WorkflowID string    `bun:"workflow_id,pk"`
	FromID     string    `bun:"from_id,pk"`
	ToID       string    `bun:"to_id,pk"`
	Roles      []string  `bun:"roles,array"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toEdgeModel(e *workflow.Edge) *edgeModel {
	return &edgeModel{
		WorkflowID: e.WorkflowID,
		FromID:     e.FromID,
		ToID:       e.ToID,
		Roles:      e.Roles,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func fromEdgeModel(m *edgeModel) *workflow.Edge {
	return &workflow.Edge{
		Entity: transit.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		WorkflowID: m.WorkflowID,
		FromID:     m.FromID,
		ToID:       m.ToID,
		Roles:      m.Roles,
	}
}

// ── History model ─────────────────────────────────────────────────

type historyModel struct {
	bun.BaseModel `bun:"table:transit_history"`

	ID         string    `bun:"id,pk"`
	WorkflowID string    `bun:"workflow_id,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	FieldName  string    `bun:"field_name,notnull"`
	FromID     string    `bun:"from_id,notnull"`
	ToID       string    `bun:"to_id,notnull"`
	ActorID    string    `bun:"actor_id,notnull"`
	Timestamp  time.Time `bun:"ts,notnull"`
	Comment    string    `bun:"comment"`
	ExecutedAt time.Time `bun:"executed_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toHistoryModel(rec *transition.Record) *historyModel {
	return &historyModel{
		ID:         rec.ID.String(),
		WorkflowID: rec.WorkflowID,
		EntityType: rec.Ref.Type,
		EntityID:   rec.Ref.ID,
		FieldName:  rec.FieldName,
		FromID:     rec.FromID,
		ToID:       rec.ToID,
		ActorID:    rec.ActorID,
		Timestamp:  rec.Timestamp,
		Comment:    rec.Comment,
		ExecutedAt: rec.ExecutedAt,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func fromHistoryModel(m *historyModel) (*transition.Record, error) {
	parsedID, err := id.ParseHistoryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: parse history id %q: %w", m.ID, err)
	}
	return &transition.Record{
		Entity: transit.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		WorkflowID: m.WorkflowID,
		Ref:        transit.EntityRef{Type: m.EntityType, ID: m.EntityID},
		FieldName:  m.FieldName,
		FromID:     m.FromID,
		ToID:       m.ToID,
		ActorID:    m.ActorID,
		Timestamp:  m.Timestamp,
		Comment:    m.Comment,
		ExecutedAt: m.ExecutedAt,
	}, nil
}

// ── Schedule model ────────────────────────────────────────────────

type scheduleModel struct {
	bun.BaseModel `bun:"table:transit_schedules"`

	ID         string    `bun:"id,pk"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	FieldName  string    `bun:"field_name,notnull"`
	FromID     string    `bun:"from_id,notnull"`
	ToID       string    `bun:"to_id,notnull"`
	ActorID    string    `bun:"actor_id,notnull"`
	DueAt      time.Time `bun:"due_at,notnull"`
	Comment    string    `bun:"comment"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toScheduleModel(sch *transition.Scheduled) *scheduleModel {
	return &scheduleModel{
		ID:         sch.ID.String(),
		EntityType: sch.Ref.Type,
		EntityID:   sch.Ref.ID,
		FieldName:  sch.FieldName,
		FromID:     sch.FromID,
		ToID:       sch.ToID,
		ActorID:    sch.ActorID,
		DueAt:      sch.DueAt,
		Comment:    sch.Comment,
		CreatedAt:  sch.CreatedAt,
		UpdatedAt:  sch.UpdatedAt,
	}
}

func fromScheduleModel(m *scheduleModel) (*transition.Scheduled, error) {
	parsedID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("transit/bun: parse schedule id %q: %w", m.ID, err)
	}
	return &transition.Scheduled{
		Entity: transit.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        parsedID,
		Ref:       transit.EntityRef{Type: m.EntityType, ID: m.EntityID},
		FieldName: m.FieldName,
		FromID:    m.FromID,
		ToID:      m.ToID,
		ActorID:   m.ActorID,
		DueAt:     m.DueAt,
		Comment:   m.Comment,
	}, nil
}
