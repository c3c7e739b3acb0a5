package transit

import "context"

// AnonymousActorID is the sentinel actor assigned to historical and
// scheduled records when an account is deleted with a reassign policy.
const AnonymousActorID = "0"

// EntityRef identifies a content entity in the hosting system.
// An empty ID means the entity has not been persisted yet; transitions
// against such a ref are deferred until the host reports the insert.
type EntityRef struct {
	Type string `json:"entity_type"`
	ID   string `json:"entity_id"`
}

// IsNew reports whether the entity has no persisted identity yet.
func (r EntityRef) IsNew() bool { return r.ID == "" }

// Key renders a stable "type:id:field" key for the given field slot.
func (r EntityRef) Key(field string) string {
	return r.Type + ":" + r.ID + ":" + field
}

// StateAccessor reads and writes the scalar current-state slot the host
// attaches to an entity+field. Transit owns no entity storage itself.
type StateAccessor interface {
	// StateValue returns the current state id stored in the slot.
	// An empty value means the slot was never written; read-path
	// helpers fall back to the workflow's creation state.
	StateValue(ctx context.Context, ref EntityRef, field string) (string, error)

	// SetStateValue writes the current state id into the slot.
	SetStateValue(ctx context.Context, ref EntityRef, field string, stateID string) error
}

// AccessPolicy is the host's actor/permission oracle.
type AccessPolicy interface {
	// ActorHasRole reports whether the actor holds the given role.
	ActorHasRole(ctx context.Context, actorID, roleID string) (bool, error)

	// ActorCanBypass reports whether the actor holds the blanket
	// "bypass workflow access" capability.
	ActorCanBypass(ctx context.Context, actorID string) (bool, error)
}

// FieldBinding associates a host field slot with a workflow definition.
type FieldBinding struct {
	FieldName  string `json:"field_name"`
	WorkflowID string `json:"workflow_id"`
}

// FieldLookup resolves which field slots of a host entity type carry a
// workflow, and whether any field still references a workflow at all.
type FieldLookup interface {
	// WorkflowFields returns the workflow field bindings for an entity type.
	WorkflowFields(ctx context.Context, entityType string) ([]FieldBinding, error)

	// WorkflowInUse reports whether any field configuration still
	// references the workflow. An in-use workflow is not deletable.
	WorkflowInUse(ctx context.Context, workflowID string) (bool, error)
}

// CacheInvalidator lets the engine flush the host's render cache after a
// sweep executes a whole-entity (field-less) transition, so state-gated
// visibility changes propagate to anonymous viewers.
type CacheInvalidator interface {
	InvalidateRendered(ctx context.Context) error
}
