package transit

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("transit: no store configured")
	ErrStoreClosed = errors.New("transit: store closed")

	// Not found errors.
	ErrWorkflowNotFound = errors.New("transit: workflow not found")
	ErrStateNotFound    = errors.New("transit: state not found")
	ErrEdgeNotFound     = errors.New("transit: edge not found")
	ErrHistoryNotFound  = errors.New("transit: history record not found")
	ErrScheduleNotFound = errors.New("transit: schedule not found")

	// Conflict errors.
	ErrDuplicateEdge = errors.New("transit: duplicate transition edge")
	ErrWorkflowInUse = errors.New("transit: workflow still referenced by a field")

	// State errors.
	ErrEntityNotPersisted  = errors.New("transit: entity not yet persisted")
	ErrSchedulingDisabled  = errors.New("transit: scheduling disabled for workflow")
	ErrCreationUndeletable = errors.New("transit: creation state cannot be deleted")
)
