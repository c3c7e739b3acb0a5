package redis

import "github.com/xraph/transit"

// Redis key naming conventions for transit data.
// All keys are prefixed with "transit:" to avoid collisions.

const keyPrefix = "transit:"

// ── Workflow keys ──

// workflowKey returns the key for a workflow entity: transit:workflow:{id}
func workflowKey(id string) string { return keyPrefix + "workflow:" + id }

// workflowIDsKey is the Set tracking all workflow IDs for enumeration.
const workflowIDsKey = keyPrefix + "workflow_ids"

// stateKey returns the key for a state entity: transit:state:{workflowID}:{id}
func stateKey(workflowID, id string) string {
	return keyPrefix + "state:" + workflowID + ":" + id
}

// stateIndexKey returns the Set key tracking state IDs per workflow.
func stateIndexKey(workflowID string) string {
	return keyPrefix + "state_idx:" + workflowID
}

// edgeKey returns the key for an edge entity: transit:edge:{workflowID}:{from}:{to}
func edgeKey(workflowID, fromID, toID string) string {
	return keyPrefix + "edge:" + workflowID + ":" + fromID + ":" + toID
}

// edgeIndexKey returns the Set key tracking edge keys per workflow.
func edgeIndexKey(workflowID string) string {
	return keyPrefix + "edge_idx:" + workflowID
}

// ── History keys ──

// historyKey returns the key for a history record: transit:history:{id}
func historyKey(id string) string { return keyPrefix + "history:" + id }

// historyIDsKey is the Set tracking all history record IDs for enumeration.
const historyIDsKey = keyPrefix + "history_ids"

// historyIndexKey returns the Sorted Set key of record IDs for one
// entity+field, scored by transition timestamp.
func historyIndexKey(ref transit.EntityRef, field string) string {
	return keyPrefix + "history_idx:" + ref.Key(field)
}

// ── Schedule keys ──

// scheduleKey returns the key for a schedule entity: transit:schedule:{id}
func scheduleKey(id string) string { return keyPrefix + "schedule:" + id }

// scheduleDueKey is the Sorted Set of schedule IDs scored by due time.
const scheduleDueKey = keyPrefix + "schedule_due"

// schedulePendingKey is the Hash mapping entity+field keys to the
// pending schedule ID, enforcing one pending schedule per key.
const schedulePendingKey = keyPrefix + "schedule_pending"
