package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionTransitionExecuted  = "transition.executed"
	ActionTransitionDenied    = "transition.denied"
	ActionTransitionScheduled = "transition.scheduled"
	ActionScheduleAbandoned   = "schedule.abandoned"
	ActionSweepCompleted      = "sweep.completed"
)

// Audit event categories group related actions.
const (
	CategoryTransition = "transit.transition"
	CategorySchedule   = "transit.schedule"
	CategorySweep      = "transit.sweep"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceTransition = "transition"
	ResourceSchedule   = "schedule"
	ResourceSweep      = "sweep"
)

// Severity levels assigned by the extension.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Outcomes of the audited operation.
const (
	OutcomeSuccess   = "success"
	OutcomeDenied    = "denied"
	OutcomeAbandoned = "abandoned"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTransitionExecuted,
		ActionTransitionDenied,
		ActionTransitionScheduled,
		ActionScheduleAbandoned,
		ActionSweepCompleted,
	}
}
