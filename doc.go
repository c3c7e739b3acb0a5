// Package transit provides a composable workflow transition engine for Go.
// Content items carry a named lifecycle state and move between states only
// via permitted, auditable transitions, either immediately or at a
// scheduled future moment.
//
// Transit is designed as a library, not a service. Import it, configure a
// store, wire the host collaborators (state accessor, access policy), and
// drive transitions through the engine.
//
// # Quick Start
//
//	eng := engine.New(memory.New(), accessor, policy,
//	    engine.WithLogger(logger),
//	)
//	toID, err := eng.ExecuteTransition(ctx, req)
//
// # Architecture
//
// Transit follows a composable store pattern where each subsystem
// (workflow definitions, transition history, schedules) defines its own
// store interface. A single backend implements all of them.
//
// Engine-owned record IDs use TypeID: type-prefixed, K-sortable,
// UUIDv7-based identifiers. Workflow, state, entity, field, actor, and
// role identifiers are caller-chosen strings: they are administrative
// machine names owned by the hosting system.
package transit
