// Package audithook is a Transit extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every transition, schedule, and sweep lifecycle hook emits a structured
// audit event through the [Recorder] interface. The extension assigns
// appropriate severity levels (info for executed and scheduled transitions,
// warning for denials and abandoned schedules) and rich metadata (workflow
// id, entity ref, from and to states, actor).
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionTransitionDenied,
//	        audithook.ActionScheduleAbandoned,
//	    ),
//	)
package audithook
