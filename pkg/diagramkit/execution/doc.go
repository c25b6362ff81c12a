// Package execution tracks the progress of diagram executions from the
// updates a backend pushes over a subscription.
//
// A Monitor is an explicitly constructed service: create it once, share it
// with the code that receives updates and the code that renders state.
//
//	mon := execution.NewMonitor(execution.WithLogger(logger))
//	mon.Start(id, diagramID)
//	go mon.Consume(ctx, updates)
//	snap, _ := mon.Snapshot(id)
//
// Snapshots are copies. Watch delivers a fresh snapshot after each update.
package execution
