// Package retention deletes usage records older than a configured age.
//
// Pruner performs one pass; Scheduler runs the pruner on a standard five
// field cron expression via github.com/robfig/cron/v3:
//
//	pruner := retention.NewPruner(store, &retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *",
//	})
//	if err := pruner.Scheduler().Start(ctx); err != nil { ... }
//
// A RetentionDays of zero keeps records forever.
package retention
