// Package queue provides the Redis-backed scan queue and change-event bus.
//
// Scans can run out of process: the API server pushes a ScanJob, a scan
// worker pops it, runs the simulation and publishes a ScanResult on the
// job's own pub/sub channel, where the submitter is waiting. Store change
// events are published on a shared channel so other Sentinel instances and
// dashboards can follow the collection.
//
// # Redis Key Schema
//
//   - sentinel:scan:queue - List of scan jobs (LPUSH/BRPOP)
//   - sentinel:scan:results:<jobID> - Pub/Sub channel for one job's result
//   - sentinel:scan:workers - Integer counter of running scan workers
//   - sentinel:worker:<id>:health - String with 30s TTL for worker heartbeat
//   - sentinel:events - Pub/Sub channel for store change events
//
// # Usage
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{
//		URL: "redis://localhost:6379",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	results, err := client.SubscribeResults(ctx, job.JobID)
//	...
//	err = client.PushJob(ctx, queue.DefaultScanQueue, job)
//
// RedisClient also implements store.Notifier, so it can be handed to
// store.WithNotifier to publish every change.
package queue
