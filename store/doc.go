// Package store owns the in-memory vulnerability collection.
//
// The Store is the only writer. Components that display records take a
// Snapshot and derive views from it with package query; they never hold
// references into the store. Every mutation replaces the affected record as
// a whole value under a write lock, bumps the version and emits an Event.
//
// Events reach in-process subscribers through Subscribe and external systems
// through Notifier implementations, such as the Redis publisher in package
// queue.
package store
