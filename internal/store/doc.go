// Package store holds the latest snapshot of every polled source.
//
// This package is internal to marquee. It implements the single shared
// mutable resource between pollers and readers: one slot per source, each
// slot replaced as a whole by an atomic reference swap.
//
// The main components are:
//
//   - [Store]: Interface defining slot access and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: The immutable value held in a slot
//
// Readers never block writers: [MemoryStore.Get] is a single atomic load.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block a poller).
//
// Users of the marquee library should not need to interact with this
// package directly. Snapshots are read through marquee.Handle.
package store
