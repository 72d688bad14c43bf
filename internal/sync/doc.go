// Package sync runs one catalog synchronization: download the filtered
// upstream catalog, drop invalid records, and replace the stored snapshot.
//
// A run that yields no usable records leaves the store untouched so readers
// keep the last good catalog. Only upstream failures (login or page requests)
// and a failed store transaction abort a run; records rejected individually by
// the transformer or the store are counted and logged.
//
// Scheduling, the overlap guard and run bookkeeping live in the coordinator
// subpackage.
package sync
