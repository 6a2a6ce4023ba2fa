// Package models defines the island's domain records: machines discovered by
// agents, the agents themselves, per-machine outbound connection nodes and the
// island operating mode.
//
// Records are plain values. Repositories own them and hand out copies, so
// nothing in the reporting path mutates a stored record.
package models
