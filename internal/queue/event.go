// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the reconcile consumer.
package queue

import "time"

const (
    // OccupancyChangedQueue carries OccupancyChangedEvent messages.
    OccupancyChangedQueue = "occupancy.changed"
    // ReconcileQueue carries ReconcileRequest messages.
    ReconcileQueue = "occupancy.reconcile"
)

// OccupancyChangedEvent is published after a course time's seat count or
// sale status was rewritten.
type OccupancyChangedEvent struct {
    TimeID     uint64    `json:"time_id"`
    JoinNum    int       `json:"join_num"`
    Status     string    `json:"status"`
    Version    uint32    `json:"version"`
    Op         string    `json:"op"`
    OccurredAt time.Time `json:"occurred_at"`
}

// ReconcileRequest asks the consumer to recompute a course time whose
// join_num may no longer match its join persons.
type ReconcileRequest struct {
    TimeID      uint64    `json:"time_id"`
    Cause       string    `json:"cause"`
    RequestedAt time.Time `json:"requested_at"`
}
