// Package protocol defines the wire-level vocabulary shared by the HTTP
// Surface and the WebSocket Surface: event names and control-message types.
package protocol

// Event namespaces pushed from server to WebSocket client.
const (
	EventTaskCreated       = "task.created"
	EventTaskCompleted     = "task.completed"
	EventSubtaskCreated    = "subtask.created"
	EventSubtaskClaimed    = "subtask.claimed"
	EventSubtaskStatus     = "subtask.status_changed"
	EventSubtaskCompleted  = "subtask.completed"
	EventSubtaskFailed     = "subtask.failed"
	EventSubtaskBlocked    = "subtask.blocked"
	EventSubtaskUnblocked  = "subtask.unblocked"
	EventBatchProgress     = "batch.progress"

	EventMessageNew = "message.new"

	EventAgentRegistered = "agent.registered"

	EventCapacityUpdated     = "capacity.updated"
	EventCapacityZoneChanged = "capacity.zone_changed"

	EventSnapshotSaved    = "snapshot.saved"
	EventSnapshotRestored = "snapshot.restored"

	EventSystemHealth = "system.health"
	EventMetricUpdate = "metric.update"

	// EventCacheInvalidate is for in-process consumption only; never
	// forwarded to a WebSocket client.
	EventCacheInvalidate = "internal.cache.invalidate"
)

// Control message types sent from client to the WebSocket Surface.
const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"
	ControlPing        = "ping"
)

// Control message types sent from the WebSocket Surface back to a client.
const (
	ControlPong  = "pong"
	ControlAck   = "ack"
	ControlError = "error"
)
