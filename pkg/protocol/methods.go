package protocol

// Subscription channel names a WebSocket client may pass to a "subscribe"
// control message. "*" subscribes to every channel.
const (
	ChannelTasks     = "tasks"
	ChannelMessages  = "messages"
	ChannelCapacity  = "capacity"
	ChannelSnapshots = "snapshots"
	ChannelSystem    = "system"
	ChannelAll       = "*"
)

// KnownChannels lists every channel name accepted by the subscription
// registry; used to validate client subscribe requests.
var KnownChannels = map[string]bool{
	ChannelTasks:     true,
	ChannelMessages:  true,
	ChannelCapacity:  true,
	ChannelSnapshots: true,
	ChannelSystem:    true,
	ChannelAll:       true,
}

// ChannelForEvent maps an event name to the subscription channel it belongs
// to, so the gateway can filter broadcasts per connection.
func ChannelForEvent(event string) string {
	switch {
	case event == EventMessageNew:
		return ChannelMessages
	case event == EventCapacityUpdated || event == EventCapacityZoneChanged:
		return ChannelCapacity
	case event == EventSnapshotSaved || event == EventSnapshotRestored:
		return ChannelSnapshots
	case event == EventSystemHealth || event == EventMetricUpdate:
		return ChannelSystem
	default:
		return ChannelTasks
	}
}
