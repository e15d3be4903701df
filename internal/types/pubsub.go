package types

// PubSubType selects the transport lifecycle events are published on
type PubSubType string

const (
	// MemoryPubSub keeps events in process, used by local mode and tests
	MemoryPubSub PubSubType = "memory"
	KafkaPubSub  PubSubType = "kafka"
)
