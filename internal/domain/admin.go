package domain

// RelayStats is a point-in-time view of the in-process relay.
type RelayStats struct {
	InstanceID  string `json:"instance_id"`
	Buffered    int    `json:"buffered"`
	Subscribers int    `json:"subscribers"`
	Journal     bool   `json:"journal"`
	Remote      bool   `json:"remote"`
}

// ConsumerGroupInfo represents information about a Redis Stream consumer group.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingMessageSummary summarizes the messages a consumer group has read but not acknowledged.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id"`
	LastMessageID  string           `json:"last_message_id"`
	ConsumerTotals map[string]int64 `json:"consumer_totals"`
}
