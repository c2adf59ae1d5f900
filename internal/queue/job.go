package queue

import "encoding/json"

const (
	PriorityQueueKey = "priority_queue"
	DeadLetterKey    = "priority_queue_dlq"

	JobBroadcastEvent = "broadcast_event"
)

// Priority 0 is served first among jobs due in the same second.
const (
	PriorityHigh   = 0
	PriorityNormal = 2
	PriorityLow    = 9
)

type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Retry     int             `json:"retry"`
	MaxRetry  int             `json:"max_retry"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
	CreatedAt int64           `json:"created_at"`
	RunAt     int64           `json:"run_at"`
	ExpireAt  int64           `json:"expired_at"`
}

// Score orders the sorted set by due time first, then priority.
func Score(runAt int64, priority int) float64 {
	if priority < PriorityHigh {
		priority = PriorityHigh
	}
	if priority > PriorityLow {
		priority = PriorityLow
	}
	return float64(runAt*10 + int64(priority))
}

// DueScore is the highest score a job due at now can have.
func DueScore(now int64) float64 {
	return float64(now*10 + PriorityLow)
}

func MustMarshal(payload any) json.RawMessage {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	return b
}
