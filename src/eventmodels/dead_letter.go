package eventmodels

import "time"

// DeadLetter is a message that exhausted retry (or failed non-retryably) and
// was parked for manual inspection or replay.
type DeadLetter struct {
	ID              uint      `json:"id"`
	SourceTopic     string    `json:"sourceTopic"`
	SourcePartition int       `json:"sourcePartition"`
	SourceOffset    int64     `json:"sourceOffset"`
	GroupID         string    `json:"groupId"`
	Key             string    `json:"key"`
	Payload         []byte    `json:"payload"`
	ErrorMessage    string    `json:"errorMessage"`
	Attempts        int       `json:"attempts"`
	CreatedAt       time.Time `json:"createdAt"`
}
