package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task is a unit of work stored in a Redis stream named after its type
type Task interface {
	TaskType() string
	TaskValue() ([]byte, error)
}

// FailedVehicleTask is a vehicle URL that failed and is retried on a later run
type FailedVehicleTask struct {
	Slug       string    `json:"slug"`
	URL        string    `json:"url"`
	ErrorKind  string    `json:"error_kind"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
}

const FailedVehicleTaskType = "FailedVehicleTask"

func (t *FailedVehicleTask) TaskType() string {
	return FailedVehicleTaskType
}

func (t *FailedVehicleTask) TaskValue() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeFailedVehicleTask reads a task back from the stream message fields
func DecodeFailedVehicleTask(values map[string]any) (*FailedVehicleTask, error) {
	raw, ok := values["task_data"].(string)
	if !ok {
		return nil, fmt.Errorf("message has no task_data")
	}
	var t FailedVehicleTask
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", FailedVehicleTaskType, err)
	}
	return &t, nil
}
