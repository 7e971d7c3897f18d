package storage

import "time"

// DeliveryRecord is one fired notification as handed to a delivery sink.
// Error is empty when the sink accepted it.
type DeliveryRecord struct {
	ID             int64
	NotificationID string
	TaskID         int64
	Type           string
	Title          string
	TriggerAt      time.Time
	FiredAt        time.Time
	Error          string
}

func (d DeliveryRecord) Failed() bool {
	return d.Error != ""
}

type PendingFilter struct {
	TaskID int64
	Before *time.Time
	Limit  int
	Offset int
}

type DeliveryFilter struct {
	TaskID     int64
	FailedOnly bool
	Limit      int
	Offset     int
}
