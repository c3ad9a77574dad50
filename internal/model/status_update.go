package model

import "time"

// StatusUpdate запись аудита о переходе, выполненном обходом или операцией
type StatusUpdate struct {
	SessionID int64         `json:"session_id"`
	OldStatus BookingStatus `json:"old_status"`
	NewStatus BookingStatus `json:"new_status"`
	Timestamp time.Time     `json:"timestamp"`
	Reason    string        `json:"reason"`
	IsDelayed *bool         `json:"is_delayed,omitempty"`
}
