package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent is one agent process launched on a machine.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	MachineID int       `json:"machine_id"`
	// StartTime and StopTime are epoch seconds. A nil StopTime means the agent is still running.
	StartTime int64         `json:"start_time"`
	StopTime  *int64        `json:"stop_time"`
	ParentID  *uuid.UUID    `json:"parent_id,omitempty"`
	CCServer  SocketAddress `json:"cc_server"`
}

// Running reports whether the agent has not stopped yet.
func (a Agent) Running() bool {
	return a.StopTime == nil
}

// Started returns the start time in UTC.
func (a Agent) Started() time.Time {
	return time.Unix(a.StartTime, 0).UTC()
}

// Stopped returns the stop time in UTC and false if the agent is still running.
func (a Agent) Stopped() (time.Time, bool) {
	if a.StopTime == nil {
		return time.Time{}, false
	}
	return time.Unix(*a.StopTime, 0).UTC(), true
}

// Clone returns a copy that shares no pointers with a.
func (a Agent) Clone() Agent {
	if a.StopTime != nil {
		stop := *a.StopTime
		a.StopTime = &stop
	}
	if a.ParentID != nil {
		parent := *a.ParentID
		a.ParentID = &parent
	}
	return a
}
