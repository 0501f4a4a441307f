package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommandStatus is the lifecycle state of a queued actuation request.
type CommandStatus string

const (
	CommandPending   CommandStatus = "pending"
	CommandStarted   CommandStatus = "started"
	CommandCompleted CommandStatus = "completed"
	CommandFailed    CommandStatus = "failed"
	CommandCancelled CommandStatus = "cancelled" // administrative only, never via device ack
)

// CommandTypeWater is the only actuation type currently supported.
const CommandTypeWater = "water"

// Command is a queued actuation request for a field device. Only a device
// acknowledgment moves it out of pending; terminal states are final.
type Command struct {
	ID          string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DeviceID    string        `gorm:"size:64;index:idx_commands_device_status" json:"device_id"`
	Type        string        `gorm:"size:32;not null" json:"type"`
	Payload     string        `gorm:"type:text" json:"payload"` // JSON string
	Status      CommandStatus `gorm:"size:16;index:idx_commands_device_status;not null" json:"status"`
	Result      string        `gorm:"type:text" json:"result,omitempty"` // JSON string
	Error       string        `gorm:"size:512" json:"error,omitempty"`
	CreatedAt   time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func (c *Command) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = CommandPending
	}
	return nil
}

// IsTerminal reports whether no further transitions are allowed.
func (s CommandStatus) IsTerminal() bool {
	return s == CommandCompleted || s == CommandFailed || s == CommandCancelled
}

// ValidAckStatus reports whether s is a status a device may acknowledge.
func ValidAckStatus(s CommandStatus) bool {
	return s == CommandStarted || s == CommandCompleted || s == CommandFailed
}

// commandTransitions is the explicit edge table of the command state machine.
var commandTransitions = map[CommandStatus][]CommandStatus{
	CommandPending: {CommandStarted, CommandCompleted, CommandFailed},
	CommandStarted: {CommandCompleted, CommandFailed},
}

// ErrInvalidTransition is returned when an acknowledgment does not follow
// an edge of the command state machine.
type ErrInvalidTransition struct {
	From CommandStatus
	To   CommandStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid command transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to CommandStatus) bool {
	for _, next := range commandTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
