package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

// CreateCommand enqueues a new pending command. No merging or deduplication:
// gating too-frequent requests is the caller's job.
func (s *gormStore) CreateCommand(ctx context.Context, cmd *model.Command) error {
	if err := s.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}
	return nil
}

// PendingCommands returns all pending commands for a device, oldest first.
// This is a pure read: nothing is claimed, the device is trusted to be the
// sole consumer and to acknowledge promptly.
func (s *gormStore) PendingCommands(ctx context.Context, deviceID string) ([]model.Command, error) {
	var cmds []model.Command
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, model.CommandPending).
		Order("created_at ASC").
		Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to poll commands: %w", err)
	}
	return cmds, nil
}

// GetCommand returns one command by ID.
func (s *gormStore) GetCommand(ctx context.Context, id string) (*model.Command, error) {
	var cmd model.Command
	if err := s.db.WithContext(ctx).First(&cmd, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cmd, nil
}

// AckCommand applies a device acknowledgment as a single-row transactional
// update. Repeating a terminal acknowledgment with the same status is
// idempotent and returns the stored row unchanged; any edge outside the
// state machine is rejected with ErrInvalidTransition.
func (s *gormStore) AckCommand(ctx context.Context, id string, status model.CommandStatus, result, errMsg string) (*model.Command, error) {
	var cmd model.Command
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&cmd, "id = ?", id).Error; err != nil {
			return err
		}

		if cmd.Status == status && status.IsTerminal() {
			return nil // idempotent repeat, CompletedAt untouched
		}

		if !model.CanTransition(cmd.Status, status) {
			return &model.ErrInvalidTransition{From: cmd.Status, To: status}
		}

		cmd.Status = status
		if status == model.CommandCompleted || status == model.CommandFailed {
			now := time.Now().UTC()
			cmd.CompletedAt = &now
			cmd.Result = result
			cmd.Error = errMsg
		}
		return tx.Save(&cmd).Error
	})
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

// CleanupCommands deletes terminal commands older than the cutoff. Purely a
// retention operation with no effect on live flows.
func (s *gormStore) CleanupCommands(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]model.CommandStatus{model.CommandCompleted, model.CommandFailed, model.CommandCancelled},
			olderThan).
		Delete(&model.Command{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up commands: %w", res.Error)
	}
	return res.RowsAffected, nil
}
