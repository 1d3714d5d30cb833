package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/events"
	"sitepilot/internal/orchestrator"
	"sitepilot/internal/utils/logger"
)

// EditApplier runs the apply-edit workflow.
type EditApplier interface {
	ApplyEdit(ctx context.Context, p access.Principal, discussionID string, in orchestrator.EditInput) (*orchestrator.ApplyResult, error)
}

// Reconciler removes orphaned discussions.
type Reconciler interface {
	ReconcileOrphans(ctx context.Context) (int, error)
}

// TaskHandler processes queued tasks
type TaskHandler struct {
	edits      EditApplier
	reconciler Reconciler
	results    events.ResultPublisher
	logger     *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(edits EditApplier, reconciler Reconciler, results events.ResultPublisher) *TaskHandler {
	return &TaskHandler{
		edits:      edits,
		reconciler: reconciler,
		results:    results,
		logger:     logger.New("task_handler"),
	}
}

// HandleApplyEdit runs a queued edit and publishes its outcome to the session room.
func (h *TaskHandler) HandleApplyEdit(ctx context.Context, t *asynq.Task) error {
	var payload ApplyEditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid edit payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.applyEdit(ctx, payload); err != nil {
		return fmt.Errorf("edit %s: %v: %w", payload.EditID, err, asynq.SkipRetry)
	}
	return nil
}

func (h *TaskHandler) applyEdit(ctx context.Context, payload ApplyEditPayload) error {
	principal := access.NewPrincipal(payload.UserID, payload.Role, payload.ClientType)
	result, err := h.edits.ApplyEdit(ctx, principal, payload.DiscussionID, orchestrator.EditInput{
		PageID:          payload.PageID,
		Content:         payload.Content,
		Description:     payload.Description,
		Element:         payload.Element,
		PreviousContent: payload.PreviousContent,
	})

	outcome := events.EditResultPayload{
		Room:    payload.Room,
		EditID:  payload.EditID,
		Success: err == nil,
	}
	if err != nil {
		outcome.Message = apperr.PublicMessage(err)
	} else {
		outcome.Message = "Edit applied"
		outcome.Data = result
	}
	if perr := h.results.PublishEditResult(ctx, outcome); perr != nil {
		h.logger.Warn("edit %s result not delivered: %v", payload.EditID, perr)
	}

	if err != nil {
		h.logger.Warn("edit %s on discussion %s failed: %v", payload.EditID, payload.DiscussionID, err)
		return err
	}
	h.logger.Info("edit %s applied to page %s", payload.EditID, payload.PageID)
	return nil
}

// HandleReconcile deletes discussions whose project no longer exists.
func (h *TaskHandler) HandleReconcile(ctx context.Context, _ *asynq.Task) error {
	removed, err := h.reconciler.ReconcileOrphans(ctx)
	if err != nil {
		return h.logger.Error("failed to reconcile discussions", err)
	}
	if removed > 0 {
		h.logger.Info("removed %d orphaned discussions", removed)
	}
	return nil
}
