package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepilot/internal/access"
	"sitepilot/internal/apperr"
	"sitepilot/internal/config"
	"sitepilot/internal/events"
	"sitepilot/internal/models"
	"sitepilot/internal/orchestrator"
	"sitepilot/internal/utils/logger"
)

type fakeEdits struct {
	principal access.Principal
	id        string
	input     orchestrator.EditInput
	err       error
}

func (f *fakeEdits) ApplyEdit(_ context.Context, p access.Principal, id string, in orchestrator.EditInput) (*orchestrator.ApplyResult, error) {
	f.principal, f.id, f.input = p, id, in
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.ApplyResult{
		Change:       models.AppliedChange{Content: in.Content},
		Confirmation: "done",
	}, nil
}

type fakeReconciler struct {
	removed int
	err     error
	calls   int
}

func (f *fakeReconciler) ReconcileOrphans(context.Context) (int, error) {
	f.calls++
	return f.removed, f.err
}

func collect(bus *events.EventBus) chan events.EditResultPayload {
	ch := make(chan events.EditResultPayload, 4)
	bus.On(events.EditResult, func(data interface{}) {
		ch <- data.(events.EditResultPayload)
	})
	return ch
}

func editTask(t *testing.T, payload ApplyEditPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(TaskTypeApplyEdit, data)
}

var samplePayload = ApplyEditPayload{
	EditID:       "edit-1",
	Room:         "session-1",
	UserID:       "u-1",
	Role:         "editor",
	ClientType:   "desktop",
	DiscussionID: "d-1",
	PageID:       "page-1",
	Content:      "<h1>Hi</h1>",
	Description:  "headline",
}

func TestHandleApplyEditSuccess(t *testing.T) {
	bus := events.NewEventBus()
	results := collect(bus)
	edits := &fakeEdits{}
	h := NewTaskHandler(edits, &fakeReconciler{}, bus)

	require.NoError(t, h.HandleApplyEdit(context.Background(), editTask(t, samplePayload)))
	bus.Wait()

	assert.Equal(t, "u-1", edits.principal.ID)
	assert.True(t, edits.principal.Permissions.HasAll("write", "ai-assist", "publish"))
	assert.Equal(t, "d-1", edits.id)
	assert.Equal(t, "page-1", edits.input.PageID)
	assert.Equal(t, "headline", edits.input.Description)

	got := <-results
	assert.True(t, got.Success)
	assert.Equal(t, "session-1", got.Room)
	assert.Equal(t, "edit-1", got.EditID)
}

func TestHandleApplyEditFailureIsReportedAndNotRetried(t *testing.T) {
	bus := events.NewEventBus()
	results := collect(bus)
	h := NewTaskHandler(&fakeEdits{err: apperr.Forbidden()}, &fakeReconciler{}, bus)

	err := h.HandleApplyEdit(context.Background(), editTask(t, samplePayload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	bus.Wait()

	got := <-results
	assert.False(t, got.Success)
	assert.Equal(t, "Access denied", got.Message)
}

func TestHandleApplyEditBadPayload(t *testing.T) {
	bus := events.NewEventBus()
	edits := &fakeEdits{}
	h := NewTaskHandler(edits, &fakeReconciler{}, bus)

	err := h.HandleApplyEdit(context.Background(), asynq.NewTask(TaskTypeApplyEdit, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, edits.id)
}

func TestHandleReconcile(t *testing.T) {
	rec := &fakeReconciler{removed: 2}
	h := NewTaskHandler(&fakeEdits{}, rec, events.NewEventBus())
	require.NoError(t, h.HandleReconcile(context.Background(), asynq.NewTask(TaskTypeReconcile, nil)))
	assert.Equal(t, 1, rec.calls)

	rec.err = errors.New("db down")
	assert.Error(t, h.HandleReconcile(context.Background(), asynq.NewTask(TaskTypeReconcile, nil)))
}

func TestServerMuxRoutesTaskTypes(t *testing.T) {
	rec := &fakeReconciler{}
	edits := &fakeEdits{}
	h := NewTaskHandler(edits, rec, events.NewEventBus())
	srv := NewServer(config.RedisConfig{Addr: "127.0.0.1:0"}, config.WorkerConfig{}, h, logger.New("TEST"))

	mux := srv.Mux()
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypeReconcile, nil)))
	require.NoError(t, mux.ProcessTask(context.Background(), editTask(t, samplePayload)))

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "d-1", edits.id)
}

func TestInlineDispatcherRunsEdit(t *testing.T) {
	bus := events.NewEventBus()
	results := collect(bus)
	h := NewTaskHandler(&fakeEdits{}, &fakeReconciler{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, NewInlineDispatcher(h).DispatchApplyEdit(ctx, samplePayload))
	cancel()

	select {
	case got := <-results:
		assert.True(t, got.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("edit result was not published")
	}
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewScheduler(config.RedisConfig{Addr: mr.Addr()}, config.TasksConfig{}, logger.New("TEST"))

	err := s.RegisterCustomTask("every hour", TaskTypeReconcile, nil)
	assert.ErrorContains(t, err, "invalid schedule")
	require.NoError(t, s.RegisterCustomTask("0 * * * *", TaskTypeReconcile, nil))
}

func TestTaskClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewTaskClient(config.RedisConfig{Addr: mr.Addr()})
	defer c.Close()

	require.NoError(t, c.Ping(context.Background()))
	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

func TestEditResultReachesHubOnAnotherReplica(t *testing.T) {
	mr := miniredis.RunT(t)
	worker := NewTaskClient(config.RedisConfig{Addr: mr.Addr()})
	defer worker.Close()
	web := NewTaskClient(config.RedisConfig{Addr: mr.Addr()})
	defer web.Close()

	workerBus := events.NewEventBus()
	stranded := collect(workerBus)
	hubBus := events.NewEventBus()
	results := collect(hubBus)

	relay, err := events.StartRelay(context.Background(), web.Redis(), hubBus)
	require.NoError(t, err)
	defer relay.Close()

	h := NewTaskHandler(&fakeEdits{}, &fakeReconciler{}, events.NewRedisPublisher(worker.Redis()))
	require.NoError(t, h.HandleApplyEdit(context.Background(), editTask(t, samplePayload)))

	select {
	case got := <-results:
		assert.True(t, got.Success)
		assert.Equal(t, "session-1", got.Room)
		assert.Equal(t, "edit-1", got.EditID)
		assert.Equal(t, "Edit applied", got.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("edit result did not cross replicas")
	}
	assert.Empty(t, stranded)
}
