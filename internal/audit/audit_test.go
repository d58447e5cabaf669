package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libraryapi/internal/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, logger.Discard())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e *Entry) error {
		assert.Equal(t, fixed, e.Timestamp)
		assert.Equal(t, EntityBook, e.Entity)
		assert.Equal(t, "b1", e.EntityID)
		assert.Equal(t, ActionDelete, e.Action)
		assert.Equal(t, "admin-1", e.PerformedBy)
		assert.JSONEq(t, `{"title":"Dune"}`, string(e.Data))
		return nil
	})

	svc.Record(context.Background(), EntityBook, "b1", ActionDelete, "admin-1", map[string]string{"title": "Dune"})
}

func TestService_Record_SwallowsWriteErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, logger.Discard())

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), EntitySystem, "", ActionSeed, "admin-1", nil)
	})
}

func TestService_Record_SurvivesCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ *Entry) error {
		return ctx.Err()
	})

	svc.Record(ctx, EntityUser, "u1", ActionDeactivate, "admin-1", nil)
}

func TestHTTPHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	h := NewHTTPHandler(NewService(repo, logger.Discard()))

	repo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, q Query) ([]Entry, int, error) {
		assert.Equal(t, EntityBook, q.Entity)
		assert.Equal(t, 5, q.Limit)
		assert.Equal(t, 5, q.Offset)
		return []Entry{{ID: "a1", Entity: EntityBook, Action: ActionCreate}}, 6, nil
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/admin/audit?entity=book&page=2&page_size=5", nil)
	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []Entry        `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Len(t, body.Data, 1)
	assert.EqualValues(t, 6, body.Meta["total"])
}
