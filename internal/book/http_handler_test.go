package book

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"libraryapi/internal/audit"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *MockRepository) {
	ctrl := gomock.NewController(t)
	mockRepo := NewMockRepository(ctrl)
	return NewHTTPHandler(NewService(mockRepo), audit.Nop()), mockRepo
}

func TestHTTPHandler_List(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	testBook := Book{ID: "1", ISBN: "9780000000001", Title: "Test", TotalCopies: 1, AvailableCopies: 1}

	t.Run("success with filters", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, q Query) ([]Book, int, error) {
			assert.Equal(t, CategoryScience, q.Category)
			assert.Equal(t, "dune", q.Q)
			require.NotNil(t, q.Available)
			assert.True(t, *q.Available)
			assert.Equal(t, 10, q.Limit)
			assert.Equal(t, 10, q.Offset)
			return []Book{testBook}, 11, nil
		})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books?category=Science&q=dune&available=true&page=2&page_size=10", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data []Book         `json:"data"`
			Meta map[string]any `json:"meta"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Len(t, body.Data, 1)
		assert.EqualValues(t, 2, body.Meta["total_pages"])
	})

	t.Run("unknown category yields empty page", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books?category=Cooking", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("error", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, 0, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	handler, mockRepo := newTestHandler(t)
	testBook := Book{ID: "b1", ISBN: "9780000000001", Title: "Test", AvailableCopies: 0, TotalCopies: 2}

	t.Run("by id", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), "b1").Return(testBook, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books/b1", nil)
		r.SetPathValue("id", "b1")

		handler.Get(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"isAvailable":false`)
	})

	t.Run("falls back to isbn", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), "9780000000001").Return(Book{}, ErrNotFound)
		mockRepo.EXPECT().GetByISBN(gomock.Any(), "9780000000001").Return(testBook, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books/9780000000001", nil)
		r.SetPathValue("id", "9780000000001")

		handler.Get(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(Book{}, ErrNotFound)
		mockRepo.EXPECT().GetByISBN(gomock.Any(), "missing").Return(Book{}, ErrNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/books/missing", nil)
		r.SetPathValue("id", "missing")

		handler.Get(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHTTPHandler_Create(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("created with all copies available", func(t *testing.T) {
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b *Book) error {
			assert.Equal(t, "9780441013593", b.ISBN)
			assert.Equal(t, 3, b.AvailableCopies)
			assert.Equal(t, []string{"classic", "desert"}, b.Tags)
			b.ID = "new-id"
			return nil
		})

		body := `{"title":"Dune","author":"Frank Herbert","isbn":"978-0-441-01359-3","category":"Fiction","totalCopies":3,"tags":["desert"," classic","Desert"]}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/books", strings.NewReader(body))

		handler.Create(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"new-id"`)
	})

	t.Run("validation", func(t *testing.T) {
		body := `{"title":"Dune","author":"Frank Herbert","isbn":"abc","category":"Cooking","totalCopies":0}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/books", strings.NewReader(body))

		handler.Create(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "isbn")
		assert.Contains(t, w.Body.String(), "category")
		assert.Contains(t, w.Body.String(), "totalCopies")
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ErrAlreadyExists)

		body := `{"title":"Dune","author":"Frank Herbert","isbn":"9780441013593","category":"Fiction","totalCopies":1}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/admin/books", strings.NewReader(body))

		handler.Create(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHTTPHandler_Delete(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	mockRepo.EXPECT().Delete(gomock.Any(), "b1").Return(nil)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/admin/books/b1", nil)
	r.SetPathValue("id", "b1")
	handler.Delete(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)

	mockRepo.EXPECT().Delete(gomock.Any(), "b2").Return(ErrNotFound)
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodDelete, "/api/admin/books/b2", nil)
	r.SetPathValue("id", "b2")
	handler.Delete(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
