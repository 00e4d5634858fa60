package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stagehubhq/stagehub/internal/domain/event"
	"github.com/stagehubhq/stagehub/internal/http/handlers"
	"github.com/stagehubhq/stagehub/internal/utils"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

func newUUID() string {
	return uuid.NewString()
}

// Fake repository implementation of the handlers.EventsStore interface

type fakeEventsRepo struct {
	createFn     func(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error)
	getFn        func(ctx context.Context, id string) (event.Event, error)
	listCursorFn func(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error)
	updateFn     func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error)
	deleteFn     func(ctx context.Context, id string) error
}

func (f *fakeEventsRepo) Create(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req, createdBy)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) ListCursor(
	ctx context.Context,
	filter event.ListEventsFilter,
	afterDate time.Time,
	afterID string,
) ([]event.Event, *string, bool, error) {
	if f.listCursorFn != nil {
		return f.listCursorFn(ctx, filter, afterDate, afterID)
	}
	return []event.Event{}, nil, false, nil
}

func (f *fakeEventsRepo) Update(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}

	return event.Event{}, nil
}

func (f *fakeEventsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

// small helper function which returns the gin engine to mount one handler per test

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func TestCreateEventHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		repoSetup      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			body: `{
				"title": "Indie Night",
				"description": "Live set",
				"date": "` + now.Format(time.RFC3339) + `",
				"location": "Toronto",
				"price": 25.5
			}`,
			repoSetup: func(f *fakeEventsRepo) {
				f.createFn = func(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
					return event.Event{
						ID:          newUUID(),
						Title:       req.Title,
						Description: req.Description,
						Date:        req.Date,
						Location:    req.Location,
						Price:       req.Price,
						CreatedBy:   createdBy,
						CreatedAt:   now,
						UpdatedAt:   now,
					}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "validation_error",
			body: `{"title": ""}`,
			repoSetup: func(f *fakeEventsRepo) {
				// invalid payload, the repo should not be called
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			body: `{
				"title": "Indie Night",
				"date": "` + now.Format(time.RFC3339) + `"
			}`,
			repoSetup: func(f *fakeEventsRepo) {
				f.createFn = func(ctx context.Context, req event.CreateEventRequest, createdBy string) (event.Event, error) {
					return event.Event{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeEventsRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewEventsHandler(fakeRepo, nil)

			r := setupRouter(http.MethodPost, "/events", h.CreateEvent)

			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestListEventsHandler(t *testing.T) {
	now := time.Now().UTC()

	// a real cursor the handler can decode
	validCursor, err := utils.EncodeEventCursor(now.Add(-time.Minute), newUUID())

	if err != nil {
		t.Fatalf("failed to build cursor: %v", err)
	}

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeEventsRepo)
		wantStatusCode int
		wantCount      int
	}{
		{
			name: "success_first_page_no_cursor",
			url:  "/events?limit=20",
			repoSetup: func(f *fakeEventsRepo) {
				f.listCursorFn = func(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error) {
					if !afterDate.IsZero() || afterID != "" {
						return nil, nil, false, errors.New("first page must not carry a cursor position")
					}

					next := "next-cursor"
					return []event.Event{
						{ID: "id-1", Title: "Event 1", Date: now, CreatedAt: now, UpdatedAt: now},
					}, &next, true, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name: "success_with_search_query",
			url:  "/events?limit=20&q=indie+rock",
			repoSetup: func(f *fakeEventsRepo) {
				f.listCursorFn = func(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error) {
					if filter.Query == nil || *filter.Query != "indie rock" {
						return nil, nil, false, errors.New("query filter not passed")
					}

					return []event.Event{
						{ID: "id-search-1", Title: "Indie Rock Night", Date: now, CreatedAt: now, UpdatedAt: now},
					}, nil, false, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name: "success_with_valid_cursor",
			url:  "/events?limit=20&cursor=" + validCursor,
			repoSetup: func(f *fakeEventsRepo) {
				f.listCursorFn = func(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error) {
					if afterDate.IsZero() || afterID == "" {
						return nil, nil, false, errors.New("cursor position not forwarded")
					}

					next := "next-cursor-2"
					return []event.Event{
						{ID: "id-2", Title: "Event 2", Date: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now},
					}, &next, true, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCount:      1,
		},
		{
			name:           "invalid_cursor",
			url:            "/events?cursor=!!!",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid_limit",
			url:            "/events?limit=9999",
			repoSetup:      nil,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			url:  "/events?limit=20",
			repoSetup: func(f *fakeEventsRepo) {
				f.listCursorFn = func(ctx context.Context, filter event.ListEventsFilter, afterDate time.Time, afterID string) ([]event.Event, *string, bool, error) {
					return nil, nil, false, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeEventsRepo{}
			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewEventsHandler(fakeRepo, nil)
			r := setupRouter(http.MethodGet, "/events", h.ListEvents)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Count int `json:"count"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Count != tt.wantCount {
					t.Fatalf("got count %d, want %d", resp.Count, tt.wantCount)
				}
			}
		})
	}
}

func TestGetEventByIDHandler(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()
	missingID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/events/" + validID,
			repoSetup: func(f *fakeEventsRepo) {
				f.getFn = func(ctx context.Context, id string) (event.Event, error) {
					return event.Event{ID: id, Title: "Event-1", Date: now, CreatedAt: now, UpdatedAt: now}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			url:  "/events/" + missingID,
			repoSetup: func(f *fakeEventsRepo) {
				f.getFn = func(ctx context.Context, id string) (event.Event, error) {
					return event.Event{}, event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "repo_error",
			url:  "/events/" + validID,
			repoSetup: func(f *fakeEventsRepo) {
				f.getFn = func(ctx context.Context, id string) (event.Event, error) {
					return event.Event{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeEventsRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewEventsHandler(fakeRepo, nil)
			r := setupRouter(http.MethodGet, "/events/:id", h.GetEventByID)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdateEventHandler(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()
	missingID := newUUID()

	validBody := `{
		"title": "Updated Title",
		"description": "Updated description",
		"date": "` + now.Format(time.RFC3339) + `",
		"location": "Toronto",
		"price": 40
	}`

	tests := []struct {
		name           string
		url            string
		body           string
		repoSetup      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/events/" + validID,
			body: validBody,
			repoSetup: func(f *fakeEventsRepo) {
				f.updateFn = func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{
						ID:        id,
						Title:     req.Title,
						Date:      req.Date,
						Location:  req.Location,
						Price:     req.Price,
						CreatedAt: now.Add(-time.Hour),
						UpdatedAt: now,
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "not_found",
			url:  "/events/" + missingID,
			body: validBody,
			repoSetup: func(f *fakeEventsRepo) {
				f.updateFn = func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{}, event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "validation_error",
			url:  "/events/" + validID,
			body: `{"title": ""}`,
			repoSetup: func(f *fakeEventsRepo) {
				// repo should not be called at all in this case
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "repo_error",
			url:  "/events/" + validID,
			body: validBody,
			repoSetup: func(f *fakeEventsRepo) {
				f.updateFn = func(ctx context.Context, id string, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeEventsRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewEventsHandler(fakeRepo, nil)

			r := setupRouter(http.MethodPut, "/events/:id", h.UpdateEvent)
			req := httptest.NewRequest(http.MethodPut, tt.url, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeleteEventHandler(t *testing.T) {
	validID := newUUID()
	missingID := newUUID()

	tests := []struct {
		name           string
		url            string
		repoSetup      func(*fakeEventsRepo)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/events/" + validID,
			repoSetup: func(f *fakeEventsRepo) {
				f.deleteFn = func(ctx context.Context, id string) error {
					return nil
				}
			},
			wantStatusCode: http.StatusNoContent,
		},
		{
			name: "not_found",
			url:  "/events/" + missingID,
			repoSetup: func(f *fakeEventsRepo) {
				f.deleteFn = func(ctx context.Context, id string) error {
					return event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "repo_error",
			url:  "/events/" + validID,
			repoSetup: func(f *fakeEventsRepo) {
				f.deleteFn = func(ctx context.Context, id string) error {
					return errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakeEventsRepo{}

			if tt.repoSetup != nil {
				tt.repoSetup(fakeRepo)
			}

			h := handlers.NewEventsHandler(fakeRepo, nil)

			r := setupRouter(http.MethodDelete, "/events/:id", h.DeleteEvent)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestGetEventByIDHandler_ETagNotModified(t *testing.T) {
	now := time.Now().UTC()
	validID := newUUID()

	fakeRepo := &fakeEventsRepo{}
	calls := 0

	fakeRepo.getFn = func(ctx context.Context, id string) (event.Event, error) {
		calls++
		return event.Event{
			ID:        id,
			Title:     "Event-1",
			Date:      now,
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now,
		}, nil
	}

	h := handlers.NewEventsHandler(fakeRepo, nil)
	r := setupRouter(http.MethodGet, "/events/:id", h.GetEventByID)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodGet, "/events/"+validID, nil)
	r.ServeHTTP(w1, req1)

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header in first response")
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/events/"+validID, nil)
	req2.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("second call got %d, want %d, body=%s", w2.Code, http.StatusNotModified, w2.Body.String())
	}

	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body for 304, got %q", w2.Body.String())
	}

	if calls != 2 {
		t.Fatalf("expected repo to be called on each lookup, got %d calls", calls)
	}
}
