package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/jackcount/internal/adapters/http/api"
	service "github.com/okian/jackcount/internal/app"
	"github.com/okian/jackcount/internal/domain/model"
	"github.com/okian/jackcount/internal/domain/types"
	"github.com/okian/jackcount/internal/simulate"
	"github.com/okian/jackcount/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// mockDependencies implements api.Dependencies.
type mockDependencies struct {
	mu       sync.Mutex
	sessions map[string]types.SessionView
	seen     map[string]bool
	enqueued []model.Frame
	err      error
	full     bool
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		sessions: map[string]types.SessionView{},
		seen:     map[string]bool{},
	}
}

func (m *mockDependencies) StartSession(_ context.Context) (types.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.SessionView{}, m.err
	}
	id := fmt.Sprintf("s%d", len(m.sessions)+1)
	v := types.SessionView{ID: id, State: "indeterminate"}
	m.sessions[id] = v
	return v, nil
}

func (m *mockDependencies) StopSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return service.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockDependencies) ResetSession(_ context.Context, id string) (types.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions[id]
	if !ok {
		return types.SessionView{}, service.ErrNotFound
	}
	v.Count = 0
	m.sessions[id] = v
	return v, nil
}

func (m *mockDependencies) Session(_ context.Context, id string) (types.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.sessions[id]
	if !ok {
		return types.SessionView{}, fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	return v, nil
}

func (m *mockDependencies) Sessions(_ context.Context) ([]types.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []types.SessionView
	for _, v := range m.sessions {
		out = append(out, v)
	}
	return out, nil
}

func (m *mockDependencies) Submit(_ context.Context, f model.Frame) (types.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return types.FrameResult{}, m.err
	}
	if _, ok := m.sessions[f.SessionID]; !ok {
		return types.FrameResult{}, service.ErrNotFound
	}
	if f.FrameID != "" && m.seen[f.FrameID] {
		return types.FrameResult{SessionID: f.SessionID, FrameID: f.FrameID, Duplicate: true}, nil
	}
	m.seen[f.FrameID] = true
	return types.FrameResult{SessionID: f.SessionID, FrameID: f.FrameID, Seq: f.Seq, Outcome: "held", Confident: true}, nil
}

func (m *mockDependencies) Enqueue(_ context.Context, f model.Frame) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false, service.ErrBackpressure
	}
	if _, ok := m.sessions[f.SessionID]; !ok {
		return false, service.ErrNotFound
	}
	if f.FrameID != "" && m.seen[f.FrameID] {
		return true, nil
	}
	m.seen[f.FrameID] = true
	m.enqueued = append(m.enqueued, f)
	return false, nil
}

func (m *mockDependencies) GetStats(_ context.Context) types.Stats {
	return types.Stats{ActiveSessions: len(m.sessions), Workers: 4, CadenceUnit: "per_second"}
}

func frameBody(id string, seq int64, kind simulate.Kind) *bytes.Reader {
	ts := time.Date(2026, 1, 1, 0, 0, int(seq), 0, time.UTC)
	data, _ := json.Marshal(types.FrameRequest{
		FrameID:   id,
		Seq:       seq,
		TS:        &ts,
		Keypoints: simulate.Pose(kind, nil, 0),
	})
	return bytes.NewReader(data)
}

func do(h http.Handler, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.NewDecoder(w.Body).Decode(&out)
	return out
}

func TestRouter(t *testing.T) {
	Convey("Given a router over mocked dependencies", t, func() {
		deps := newMockDependencies()
		router := api.NewRouter(deps)

		Convey("Health reports ok", func() {
			w := do(router, http.MethodGet, "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Metrics are exposed in Prometheus format", func() {
			_ = do(router, http.MethodGet, "/healthz", nil)
			w := do(router, http.MethodGet, "/metrics", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "jackcount_")
		})

		Convey("Stats are returned as JSON", func() {
			w := do(router, http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var st types.Stats
			So(json.NewDecoder(w.Body).Decode(&st), ShouldBeNil)
			So(st.Workers, ShouldEqual, 4)
		})

		Convey("Unknown routes are 404 and wrong methods 405", func() {
			So(do(router, http.MethodGet, "/unknown", nil).Code, ShouldEqual, http.StatusNotFound)
			So(do(router, http.MethodPut, "/sessions", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSessionsHandler(t *testing.T) {
	Convey("Given a router over mocked dependencies", t, func() {
		deps := newMockDependencies()
		router := api.NewRouter(deps)

		Convey("When listing with no sessions", func() {
			w := do(router, http.MethodGet, "/sessions", nil)

			Convey("Then an empty array is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When creating a session", func() {
			w := do(router, http.MethodPost, "/sessions", nil)

			Convey("Then it is returned with 201 and a Location", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(w.Header().Get("Location"), ShouldEqual, "/sessions/s1")
				var v types.SessionView
				So(json.NewDecoder(w.Body).Decode(&v), ShouldBeNil)
				So(v.ID, ShouldEqual, "s1")
			})

			Convey("Then it can be fetched, reset and deleted", func() {
				So(do(router, http.MethodGet, "/sessions/s1", nil).Code, ShouldEqual, http.StatusOK)
				So(do(router, http.MethodPost, "/sessions/s1/reset", nil).Code, ShouldEqual, http.StatusOK)
				So(do(router, http.MethodDelete, "/sessions/s1", nil).Code, ShouldEqual, http.StatusNoContent)
				So(do(router, http.MethodGet, "/sessions/s1", nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the session is unknown", func() {
			w := do(router, http.MethodGet, "/sessions/missing", nil)

			Convey("Then 404 with a not_found code", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w)["code"], ShouldEqual, "not_found")
			})

			Convey("Then reset and delete are 404 too", func() {
				So(do(router, http.MethodPost, "/sessions/missing/reset", nil).Code, ShouldEqual, http.StatusNotFound)
				So(do(router, http.MethodDelete, "/sessions/missing", nil).Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the session limit is reached", func() {
			deps.err = fmt.Errorf("create: %w", service.ErrSessionLimit)
			w := do(router, http.MethodPost, "/sessions", nil)

			Convey("Then 429 with a session_limit code", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "session_limit")
			})
		})

		Convey("When the service is not running", func() {
			deps.err = service.ErrNotStarted
			w := do(router, http.MethodGet, "/sessions", nil)

			Convey("Then 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When an unexpected error occurs", func() {
			deps.err = errors.New("boom")
			w := do(router, http.MethodPost, "/sessions", nil)

			Convey("Then 500 with an internal_error code", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["code"], ShouldEqual, "internal_error")
			})
		})
	})
}

func TestFramesHandler(t *testing.T) {
	Convey("Given a router with one session", t, func() {
		deps := newMockDependencies()
		router := api.NewRouter(deps)
		So(do(router, http.MethodPost, "/sessions", nil).Code, ShouldEqual, http.StatusCreated)

		Convey("When posting a valid frame inline", func() {
			w := do(router, http.MethodPost, "/sessions/s1/frames", frameBody("f1", 1, simulate.KindDown))

			Convey("Then the frame result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res types.FrameResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res.SessionID, ShouldEqual, "s1")
				So(res.FrameID, ShouldEqual, "f1")
				So(res.Seq, ShouldEqual, 1)
				So(res.Duplicate, ShouldBeFalse)
			})

			Convey("Then posting it again is reported as a duplicate", func() {
				w := do(router, http.MethodPost, "/sessions/s1/frames", frameBody("f1", 1, simulate.KindDown))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When posting a frame asynchronously", func() {
			w := do(router, http.MethodPost, "/sessions/s1/frames?async=true", frameBody("f2", 2, simulate.KindUp))

			Convey("Then 202 is returned and the frame is queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].CapturedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then a repeat is 200 with duplicate set", func() {
				w := do(router, http.MethodPost, "/sessions/s1/frames?async=true", frameBody("f2", 2, simulate.KindUp))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the queue is full", func() {
			deps.full = true
			w := do(router, http.MethodPost, "/sessions/s1/frames?async=1", frameBody("f3", 3, simulate.KindUp))

			Convey("Then 429 with a backpressure code", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeError(w)["code"], ShouldEqual, "backpressure")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(router, http.MethodPost, "/sessions/s1/frames", bytes.NewReader([]byte("{")))

			Convey("Then 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the frame has the wrong number of keypoints", func() {
			w := do(router, http.MethodPost, "/sessions/s1/frames", bytes.NewReader([]byte(`{"seq":1,"keypoints":[{"x":1,"y":2,"score":0.9}]}`)))

			Convey("Then 400 naming the keypoints", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["message"], ShouldContainSubstring, "keypoints")
			})
		})

		Convey("When the async flag is malformed", func() {
			w := do(router, http.MethodPost, "/sessions/s1/frames?async=maybe", frameBody("f4", 4, simulate.KindUp))

			Convey("Then 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the session does not exist", func() {
			w := do(router, http.MethodPost, "/sessions/nope/frames", frameBody("f5", 5, simulate.KindUp))

			Convey("Then 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the service rejects the frame", func() {
			deps.err = fmt.Errorf("%w: short", service.ErrInvalidFrame)
			w := do(router, http.MethodPost, "/sessions/s1/frames", frameBody("f6", 6, simulate.KindUp))

			Convey("Then 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestRouterWithService(t *testing.T) {
	Convey("Given a router over a running service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(64))
		So(svc.Start(context.Background()), ShouldBeNil)
		router := api.NewRouter(svc)

		w := do(router, http.MethodPost, "/sessions", nil)
		So(w.Code, ShouldEqual, http.StatusCreated)
		var view types.SessionView
		So(json.NewDecoder(w.Body).Decode(&view), ShouldBeNil)
		path := "/sessions/" + view.ID

		Convey("When a down, up, down sequence is posted inline", func() {
			var counts []int
			for i, k := range []simulate.Kind{simulate.KindDown, simulate.KindUp, simulate.KindDown} {
				w := do(router, http.MethodPost, path+"/frames", frameBody(fmt.Sprint("f", i), int64(i), k))
				So(w.Code, ShouldEqual, http.StatusOK)
				var res types.FrameResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				counts = append(counts, res.Count)
			}

			Convey("Then one repetition is counted on the last frame", func() {
				So(counts, ShouldResemble, []int{0, 0, 1})
				w := do(router, http.MethodGet, path, nil)
				var v types.SessionView
				So(json.NewDecoder(w.Body).Decode(&v), ShouldBeNil)
				So(v.Count, ShouldEqual, 1)
				So(v.State, ShouldEqual, "down")
				So(v.Cadence, ShouldEqual, 1.0)
				So(v.Frames, ShouldEqual, 3)
			})

			Convey("Then reset zeroes the count", func() {
				w := do(router, http.MethodPost, path+"/reset", nil)
				var v types.SessionView
				So(json.NewDecoder(w.Body).Decode(&v), ShouldBeNil)
				So(v.Count, ShouldEqual, 0)
				So(v.State, ShouldEqual, "indeterminate")
			})
		})

		Convey("When an occluded frame is posted", func() {
			w := do(router, http.MethodPost, path+"/frames", frameBody("occ", 0, simulate.KindOccluded))

			Convey("Then it is reported as low confidence", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res types.FrameResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res.Confident, ShouldBeFalse)
				So(res.Outcome, ShouldEqual, "low_confidence")
				So(res.Rejected, ShouldContain, "left_ankle")
			})
		})

		Reset(func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}
