package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/pathgraph/internal/apperr"
	"github.com/starford/pathgraph/internal/buildservice"
	"github.com/starford/pathgraph/internal/pipeline"
	"github.com/starford/pathgraph/internal/source"
	"github.com/starford/pathgraph/internal/testutil"
)

type fakeBuilds struct {
	status     *buildservice.Status
	triggerErr error
	triggered  []string
	limits     []int
}

func (f *fakeBuilds) Latest() (buildservice.Status, error) {
	if f.status == nil {
		return buildservice.Status{}, apperr.ErrNoBuild
	}
	return *f.status, nil
}

func (f *fakeBuilds) History(limit int) ([]buildservice.Status, error) {
	f.limits = append(f.limits, limit)
	if f.status == nil {
		return []buildservice.Status{}, nil
	}
	return []buildservice.Status{*f.status}, nil
}

func (f *fakeBuilds) Trigger(trigger string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggered = append(f.triggered, trigger)
	return nil
}

// sseStub writes headers and blocks until the request is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func do(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLatestBuild_NoneYet(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, false, "", nil)
	if w := do(router, http.MethodGet, "/builds/latest", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestLatestBuild(t *testing.T) {
	fb := &fakeBuilds{status: &buildservice.Status{State: buildservice.StateSucceeded, Trigger: "startup"}}
	router := NewRouter(fb, false, "", nil)

	w := do(router, http.MethodGet, "/builds/latest", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st buildservice.Status
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != buildservice.StateSucceeded || st.Trigger != "startup" {
		t.Errorf("status = %+v", st)
	}
}

func TestListBuilds(t *testing.T) {
	fb := &fakeBuilds{status: &buildservice.Status{State: buildservice.StateFailed, Trigger: "watch"}}
	router := NewRouter(fb, false, "", nil)

	w := do(router, http.MethodGet, "/builds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var hist []buildservice.Status
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].Trigger != "watch" {
		t.Errorf("history = %+v", hist)
	}

	if w := do(router, http.MethodGet, "/builds?limit=5", ""); w.Code != http.StatusOK {
		t.Errorf("limit=5 status = %d", w.Code)
	}
	if len(fb.limits) != 2 || fb.limits[0] != defaultHistoryLimit || fb.limits[1] != 5 {
		t.Errorf("limits = %v", fb.limits)
	}

	for _, q := range []string{"0", "-1", "abc", "201"} {
		if w := do(router, http.MethodGet, "/builds?limit="+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestTriggerBuild(t *testing.T) {
	fb := &fakeBuilds{}
	router := NewRouter(fb, false, "", nil)

	w := do(router, http.MethodPost, "/builds", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(fb.triggered) != 1 || fb.triggered[0] != "api" {
		t.Errorf("triggered = %v", fb.triggered)
	}
}

func TestTriggerBuild_Conflict(t *testing.T) {
	router := NewRouter(&fakeBuilds{triggerErr: apperr.ErrBuildInProgress}, false, "", nil)
	if w := do(router, http.MethodPost, "/builds", ""); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestTriggerBuild_EndToEnd(t *testing.T) {
	store := testutil.TestStore(t)
	path := testutil.WriteJSONL(t, "records.jsonl", `{"name":"MTOR","type":"核心基因","related_pathway":"autophagy"}`)
	svc := buildservice.New(source.NewJSONL(path), func(progress func(pipeline.Progress)) *pipeline.Pipeline {
		return pipeline.New(store, nil, pipeline.WithLogger(testutil.Logger()), pipeline.WithProgress(progress))
	}, nil, testutil.Logger())
	t.Cleanup(svc.Close)
	router := NewRouter(svc, false, "", nil)

	if w := do(router, http.MethodPost, "/builds", ""); w.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d", w.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w := do(router, http.MethodGet, "/builds/latest", "")
		var st buildservice.Status
		_ = json.Unmarshal(w.Body.Bytes(), &st)
		if st.State == buildservice.StateSucceeded {
			if st.Report == nil || st.Report.Store.TotalRelationships() != 1 {
				t.Errorf("report = %+v", st.Report)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("build did not finish, last status %d: %s", w.Code, w.Body.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, true, "secret", nil)
	if w := do(router, http.MethodPost, "/builds", "secret"); w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, true, "secret", nil)
	if w := do(router, http.MethodGet, "/builds/latest", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	fb := &fakeBuilds{}
	router := NewRouter(fb, true, "secret", nil)
	if w := do(router, http.MethodPost, "/builds", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(fb.triggered) != 0 {
		t.Error("unauthorized request must not trigger a build")
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, false, "", nil)
	if w := do(router, http.MethodGet, "/builds/latest", ""); w.Code == http.StatusUnauthorized {
		t.Error("auth disabled should not 401")
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, true, "secret", sseStub)
	if w := do(router, http.MethodGet, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := NewRouter(&fakeBuilds{}, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
