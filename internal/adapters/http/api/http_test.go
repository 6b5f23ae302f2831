package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/http/api"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/repository"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/source"
	service "github.com/safer-strategy/data-transformation-tool/internal/app"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// mockRuns is an in-memory RunService.
type mockRuns struct {
	mu        sync.Mutex
	runs      map[string]*repository.Run
	byContent map[string]string
	uploads   map[string]string
	submitErr error
	files     map[string]string
}

func newMockRuns() *mockRuns {
	return &mockRuns{
		runs:      make(map[string]*repository.Run),
		byContent: make(map[string]string),
		uploads:   make(map[string]string),
		files:     make(map[string]string),
	}
}

func (m *mockRuns) Submit(_ context.Context, name string, body io.Reader) (*repository.Run, bool, error) {
	if m.submitErr != nil {
		return nil, false, m.submitErr
	}
	if !source.Supported(name) {
		return nil, false, fmt.Errorf("%w: %s", source.ErrUnsupported, name)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byContent[string(data)]; ok {
		return m.runs[id], true, nil
	}
	id := fmt.Sprintf("run-%d", len(m.runs)+1)
	run := &repository.Run{ID: id, Name: name, Status: repository.RunQueued}
	m.runs[id] = run
	m.byContent[string(data)] = id
	m.uploads[id] = string(data)
	return run, false, nil
}

func (m *mockRuns) Run(_ context.Context, id string) (*repository.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrRunNotFound, id)
	}
	return run, nil
}

func (m *mockRuns) Runs(_ context.Context, limit int) ([]*repository.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Run
	for i := len(m.runs); i >= 1 && len(out) < max(limit, 1); i-- {
		out = append(out, m.runs[fmt.Sprintf("run-%d", i)])
	}
	return out, nil
}

func (m *mockRuns) File(ctx context.Context, id, kind string) (string, error) {
	if _, err := m.Run(ctx, id); err != nil {
		return "", err
	}
	path, ok := m.files[id+"/"+kind]
	if !ok {
		return "", fmt.Errorf("%w: no %s file", service.ErrRunNotFound, kind)
	}
	return path, nil
}

func (m *mockRuns) GetStats(context.Context) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"totalRuns": len(m.runs)}
}

func upload(name, content string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	So(err, ShouldBeNil)
	_, err = part.Write([]byte(content))
	So(err, ShouldBeNil)
	So(mw.Close(), ShouldBeNil)

	req := httptest.NewRequest(http.MethodPost, "/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body.Code
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	reg, err := schema.Default()
	So(err, ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(deps, reg, opts...).Register(context.Background(), mux)
	return mux
}

func TestServer_Uploads(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockRuns()
		mux := newMux(deps, api.WithMaxUploadBytes(1024))

		Convey("When a CSV is uploaded", func() {
			w := serve(mux, upload("Users.csv", "email\na@x.com\n"))

			Convey("Then the run should be accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Header().Get("Location"), ShouldEqual, "/runs/run-1")
				var ack struct {
					Run       repository.Run `json:"run"`
					Duplicate bool           `json:"duplicate"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Run.ID, ShouldEqual, "run-1")
				So(ack.Run.Status, ShouldEqual, repository.RunQueued)
				So(ack.Duplicate, ShouldBeFalse)
				So(deps.uploads["run-1"], ShouldEqual, "email\na@x.com\n")
			})

			Convey("Then the same content should answer with the first run", func() {
				again := serve(mux, upload("copy.csv", "email\na@x.com\n"))
				So(again.Code, ShouldEqual, http.StatusOK)
				So(again.Body.String(), ShouldContainSubstring, `"duplicate":true`)
				So(again.Body.String(), ShouldContainSubstring, `"id":"run-1"`)
			})
		})

		Convey("When the upload is not multipart", func() {
			req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("email\n"))
			req.Header.Set("Content-Type", "text/csv")
			w := serve(mux, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w), ShouldEqual, "bad_request")
		})

		Convey("When the file field is missing", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			So(mw.WriteField("name", "x"), ShouldBeNil)
			So(mw.Close(), ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, "/runs", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			So(serve(mux, req).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the file type is unsupported", func() {
			w := serve(mux, upload("notes.txt", "hello"))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the upload exceeds the limit", func() {
			w := serve(mux, upload("big.csv", "email\n"+strings.Repeat("someone@example.com\n", 400)))
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(decodeError(w), ShouldEqual, "too_large")
		})

		Convey("When the queue is full", func() {
			deps.submitErr = service.ErrQueueFull
			w := serve(mux, upload("Users.csv", "email\n"))
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w), ShouldEqual, "backpressure")
		})

		Convey("When the service is not running", func() {
			deps.submitErr = service.ErrNotStarted
			So(serve(mux, upload("Users.csv", "email\n")).Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When submitting fails unexpectedly", func() {
			deps.submitErr = errors.New("disk full")
			w := serve(mux, upload("Users.csv", "email\n"))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w), ShouldEqual, "internal_error")
		})
	})
}

func TestServer_Runs(t *testing.T) {
	Convey("Given an API server with runs", t, func() {
		deps := newMockRuns()
		mux := newMux(deps)
		for i := range 3 {
			So(serve(mux, upload("Users.csv", fmt.Sprintf("email\nu%d@x.com\n", i))).Code, ShouldEqual, http.StatusAccepted)
		}

		Convey("When listing runs", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/runs?limit=2", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			var runs []repository.Run
			So(json.Unmarshal(w.Body.Bytes(), &runs), ShouldBeNil)
			So(runs, ShouldHaveLength, 2)
			So(runs[0].ID, ShouldEqual, "run-3")
		})

		Convey("When the limit is invalid", func() {
			for _, q := range []string{"0", "-1", "abc", "1001"} {
				w := serve(mux, httptest.NewRequest(http.MethodGet, "/runs?limit="+q, http.NoBody))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When fetching a run", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/runs/run-2", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"id":"run-2"`)
		})

		Convey("When fetching an unknown run", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/runs/nope", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w), ShouldEqual, "not_found")
		})

		Convey("When downloading an output file", func() {
			path := filepath.Join(t.TempDir(), "converted_Users.xlsx")
			So(os.WriteFile(path, []byte("workbook"), 0o644), ShouldBeNil)
			deps.files["run-1/converted"] = path

			w := serve(mux, httptest.NewRequest(http.MethodGet, "/runs/run-1/files/converted", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "workbook")
			So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "converted_Users.xlsx")
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/vnd.openxmlformats")

			So(serve(mux, httptest.NewRequest(http.MethodGet, "/runs/run-1/files/invalid", http.NoBody)).Code,
				ShouldEqual, http.StatusNotFound)
			So(serve(mux, httptest.NewRequest(http.MethodGet, "/runs/run-1/files/report", http.NoBody)).Code,
				ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Ambient(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(newMockRuns())

		Convey("Then health should expose metrics", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats should be JSON", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"totalRuns":0`)
		})

		Convey("Then the schema should be served as YAML", func() {
			w := serve(mux, httptest.NewRequest(http.MethodGet, "/schema", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/yaml; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, "name: User Groups")
		})

		Convey("Then wrong methods should be refused", func() {
			w := serve(mux, httptest.NewRequest(http.MethodDelete, "/runs", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given a wrapped kind error", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause should match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then a bare kind should render without a cause", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
