package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	jobmgr "github.com/aliskhannn/line-draw/internal/job"
	"github.com/aliskhannn/line-draw/internal/model"
)

// stubService records calls and returns canned results so handlers can be
// exercised without a running manager.
type stubService struct {
	startParams model.Params
	startErr    error
	resultImg   image.Image
	resultErr   error
}

func (s *stubService) Create(context.Context, image.Image) uuid.UUID { return uuid.New() }

func (s *stubService) Start(_ uuid.UUID, p model.Params) error {
	s.startParams = p
	return s.startErr
}

func (s *stubService) Status(uuid.UUID) (model.Snapshot, error) {
	return model.Snapshot{}, nil
}

func (s *stubService) Result(uuid.UUID) (image.Image, error) {
	return s.resultImg, s.resultErr
}

func (s *stubService) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubService) Subscribe(uuid.UUID) (model.Snapshot, <-chan model.Notification, <-chan model.Notification, error) {
	return model.Snapshot{}, nil, nil, nil
}

func newTestRouter(h *Handler) *ginext.Engine {
	r := ginext.New()
	r.POST("/api/jobs/:id/start", h.Start)
	r.GET("/api/jobs/:id/result/base64", h.ResultBase64)
	return r
}

func postStart(t *testing.T, r *ginext.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+uuid.NewString()+"/start", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStart_ExplicitCornerStart(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(NewHandler(stub))

	// An explicit zero is a valid corner start, not an omitted field.
	w := postStart(t, r, `{"params":{"blur_sigma":4,"iterations":20000,"start_x":0,"start_y":0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if stub.startParams.StartX != 0 || stub.startParams.StartY != 0 {
		t.Errorf("explicit corner start was rewritten: got (%f, %f), want (0, 0)",
			stub.startParams.StartX, stub.startParams.StartY)
	}
	if stub.startParams.BlurSigma != 4 {
		t.Errorf("blur_sigma = %f, want 4", stub.startParams.BlurSigma)
	}
	if stub.startParams.Iterations != 20_000 {
		t.Errorf("iterations = %d, want 20000", stub.startParams.Iterations)
	}
}

func TestStart_OmittedFieldsGetDefaults(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(NewHandler(stub))

	w := postStart(t, r, `{"params":{"iterations":20000}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	if stub.startParams.Iterations != 20_000 {
		t.Errorf("iterations = %d, want 20000", stub.startParams.Iterations)
	}
	if stub.startParams.BlurSigma != defaultBlurSigma {
		t.Errorf("blur_sigma = %f, want %f", stub.startParams.BlurSigma, defaultBlurSigma)
	}
	if stub.startParams.StartX != defaultStart || stub.startParams.StartY != defaultStart {
		t.Errorf("start = (%f, %f), want (%f, %f)",
			stub.startParams.StartX, stub.startParams.StartY, defaultStart, defaultStart)
	}
}

func TestStartRequest_Defaults(t *testing.T) {
	var req StartRequest
	p := req.params()

	if p.BlurSigma != defaultBlurSigma {
		t.Errorf("blur_sigma = %f, want %f", p.BlurSigma, defaultBlurSigma)
	}
	if p.Iterations != defaultIterations {
		t.Errorf("iterations = %d, want %d", p.Iterations, defaultIterations)
	}
	if p.StartX != defaultStart || p.StartY != defaultStart {
		t.Errorf("start = (%f, %f), want (%f, %f)", p.StartX, p.StartY, defaultStart, defaultStart)
	}

	if err := validateParams(p); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestStartRequest_KeepsExplicitZero(t *testing.T) {
	var req StartRequest
	if err := json.Unmarshal([]byte(`{"params":{"blur_sigma":4,"iterations":20000,"start_x":0,"start_y":0}}`), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	p := req.params()
	if p.StartX != 0 || p.StartY != 0 {
		t.Errorf("start = (%f, %f), want (0, 0)", p.StartX, p.StartY)
	}
	if err := validateParams(p); err != nil {
		t.Errorf("corner start must validate: %v", err)
	}
}

func TestValidateParams(t *testing.T) {
	cases := []struct {
		name   string
		params model.Params
		ok     bool
	}{
		{"valid", model.Params{BlurSigma: 4, Iterations: 20_000, StartX: 0.5, StartY: 0.5}, true},
		{"lower bounds", model.Params{BlurSigma: 1, Iterations: 10_000, StartX: 0, StartY: 0}, true},
		{"upper bounds", model.Params{BlurSigma: 20, Iterations: 5_000_000, StartX: 1, StartY: 1}, true},
		{"blur too small", model.Params{BlurSigma: 0.5, Iterations: 20_000, StartX: 0.5, StartY: 0.5}, false},
		{"blur too large", model.Params{BlurSigma: 21, Iterations: 20_000, StartX: 0.5, StartY: 0.5}, false},
		{"too few iterations", model.Params{BlurSigma: 4, Iterations: 9_999, StartX: 0.5, StartY: 0.5}, false},
		{"too many iterations", model.Params{BlurSigma: 4, Iterations: 5_000_001, StartX: 0.5, StartY: 0.5}, false},
		{"start out of range", model.Params{BlurSigma: 4, Iterations: 20_000, StartX: 1.5, StartY: 0.5}, false},
		{"negative start", model.Params{BlurSigma: 4, Iterations: 20_000, StartX: 0.5, StartY: -0.1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateParams(tc.params)
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResultBase64(t *testing.T) {
	stub := &stubService{resultImg: image.NewNRGBA(image.Rect(0, 0, 10, 10))}
	r := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString()+"/result/base64", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			ImageBase64 string `json:"image_base64"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Result.ImageBase64 == "" {
		t.Fatal("expected a non-empty image_base64 payload")
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Result.ImageBase64)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if _, err := imaging.Decode(bytes.NewReader(raw)); err != nil {
		t.Errorf("payload is not a decodable image: %v", err)
	}
}

func TestResultBase64_NotReady(t *testing.T) {
	stub := &stubService{resultErr: jobmgr.ErrNotReady}
	r := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString()+"/result/base64", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
