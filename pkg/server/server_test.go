// Copyright 2025 Pine Host Project
package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pinehost/pine-host/internal/testapp"
	"github.com/pinehost/pine-host/pkg/contentstore"
	"github.com/pinehost/pine-host/pkg/evaluator"
	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/metrics"
	"github.com/pinehost/pine-host/pkg/migration"
	"github.com/pinehost/pine-host/pkg/process"
)

const testAdminPassword = "s3cret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	files, err := filestore.NewDiskStore(filepath.Join(dir, "root"), filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	t.Cleanup(func() { files.Close() })

	driver := migration.New(testapp.Build)
	proc, _, err := process.LoadFromStore(files, driver, log.New(log.Writer(), "", 0))
	if err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	if proc == nil {
		proc, err = process.NewSeed(files, driver, log.New(log.Writer(), "", 0))
		if err != nil {
			t.Fatalf("NewSeed: %v", err)
		}
	}
	if err := proc.DeployAndInit(contentstore.Leaf([]byte("counter"))); err != nil {
		t.Fatalf("DeployAndInit: %v", err)
	}

	reg := metrics.New(evaluator.New())
	proc.SetReductionRecorder(reg)
	return New(proc, testAdminPassword, nil, reg, log.New(log.Writer(), "", 0))
}

func withBasicAuth(req *http.Request, password string) *http.Request {
	req.SetBasicAuth("admin", password)
	return req
}

func TestHealthEndpointRequiresNoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestElmAppStateRoundTrip(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/elm-app-state", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET elm-app-state: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "0" {
		t.Fatalf("expected initial state \"0\", got %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/elm-app-state", strings.NewReader("42"))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST elm-app-state: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/elm-app-state", nil)
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "42" {
		t.Fatalf("expected state \"42\" after POST, got %q", rec.Body.String())
	}
}

func TestApplyFunctionOnDBRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	body, _ := json.Marshal(applyFunctionRequest{
		FunctionName:            "add",
		SerializedArgumentsJSON: []string{"5"},
		CommitResultingState:    true,
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/apply-function-on-db/", bytes.NewReader(body))
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = withBasicAuth(httptest.NewRequest(http.MethodPost, "/api/apply-function-on-db/", bytes.NewReader(body)), "wrong")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong password, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = withBasicAuth(httptest.NewRequest(http.MethodPost, "/api/apply-function-on-db/", bytes.NewReader(body)), testAdminPassword)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct password, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/elm-app-state", nil)
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "5" {
		t.Fatalf("expected state \"5\" after applying add(5), got %q", rec.Body.String())
	}
}

func TestApplyFunctionOnDBUnknownFunctionIs422(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	body, _ := json.Marshal(applyFunctionRequest{FunctionName: "does-not-exist"})
	rec := httptest.NewRecorder()
	req := withBasicAuth(httptest.NewRequest(http.MethodPost, "/api/apply-function-on-db/", bytes.NewReader(body)), testAdminPassword)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown function, got %d", rec.Code)
	}
}

func TestDeployAndInitAcceptsZipArchive(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("init.go")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := f.Write([]byte("package app")); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	rec := httptest.NewRecorder()
	req := withBasicAuth(httptest.NewRequest(http.MethodPost, "/api/deploy-and-init-app-state", bytes.NewReader(buf.Bytes())), testAdminPassword)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTruncateProcessHistoryRequiresAuthAndPost(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/truncate-process-history", nil)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = withBasicAuth(httptest.NewRequest(http.MethodGet, "/api/truncate-process-history", nil), testAdminPassword)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = withBasicAuth(httptest.NewRequest(http.MethodPost, "/api/truncate-process-history", nil), testAdminPassword)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
