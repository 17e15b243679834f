package directory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
)

func TestValidateActiveTechnician(t *testing.T) {
	const expectedURL = "http://directory.test/v1/technicians/tech-1"
	respBody := `{"id":"tech-1","name":"Ana Diaz","status":"ACTIVE","role":"TECHNICIAN"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, true, rt)
	if err := client.Validate(context.Background(), "tech-1"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("X-API-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
}

func TestValidateUnknownTechnician(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":"not found"}`)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, true, rt)
	err := client.Validate(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected not-found error")
	}
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestValidateInactiveTechnician(t *testing.T) {
	respBody := `{"id":"tech-2","status":"ON_LEAVE","role":"TECHNICIAN"}`
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, true, rt)
	err := client.Validate(context.Background(), "tech-2")
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for inactive technician, got %v", err)
	}
	if !strings.Contains(pkgErr.Message(), "is not active") {
		t.Fatalf("unexpected message %q", pkgErr.Message())
	}
}

func TestValidateWrongRole(t *testing.T) {
	respBody := `{"id":"mgr-1","status":"ACTIVE","role":"MANAGER"}`
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client := newTestClient(t, true, rt)
	err := client.Validate(context.Background(), "mgr-1")
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for non-technician role, got %v", err)
	}
}

func TestValidateFailOpenOnOutage(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	client := newTestClient(t, true, rt)
	if err := client.Validate(context.Background(), "tech-1"); err != nil {
		t.Fatalf("fail-open should swallow outage, got %v", err)
	}
}

func TestValidateFailClosedOnOutage(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	client := newTestClient(t, false, rt)
	err := client.Validate(context.Background(), "tech-1")
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
	if !strings.Contains(pkgErr.Message(), "directory unavailable") {
		t.Fatalf("unexpected message %q", pkgErr.Message())
	}
}

func TestValidateDisabledDirectorySkips(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected when directory disabled")
		return nil, nil
	})

	client, err := NewClient(config.DirectoryConfig{Enabled: false}, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Validate(context.Background(), "anyone"); err != nil {
		t.Fatalf("disabled directory should skip validation, got %v", err)
	}
}

func TestLookupUsesCache(t *testing.T) {
	requests := 0
	respBody := `{"id":"tech-1","name":"Ana Diaz","status":"ACTIVE","role":"TECHNICIAN"}`
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requests++
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	cache := newStubCache()
	client, err := NewClient(config.DirectoryConfig{
		BaseURL:  "http://directory.test/v1",
		APIKey:   "test-key",
		Enabled:  true,
		FailOpen: true,
		CacheTTL: time.Minute,
	}, WithHTTPClient(&http.Client{Transport: rt}), WithCache(cache))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if record := client.GetInfo(context.Background(), "tech-1"); record == nil {
		t.Fatal("first lookup returned nil")
	}
	record := client.GetInfo(context.Background(), "tech-1")
	if record == nil {
		t.Fatal("second lookup returned nil")
	}
	if requests != 1 {
		t.Fatalf("expected a single upstream request, got %d", requests)
	}
	if record.Name != "Ana Diaz" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestGetInfoSwallowsFailures(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	client := newTestClient(t, false, rt)
	if record := client.GetInfo(context.Background(), "tech-1"); record != nil {
		t.Fatalf("expected nil record on outage, got %+v", record)
	}

	notFound := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":"not found"}`)),
			Header:     http.Header{},
		}, nil
	})
	client = newTestClient(t, false, notFound)
	if record := client.GetInfo(context.Background(), "ghost"); record != nil {
		t.Fatalf("expected nil record for unknown technician, got %+v", record)
	}
}

func newTestClient(t *testing.T, failOpen bool, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(config.DirectoryConfig{
		BaseURL:  "http://directory.test/v1",
		APIKey:   "test-key",
		Enabled:  true,
		FailOpen: failOpen,
	}, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type stubCache struct {
	values map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (s *stubCache) Get(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *stubCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.values[key] = value.(string)
	return nil
}

func (s *stubCache) DirectoryKey(technicianID string) string {
	return "fs:directory:" + technicianID
}
