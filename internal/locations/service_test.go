package locations

import (
	"context"
	"testing"
	"time"

	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/redis"
)

type stubLocationStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newStubLocationStore() *stubLocationStore {
	return &stubLocationStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *stubLocationStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return value, nil
}

func (s *stubLocationStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return nil
}

func (s *stubLocationStore) LocationKey(technicianID string) string {
	return "fs:location:" + technicianID
}

func newTestLocations(t *testing.T, store *stubLocationStore) Service {
	t.Helper()
	svc, err := NewService(store, nil, config.LocationsConfig{TTL: 10 * time.Minute})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestReportAndLastKnown(t *testing.T) {
	store := newStubLocationStore()
	svc := newTestLocations(t, store)

	reported, err := svc.Report(context.Background(), ReportInput{
		TechnicianID: "tech-1",
		Latitude:     35.2226,
		Longitude:    -97.4395,
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if reported.ReportedAt.IsZero() {
		t.Fatal("expected reported_at to be set")
	}
	if ttl := store.ttls["fs:location:tech-1"]; ttl != 10*time.Minute {
		t.Fatalf("expected ttl 10m got %v", ttl)
	}

	position, err := svc.LastKnown(context.Background(), "tech-1")
	if err != nil {
		t.Fatalf("last known: %v", err)
	}
	if position.Latitude != 35.2226 || position.Longitude != -97.4395 {
		t.Fatalf("unexpected position %+v", position)
	}
}

func TestReportRejectsOutOfRange(t *testing.T) {
	svc := newTestLocations(t, newStubLocationStore())

	_, err := svc.Report(context.Background(), ReportInput{
		TechnicianID: "tech-1",
		Latitude:     120,
		Longitude:    0,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestLastKnownMissing(t *testing.T) {
	svc := newTestLocations(t, newStubLocationStore())

	_, err := svc.LastKnown(context.Background(), "tech-9")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}
