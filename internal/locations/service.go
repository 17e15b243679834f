package locations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
	"github.com/fieldserve-app/fieldserve-backend/pkg/redis"
)

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LocationKey(technicianID string) string
}

// Position is the last reported location of a technician. Entries expire so
// dispatchers never act on stale coordinates.
type Position struct {
	TechnicianID string    `json:"technician_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	ReportedAt   time.Time `json:"reported_at"`
}

// ReportInput carries a technician position update.
type ReportInput struct {
	TechnicianID string
	Latitude     float64
	Longitude    float64
}

// Service tracks technician last-known positions.
type Service interface {
	Report(ctx context.Context, input ReportInput) (*Position, error)
	LastKnown(ctx context.Context, technicianID string) (*Position, error)
}

type service struct {
	store store
	logg  *logger.Logger
	cfg   config.LocationsConfig
	now   func() time.Time
}

// NewService builds the locations service backed by the provided store.
func NewService(locationStore store, logg *logger.Logger, cfg config.LocationsConfig) (Service, error) {
	if locationStore == nil {
		return nil, fmt.Errorf("location store required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &service{
		store: locationStore,
		logg:  logg,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

func (s *service) Report(ctx context.Context, input ReportInput) (*Position, error) {
	if strings.TrimSpace(input.TechnicianID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "technician id required")
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("latitude %f out of range", input.Latitude))
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("longitude %f out of range", input.Longitude))
	}

	position := &Position{
		TechnicianID: input.TechnicianID,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		ReportedAt:   s.now().UTC(),
	}
	payload, err := json.Marshal(position)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal position")
	}
	if err := s.store.Set(ctx, s.store.LocationKey(input.TechnicianID), string(payload), s.cfg.TTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store position")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTechnicianID(ctx, input.TechnicianID), "technician position updated")
	}
	return position, nil
}

func (s *service) LastKnown(ctx context.Context, technicianID string) (*Position, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "technician id required")
	}

	raw, err := s.store.Get(ctx, s.store.LocationKey(technicianID))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no recent position for technician")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load position")
	}

	var position Position
	if err := json.Unmarshal([]byte(raw), &position); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode position")
	}
	return &position, nil
}
