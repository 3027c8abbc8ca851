package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/core2cover/api/internal/domain"
	"github.com/core2cover/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// Integrations records which optional capabilities this process was started with. Each one is
// reported as its own readiness check so operators can tell a disabled feature from an outage.
type Integrations struct {
	Uploads     bool
	Refunds     bool
	StoreCredit bool
}

func (i Integrations) checks(now time.Time) map[string]domain.SystemHealthCheck {
	state := func(enabled bool) domain.SystemHealthCheck {
		detail := "disabled"
		if enabled {
			detail = "enabled"
		}
		return domain.SystemHealthCheck{Status: domain.HealthStatusOK, Detail: detail, CheckedAt: now}
	}
	return map[string]domain.SystemHealthCheck{
		"feature:uploads":      state(i.Uploads),
		"feature:refunds":      state(i.Refunds),
		"feature:store-credit": state(i.StoreCredit),
	}
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
	Integrations     *Integrations
}

type systemService struct {
	healthRepo   repositories.HealthRepository
	clock        func() time.Time
	build        BuildInfo
	integrations *Integrations
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service backing the readiness endpoint.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		clock: func() time.Time {
			return clock().UTC()
		},
		build:        build,
		integrations: deps.Integrations,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	report.GeneratedAt = ensureTimestamp(report.GeneratedAt, now)
	report.Version = chooseFirstNonEmpty(report.Version, s.build.Version)
	report.CommitSHA = chooseFirstNonEmpty(report.CommitSHA, s.build.CommitSHA)
	report.Environment = chooseFirstNonEmpty(report.Environment, s.build.Environment)

	if report.Uptime <= 0 && !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	checks := make(map[string]domain.SystemHealthCheck, len(report.Checks)+3)
	if s.integrations != nil {
		for name, check := range s.integrations.checks(now) {
			checks[name] = check
		}
	}
	for name, check := range report.Checks {
		checks[name] = check
	}
	report.Checks = checks

	if strings.TrimSpace(string(report.Status)) == "" {
		report.Status = deriveStatus(report.Checks)
	}

	return report, nil
}

func ensureTimestamp(ts time.Time, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts.UTC()
}

func chooseFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) domain.HealthStatus {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
			continue
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
