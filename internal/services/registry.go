package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caretrack/internal/core"
	"caretrack/internal/storage"
)

// RegistryService manages the caregiver roster.
type RegistryService struct {
	store storage.Store
}

func NewRegistryService(store storage.Store) *RegistryService {
	return &RegistryService{store: store}
}

// Create registers a caregiver. Missing fields get defaults: a random
// ID, 160 monthly hours, a 25.00 hourly rate.
func (s *RegistryService) Create(ctx context.Context, c core.Caregiver) (core.Caregiver, error) {
	now := time.Now().UTC()

	c.EnglishName = strings.TrimSpace(c.EnglishName)
	c.ChineseName = strings.TrimSpace(c.ChineseName)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.MonthlyHours == 0 {
		c.MonthlyHours = core.DefaultMonthlyHours
	}
	if c.HourlyRate.IsZero() {
		c.HourlyRate = core.DefaultHourlyRate
	}
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := c.Validate(); err != nil {
		return core.Caregiver{}, err
	}
	if err := s.store.InsertCaregiver(ctx, c); err != nil {
		return core.Caregiver{}, err
	}

	slog.InfoContext(ctx, "Caregiver registered", "caregiver_id", c.ID, "english_name", c.EnglishName)
	return c, nil
}

// Update rewrites a caregiver's names, quota and rate. Identity and
// creation time are preserved.
func (s *RegistryService) Update(ctx context.Context, c core.Caregiver) (core.Caregiver, error) {
	existing, err := s.store.FindCaregiver(ctx, c.ID)
	if err != nil {
		return core.Caregiver{}, err
	}

	existing.EnglishName = strings.TrimSpace(c.EnglishName)
	existing.ChineseName = strings.TrimSpace(c.ChineseName)
	existing.MonthlyHours = c.MonthlyHours
	existing.HourlyRate = c.HourlyRate
	existing.UpdatedAt = time.Now().UTC()

	if err := existing.Validate(); err != nil {
		return core.Caregiver{}, err
	}
	if err := s.store.UpdateCaregiver(ctx, existing); err != nil {
		return core.Caregiver{}, err
	}
	return existing, nil
}

// Deactivate soft deletes a caregiver: the row and its entries survive
// for history, but the caregiver disappears from rosters and summaries.
func (s *RegistryService) Deactivate(ctx context.Context, id string) error {
	if err := s.store.DeactivateCaregiver(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Caregiver deactivated", "caregiver_id", id)
	return nil
}

func (s *RegistryService) Find(ctx context.Context, id string) (core.Caregiver, error) {
	return s.store.FindCaregiver(ctx, id)
}

// ListActive returns active caregivers ordered by English name.
func (s *RegistryService) ListActive(ctx context.Context) ([]core.Caregiver, error) {
	return s.store.ListActiveCaregivers(ctx)
}

// MonthlySummary builds the per-caregiver worked/remaining/pay rows for
// a month. Every active caregiver appears, including those without any
// entries that month.
func (s *RegistryService) MonthlySummary(ctx context.Context, month core.Month) ([]core.Summary, error) {
	caregivers, err := s.store.ListActiveCaregivers(ctx)
	if err != nil {
		return nil, err
	}

	entriesByCaregiver := make(map[string][]core.TimeEntry, len(caregivers))
	for _, c := range caregivers {
		entries, err := s.store.ListEntries(ctx, c.ID, month)
		if err != nil {
			return nil, err
		}
		entriesByCaregiver[c.ID] = entries
	}

	return core.Summarize(caregivers, entriesByCaregiver), nil
}
