package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/pagination"
)

// Service answers read-only aggregate questions about cycles.
type Service interface {
	// CycleCounts breaks cycles down by status for one company or one owner.
	CycleCounts(ctx context.Context, filter CountFilter) (*CycleCounts, error)
	// Overdue lists cycles on trial for longer than the threshold.
	Overdue(ctx context.Context, filter OverdueFilter) ([]OverdueCycle, error)
}

// CountFilter scopes counts to a company or an asset owner, not both.
type CountFilter struct {
	CompanyID *uuid.UUID
	OwnerID   *uuid.UUID
}

// CycleCounts is the status breakdown of a scope.
type CycleCounts struct {
	ByStatus map[enums.CycleStatus]int64 `json:"byStatus"`
	Total    int64                       `json:"total"`
	OnTest   int64                       `json:"onTest"`
	Signed   int64                       `json:"signed"`
}

// OverdueFilter selects trial cycles older than ThresholdDays at Now.
type OverdueFilter struct {
	ThresholdDays int
	OwnerID       *uuid.UUID
	Now           time.Time
	Limit         int
	Offset        int
}

// OverdueCycle is one cycle past its trial threshold.
type OverdueCycle struct {
	CycleID     uuid.UUID  `json:"cycleId"`
	AssetID     uuid.UUID  `json:"assetId"`
	AssetCode   string     `json:"assetCode"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	CompanyID   *uuid.UUID `json:"companyId,omitempty"`
	TestStartAt time.Time  `json:"testStartAt"`
	DaysOnTest  int        `json:"daysOnTest"`
}

type service struct {
	repo Repository
}

// NewService builds the reporting service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CycleCounts(ctx context.Context, filter CountFilter) (*CycleCounts, error) {
	if filter.CompanyID != nil && filter.OwnerID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filter by company or owner, not both")
	}
	rows, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "count cycles")
	}
	signed, err := s.repo.CountSigned(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "count signed cycles")
	}

	out := &CycleCounts{ByStatus: map[enums.CycleStatus]int64{}, Signed: signed}
	for _, status := range enums.CycleStatuses() {
		out.ByStatus[status] = 0
	}
	for _, row := range rows {
		out.ByStatus[row.Status] = row.Count
		out.Total += row.Count
	}
	out.OnTest = out.ByStatus[enums.CycleStatusOnTest]
	return out, nil
}

func (s *service) Overdue(ctx context.Context, filter OverdueFilter) ([]OverdueCycle, error) {
	if filter.ThresholdDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold days must not be negative")
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	cutoff := now.Add(-time.Duration(filter.ThresholdDays) * 24 * time.Hour)
	page := pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Normalize()

	rows, err := s.repo.OnTestStartedBefore(ctx, cutoff, filter.OwnerID, page.Limit, page.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list overdue cycles")
	}
	out := make([]OverdueCycle, 0, len(rows))
	for _, row := range rows {
		out = append(out, OverdueCycle{
			CycleID:     row.CycleID,
			AssetID:     row.AssetID,
			AssetCode:   row.AssetCode,
			OwnerID:     row.OwnerID,
			CompanyID:   row.CompanyID,
			TestStartAt: row.TestStartAt,
			DaysOnTest:  int(now.Sub(row.TestStartAt).Hours() / 24),
		})
	}
	return out, nil
}
