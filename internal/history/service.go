package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/matcycle-backend/pkg/db/models"
	"github.com/angelmondragon/matcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/matcycle-backend/pkg/errors"
	"github.com/angelmondragon/matcycle-backend/pkg/pagination"
)

// Trail records and reads cycle history. It exposes no update or delete.
type Trail interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.HistoryEvent, error)
	ForCycle(ctx context.Context, cycleID uuid.UUID) ([]models.HistoryEvent, error)
	ByActor(ctx context.Context, filter ActorFilter) ([]models.HistoryEvent, error)
	Turnaround(ctx context.Context, filter TurnaroundFilter) (*TurnaroundStats, error)
}

// Entry describes one transition to append.
type Entry struct {
	CycleID     uuid.UUID
	Action      enums.HistoryAction
	OldStatus   *enums.CycleStatus
	NewStatus   enums.CycleStatus
	Metadata    map[string]any
	PerformedBy uuid.UUID
	At          time.Time
}

// TurnaroundStats is the average time from pickup request to completion.
type TurnaroundStats struct {
	AverageDays decimal.Decimal `json:"averageDays"`
	SampleSize  int             `json:"sampleSize"`
}

type service struct {
	repo Repository
}

// NewService builds the audit trail over the provided repository.
func NewService(repo Repository) (Trail, error) {
	if repo == nil {
		return nil, fmt.Errorf("history repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends entry inside the caller's transaction.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.HistoryEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if entry.CycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id is required")
	}
	if !entry.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid history action %q", entry.Action))
	}
	if !entry.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid cycle status %q", entry.NewStatus))
	}
	if entry.PerformedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "performedBy is required")
	}

	meta := entry.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode history metadata")
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	event := &models.HistoryEvent{
		CycleID:     entry.CycleID,
		Action:      entry.Action,
		OldStatus:   entry.OldStatus,
		NewStatus:   entry.NewStatus,
		Metadata:    datatypes.JSON(raw),
		PerformedBy: entry.PerformedBy,
		At:          at,
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "append history event")
	}
	return event, nil
}

func (s *service) ForCycle(ctx context.Context, cycleID uuid.UUID) ([]models.HistoryEvent, error) {
	if cycleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cycle id is required")
	}
	events, err := s.repo.ListByCycle(ctx, cycleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list cycle history")
	}
	return events, nil
}

func (s *service) ByActor(ctx context.Context, filter ActorFilter) ([]models.HistoryEvent, error) {
	if filter.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	page := pagination.Params{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit = page.Limit
	filter.Offset = page.Offset

	events, err := s.repo.ListByActor(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "list actor history")
	}
	return events, nil
}

// Turnaround averages, per completed cycle, the days between its last
// pickup_requested or contract_signed event and its completed event.
func (s *service) Turnaround(ctx context.Context, filter TurnaroundFilter) (*TurnaroundStats, error) {
	if filter.CompanyID != nil && filter.OwnerID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filter by company or owner, not both")
	}
	events, err := s.repo.ListForTurnaround(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "load turnaround history")
	}

	spans := turnaroundSpans(events)
	stats := &TurnaroundStats{AverageDays: decimal.Zero, SampleSize: len(spans)}
	if len(spans) == 0 {
		return stats, nil
	}
	total := decimal.Zero
	for _, span := range spans {
		total = total.Add(decimal.NewFromFloat(span.Hours()).Div(decimal.NewFromInt(24)))
	}
	stats.AverageDays = total.Div(decimal.NewFromInt(int64(len(spans)))).Round(2)
	return stats, nil
}

// turnaroundSpans expects events grouped by cycle and ordered by seq.
func turnaroundSpans(events []models.HistoryEvent) []time.Duration {
	var spans []time.Duration
	var start *time.Time
	var current uuid.UUID
	for _, event := range events {
		if event.CycleID != current {
			current = event.CycleID
			start = nil
		}
		switch event.Action {
		case enums.HistoryActionPickupRequested, enums.HistoryActionContractSigned:
			at := event.At
			start = &at
		case enums.HistoryActionCompleted:
			if start != nil && !event.At.Before(*start) {
				spans = append(spans, event.At.Sub(*start))
			}
			start = nil
		}
	}
	return spans
}
