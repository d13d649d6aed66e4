package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/metrics"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
)

// Satisfaction ratings are whole numbers in [MinRating, MaxRating].
const (
	MinRating = 0
	MaxRating = 5
)

// PollStore persists the poll switch and results.
type PollStore interface {
	GetStatus(ctx context.Context) (model.PollStatus, error)
	SetStatus(ctx context.Context, open bool, now time.Time) (model.PollStatus, error)
	InsertResult(ctx context.Context, res *model.PollResult) error
}

// BenefitChecker reports which benefit ids exist.
type BenefitChecker interface {
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// PollService runs the satisfaction poll.
type PollService struct {
	polls    PollStore
	benefits BenefitChecker
	events   dispatcher
	now      Clock
	log      *zap.Logger
}

func NewPollService(polls PollStore, benefits BenefitChecker, pub EventPublisher, now Clock, log *zap.Logger) *PollService {
	log = nopIfNil(log)
	return &PollService{
		polls:    polls,
		benefits: benefits,
		events:   dispatcher{pub: pub, log: log},
		now:      clockOrNow(now),
		log:      log,
	}
}

// CurrentStatus reads the poll switch.
func (s *PollService) CurrentStatus(ctx context.Context) (model.PollStatus, error) {
	return s.polls.GetStatus(ctx)
}

// SetStatus opens or closes the poll.  Opening it publishes a poll.opened
// event.
func (s *PollService) SetStatus(ctx context.Context, open bool) (model.PollStatus, error) {
	st, err := s.polls.SetStatus(ctx, open, s.now().UTC())
	if err != nil {
		return model.PollStatus{}, err
	}
	s.log.Info("poll status changed", zap.Bool("open", st.IsOpen), zap.Int64("version", st.Version))
	if open {
		s.events.fire(queue.Event{
			Kind:        queue.KindPollOpened,
			PollVersion: st.Version,
			OccurredAt:  st.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return st, nil
}

// Submit records one poll answer.  A user may answer more than once.
func (s *PollService) Submit(ctx context.Context, userID uuid.UUID, selected []int64, rate int) (model.PollResult, error) {
	st, err := s.polls.GetStatus(ctx)
	if err != nil {
		return model.PollResult{}, err
	}
	if !st.IsOpen {
		return model.PollResult{}, ErrPollClosed
	}
	if rate < MinRating || rate > MaxRating {
		return model.PollResult{}, ErrInvalidRating
	}
	if len(selected) > 0 {
		found, err := s.benefits.ExistingIDs(ctx, selected)
		if err != nil {
			return model.PollResult{}, err
		}
		for _, id := range selected {
			if !found[id] {
				return model.PollResult{}, fmt.Errorf("%w: %d", ErrInvalidBenefit, id)
			}
		}
	}
	res := model.PollResult{
		UserID:           userID,
		CreatedAt:        s.now().UTC(),
		SelectedBenefits: selected,
		SatisfactionRate: rate,
	}
	if res.SelectedBenefits == nil {
		res.SelectedBenefits = []int64{}
	}
	if err := s.polls.InsertResult(ctx, &res); err != nil {
		return model.PollResult{}, err
	}
	metrics.PollSubmissionsTotal.Inc()
	return res, nil
}
