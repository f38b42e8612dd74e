// internal/app/transition_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contest_lifecycle/internal/domain/inbox"
	"contest_lifecycle/internal/domain/lifecycle"
	"contest_lifecycle/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Outcome of a single candidate.
type outcome string

const (
	outcomeUpdated   outcome = "updated"
	outcomeSkipped   outcome = "skipped"
	outcomeBackwards outcome = "skipped_backwards"
	outcomeError     outcome = "error"
)

// Notifier is the fan-out used by event transitions.
type Notifier interface {
	Notify(ctx context.Context, w inbox.Writer, authorID int64, recipientIDs []int64, body string, msgType inbox.MessageType, at time.Time) (int, error)
}

// TransitionService moves the candidates of one kind to the stage their
// boundaries call for, one transaction per entity.
type TransitionService struct {
	repo      lifecycle.Repository
	notifier  Notifier
	logger    logrus.FieldLogger
	authorID  int64
	txTimeout time.Duration
}

func NewTransitionService(
	repo lifecycle.Repository,
	notifier Notifier,
	logger logrus.FieldLogger,
	systemAuthorID int64,
	txTimeout time.Duration,
) *TransitionService {
	return &TransitionService{
		repo:      repo,
		notifier:  notifier,
		logger:    logger,
		authorID:  systemAuthorID,
		txTimeout: txTimeout,
	}
}

// RunSweep processes every candidate of kind against the single instant now.
// A failed candidate is recorded in the result and does not stop the sweep;
// only a failed candidate query is returned as an error.
func (s *TransitionService) RunSweep(ctx context.Context, kind lifecycle.Kind, now time.Time) (*lifecycle.SweepResult, error) {
	switch kind {
	case lifecycle.KindEvent:
		return s.sweepEvents(ctx, now)
	case lifecycle.KindTerms:
		return s.sweepTerms(ctx, now)
	case lifecycle.KindNotification:
		return s.sweepNotifications(ctx, now)
	default:
		return nil, fmt.Errorf("unsupported lifecycle kind %q", kind)
	}
}

// record folds one candidate outcome into res.
func (s *TransitionService) record(res *lifecycle.SweepResult, id int64, o outcome, err error) {
	metrics.RecordTransition(string(res.Kind), string(o))
	switch o {
	case outcomeUpdated:
		res.Updated++
	case outcomeSkipped, outcomeBackwards:
		res.Skipped++
	case outcomeError:
		s.logger.WithFields(logrus.Fields{
			"kind":      res.Kind,
			"entity_id": id,
		}).WithError(err).Error("Transition failed")
		res.Errors = append(res.Errors, lifecycle.EntityError{EntityID: id, Error: err.Error()})
	}
}

// guard turns a panic while processing one candidate into an entity error.
func guard(fn func() (outcome, int, error)) (o outcome, notified int, err error) {
	defer func() {
		if r := recover(); r != nil {
			o, notified, err = outcomeError, 0, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// --- Events ---

func (s *TransitionService) sweepEvents(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error) {
	res := lifecycle.NewSweepResult(lifecycle.KindEvent)
	events, err := s.repo.FindEventCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find event candidates: %w", err)
	}
	res.Candidates = len(events)

	for _, e := range events {
		o, notified, err := guard(func() (outcome, int, error) { return s.transitionEvent(ctx, e, now) })
		res.Notified += notified
		s.record(res, e.ID, o, err)
	}
	return res, nil
}

func (s *TransitionService) transitionEvent(ctx context.Context, e *lifecycle.Event, now time.Time) (outcome, int, error) {
	log := s.logger.WithFields(logrus.Fields{"kind": lifecycle.KindEvent, "entity_id": e.ID})

	target := lifecycle.ComputeEventStage(e.Boundaries, now)
	if target == e.Stage {
		return outcomeSkipped, 0, nil
	}
	if target < e.Stage {
		log.WithFields(logrus.Fields{
			"stored_stage": e.Stage.String(),
			"target_stage": target.String(),
		}).Debug("Computed stage is behind stored stage, leaving event untouched")
		return outcomeBackwards, 0, nil
	}

	visible := lifecycle.EventVisible(target)
	notified := 0
	err := s.repo.WithinTx(ctx, s.txTimeout, func(ctx context.Context, tx lifecycle.Tx) error {
		if err := tx.UpdateEventStage(ctx, e.ID, e.Stage, target, visible, now); err != nil {
			return err
		}

		body, ok := stageMessage(e.Title, target)
		if !ok {
			return nil
		}
		reviewers, err := tx.ListEventReviewerIDs(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to list reviewers: %w", err)
		}
		n, err := s.notifier.Notify(ctx, tx, s.authorID, reviewers, body, inbox.MessageTypeEventStage, now)
		if err != nil {
			return err
		}
		notified = n
		return nil
	})
	if errors.Is(err, lifecycle.ErrStaleStage) {
		log.Info("Event already transitioned by another run")
		return outcomeSkipped, 0, nil
	}
	if err != nil {
		return outcomeError, 0, err
	}

	log.WithFields(logrus.Fields{
		"from":     e.Stage.String(),
		"to":       target.String(),
		"visible":  visible,
		"notified": notified,
	}).Info("Event transitioned")
	e.Stage, e.IsPublic, e.UpdatedAt = target, visible, now
	return outcomeUpdated, notified, nil
}

// --- Terms ---

func (s *TransitionService) sweepTerms(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error) {
	res := lifecycle.NewSweepResult(lifecycle.KindTerms)
	terms, err := s.repo.FindTermsCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find terms candidates: %w", err)
	}
	res.Candidates = len(terms)

	for _, t := range terms {
		o, _, err := guard(func() (outcome, int, error) {
			o, err := s.applyTerms(ctx, t, now)
			return o, 0, err
		})
		s.record(res, t.ID, o, err)
	}
	return res, nil
}

// applyTerms unpublishes the visible terms and publishes t in one transaction,
// so there is never a moment with zero or two visible revisions.
func (s *TransitionService) applyTerms(ctx context.Context, t *lifecycle.Terms, now time.Time) (outcome, error) {
	if lifecycle.ComputeTermsStage(t.ScheduledAppliedAt, now) == t.Stage {
		return outcomeSkipped, nil
	}

	var unpublished int64
	err := s.repo.WithinTx(ctx, s.txTimeout, func(ctx context.Context, tx lifecycle.Tx) error {
		n, err := tx.UnpublishVisibleTerms(ctx, t.ID, now)
		if err != nil {
			return fmt.Errorf("failed to unpublish current terms: %w", err)
		}
		unpublished = n
		return tx.ApplyTerms(ctx, t.ID, now)
	})
	if errors.Is(err, lifecycle.ErrStaleStage) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeError, err
	}

	s.logger.WithFields(logrus.Fields{
		"kind":        lifecycle.KindTerms,
		"entity_id":   t.ID,
		"unpublished": unpublished,
	}).Info("Terms applied")
	t.Stage, t.IsPublic, t.UpdatedAt = lifecycle.TermsApplied, true, now
	return outcomeUpdated, nil
}

// --- Notifications ---

func (s *TransitionService) sweepNotifications(ctx context.Context, now time.Time) (*lifecycle.SweepResult, error) {
	res := lifecycle.NewSweepResult(lifecycle.KindNotification)
	items, err := s.repo.FindNotificationCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find notification candidates: %w", err)
	}
	res.Candidates = len(items)

	for _, n := range items {
		o, _, err := guard(func() (outcome, int, error) {
			o, err := s.expireNotification(ctx, n, now)
			return o, 0, err
		})
		s.record(res, n.ID, o, err)
	}
	return res, nil
}

func (s *TransitionService) expireNotification(ctx context.Context, n *lifecycle.Notification, now time.Time) (outcome, error) {
	if lifecycle.ComputeNotificationStage(n.PublicEndDate, now) == n.Stage {
		return outcomeSkipped, nil
	}

	err := s.repo.WithinTx(ctx, s.txTimeout, func(ctx context.Context, tx lifecycle.Tx) error {
		return tx.ExpireNotification(ctx, n.ID, now)
	})
	if errors.Is(err, lifecycle.ErrStaleStage) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeError, err
	}

	s.logger.WithFields(logrus.Fields{"kind": lifecycle.KindNotification, "entity_id": n.ID}).Info("Notification expired")
	n.Stage, n.IsPublic, n.UpdatedAt = lifecycle.NotificationExpired, false, now
	return outcomeUpdated, nil
}
