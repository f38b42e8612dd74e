// Package testutil holds an in-memory persistence gateway for tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"contest_lifecycle/internal/domain/inbox"
	"contest_lifecycle/internal/domain/lifecycle"
)

// Review links a user to an event; only its author matters to fan-out.
type Review struct {
	EventID int64
	UserID  int64
	Deleted bool
}

type memState struct {
	events        map[int64]*lifecycle.Event
	terms         map[int64]*lifecycle.Terms
	notifications map[int64]*lifecycle.Notification
	reviews       []Review
	messages      []*inbox.Message
	deliveries    []*inbox.Delivery
	nextMessageID int64
}

func (s *memState) clone() *memState {
	c := &memState{
		events:        make(map[int64]*lifecycle.Event, len(s.events)),
		terms:         make(map[int64]*lifecycle.Terms, len(s.terms)),
		notifications: make(map[int64]*lifecycle.Notification, len(s.notifications)),
		reviews:       append([]Review(nil), s.reviews...),
		nextMessageID: s.nextMessageID,
	}
	for id, e := range s.events {
		cp := *e
		c.events[id] = &cp
	}
	for id, t := range s.terms {
		cp := *t
		c.terms[id] = &cp
	}
	for id, n := range s.notifications {
		cp := *n
		c.notifications[id] = &cp
	}
	for _, m := range s.messages {
		cp := *m
		c.messages = append(c.messages, &cp)
	}
	for _, d := range s.deliveries {
		cp := *d
		c.deliveries = append(c.deliveries, &cp)
	}
	return c
}

// MemoryStore implements lifecycle.Repository. Transactions run against a
// copy of the state that replaces the original only on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState

	// FindErr makes the candidate query of a kind fail.
	FindErr map[lifecycle.Kind]error
	// FailEntity makes any write to the given entity fail inside its transaction.
	FailEntity map[int64]error
	// TxCount counts WithinTx calls.
	TxCount int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			events:        make(map[int64]*lifecycle.Event),
			terms:         make(map[int64]*lifecycle.Terms),
			notifications: make(map[int64]*lifecycle.Notification),
		},
		FindErr:    make(map[lifecycle.Kind]error),
		FailEntity: make(map[int64]error),
	}
}

// --- seeding and inspection ---

func (m *MemoryStore) AddEvent(e lifecycle.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.events[e.ID] = &e
}

func (m *MemoryStore) AddTerms(t lifecycle.Terms) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.terms[t.ID] = &t
}

func (m *MemoryStore) AddNotification(n lifecycle.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.notifications[n.ID] = &n
}

func (m *MemoryStore) AddReview(r Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.reviews = append(m.state.reviews, r)
}

func (m *MemoryStore) Event(id int64) lifecycle.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state.events[id]
}

func (m *MemoryStore) Terms(id int64) lifecycle.Terms {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state.terms[id]
}

func (m *MemoryStore) Notification(id int64) lifecycle.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state.notifications[id]
}

// VisibleTermsIDs lists the ids of public terms in ascending order.
func (m *MemoryStore) VisibleTermsIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, t := range m.state.terms {
		if t.IsPublic {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemoryStore) Messages() []inbox.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inbox.Message, 0, len(m.state.messages))
	for _, msg := range m.state.messages {
		out = append(out, *msg)
	}
	return out
}

func (m *MemoryStore) Deliveries() []inbox.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inbox.Delivery, 0, len(m.state.deliveries))
	for _, d := range m.state.deliveries {
		out = append(out, *d)
	}
	return out
}

// --- lifecycle.Repository ---

func (m *MemoryStore) FindEventCandidates(_ context.Context, now time.Time) ([]*lifecycle.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FindErr[lifecycle.KindEvent]; err != nil {
		return nil, err
	}
	var out []*lifecycle.Event
	for _, e := range m.state.events {
		if lifecycle.EventNeedsCheck(e, now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) FindTermsCandidates(_ context.Context, now time.Time) ([]*lifecycle.Terms, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FindErr[lifecycle.KindTerms]; err != nil {
		return nil, err
	}
	var out []*lifecycle.Terms
	for _, t := range m.state.terms {
		if lifecycle.TermsNeedsCheck(t, now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := *out[i].ScheduledAppliedAt, *out[j].ScheduledAppliedAt
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	return out, nil
}

func (m *MemoryStore) FindNotificationCandidates(_ context.Context, now time.Time) ([]*lifecycle.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FindErr[lifecycle.KindNotification]; err != nil {
		return nil, err
	}
	var out []*lifecycle.Notification
	for _, n := range m.state.notifications {
		if lifecycle.NotificationNeedsCheck(n, now) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) WithinTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx lifecycle.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TxCount++

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// --- lifecycle.Tx ---

type memTx struct {
	store *MemoryStore
	state *memState
}

func (t *memTx) fail(id int64) error {
	return t.store.FailEntity[id]
}

func (t *memTx) UpdateEventStage(_ context.Context, id int64, from, to lifecycle.EventStage, visible bool, at time.Time) error {
	if err := t.fail(id); err != nil {
		return err
	}
	e, ok := t.state.events[id]
	if !ok || e.Deleted {
		return lifecycle.ErrNotFound
	}
	if e.Stage != from {
		return lifecycle.ErrStaleStage
	}
	e.Stage, e.IsPublic, e.UpdatedAt = to, visible, at
	return nil
}

func (t *memTx) ListEventReviewerIDs(_ context.Context, eventID int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range t.state.reviews {
		if r.EventID != eventID || r.Deleted || seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		ids = append(ids, r.UserID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) UnpublishVisibleTerms(_ context.Context, exceptID int64, at time.Time) (int64, error) {
	var n int64
	for id, tr := range t.state.terms {
		if id == exceptID || !tr.IsPublic {
			continue
		}
		tr.IsPublic, tr.UpdatedAt = false, at
		n++
	}
	return n, nil
}

func (t *memTx) ApplyTerms(_ context.Context, id int64, at time.Time) error {
	if err := t.fail(id); err != nil {
		return err
	}
	tr, ok := t.state.terms[id]
	if !ok || tr.Deleted {
		return lifecycle.ErrNotFound
	}
	if tr.Stage != lifecycle.TermsPending {
		return lifecycle.ErrStaleStage
	}
	tr.Stage, tr.IsPublic, tr.UpdatedAt = lifecycle.TermsApplied, true, at
	return nil
}

func (t *memTx) ExpireNotification(_ context.Context, id int64, at time.Time) error {
	if err := t.fail(id); err != nil {
		return err
	}
	n, ok := t.state.notifications[id]
	if !ok || n.Deleted {
		return lifecycle.ErrNotFound
	}
	if n.Stage != lifecycle.NotificationActive {
		return lifecycle.ErrStaleStage
	}
	n.Stage, n.IsPublic, n.UpdatedAt = lifecycle.NotificationExpired, false, at
	return nil
}

func (t *memTx) CreateMessage(_ context.Context, msg *inbox.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	t.state.nextMessageID++
	msg.ID = t.state.nextMessageID
	cp := *msg
	t.state.messages = append(t.state.messages, &cp)
	return nil
}

func (t *memTx) CreateDeliveries(_ context.Context, messageID int64, recipientIDs []int64, at time.Time) (int, error) {
	exists := make(map[int64]bool)
	for _, d := range t.state.deliveries {
		if d.MessageID == messageID {
			exists[d.RecipientID] = true
		}
	}
	n := 0
	for _, rid := range recipientIDs {
		if exists[rid] {
			continue
		}
		exists[rid] = true
		t.state.deliveries = append(t.state.deliveries, &inbox.Delivery{
			ID:          int64(len(t.state.deliveries) + 1),
			MessageID:   messageID,
			RecipientID: rid,
			CreatedAt:   at,
		})
		n++
	}
	return n, nil
}
