package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"HRPortal/internal/auth"
)

// fakeStore is an in-memory Store with the same read-record semantics as the
// mongo repository: at most one record per (notification, user), nil ReadAt
// means unread.
type fakeStore struct {
	mu            sync.Mutex
	notifications map[primitive.ObjectID]*Notification
	reads         []*ReadRecord

	unreadCountCalls int
	adminStatsCalls  int
	userStatsCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{notifications: make(map[primitive.ObjectID]*Notification)}
}

func (s *fakeStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	stored := *n
	s.notifications[n.ID] = &stored
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id primitive.ObjectID) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

func (s *fakeStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, id := range ids {
		if n, ok := s.notifications[id]; ok {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notifications, id)
	return nil
}

func (s *fakeStore) InsertUnreadRecords(_ context.Context, notificationID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range userIDs {
		s.reads = append(s.reads, &ReadRecord{
			ID:             primitive.NewObjectID(),
			NotificationID: notificationID,
			UserID:         uid,
		})
	}
	return nil
}

func (s *fakeStore) UpsertRead(_ context.Context, notificationID, userID primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.findRead(notificationID, userID); r != nil {
		r.ReadAt = &at
		return nil
	}
	s.reads = append(s.reads, &ReadRecord{
		ID:             primitive.NewObjectID(),
		NotificationID: notificationID,
		UserID:         userID,
		ReadAt:         &at,
	})
	return nil
}

func (s *fakeStore) SetReadAt(_ context.Context, notificationID, userID primitive.ObjectID, at *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findRead(notificationID, userID)
	if r == nil {
		return 0, nil
	}
	r.ReadAt = at
	return 1, nil
}

func (s *fakeStore) DeleteRead(_ context.Context, notificationID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.reads[:0]
	for _, r := range s.reads {
		if r.NotificationID == notificationID && r.UserID == userID {
			continue
		}
		kept = append(kept, r)
	}
	s.reads = kept
	return nil
}

func (s *fakeStore) DeleteReadsByNotification(_ context.Context, notificationID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.reads[:0]
	for _, r := range s.reads {
		if r.NotificationID == notificationID {
			continue
		}
		kept = append(kept, r)
	}
	s.reads = kept
	return nil
}

func (s *fakeStore) UnreadCount(_ context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadCountCalls++
	var count int64
	for _, n := range s.notifications {
		r := s.findRead(n.ID, userID)
		if n.RecipientsType == RecipientsAll {
			if r == nil || r.ReadAt == nil {
				count++
			}
			continue
		}
		if r != nil && r.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) List(_ context.Context, q AdminListQuery) ([]Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []Notification
	for _, n := range s.notifications {
		if q.Type != "" && n.Type != q.Type {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, q.Page, q.Limit), int64(len(all)), nil
}

func (s *fakeStore) ListForUser(_ context.Context, q UserListQuery) ([]UserNotification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []UserNotification
	for _, n := range s.notifications {
		r := s.findRead(n.ID, q.UserID)
		if n.RecipientsType == RecipientsSpecific && r == nil {
			continue
		}
		if q.Type != "" && n.Type != q.Type {
			continue
		}
		isRead := r != nil && r.ReadAt != nil
		if q.UnreadOnly && isRead {
			continue
		}
		un := UserNotification{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
			IsRead:    isRead,
		}
		if r != nil {
			un.ReadAt = r.ReadAt
		}
		all = append(all, un)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, q.Page, q.Limit), int64(len(all)), nil
}

func (s *fakeStore) AdminStats(_ context.Context, from, to time.Time) (*AdminStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminStatsCalls++
	stats := &AdminStats{}
	for _, n := range s.notifications {
		if n.CreatedAt.Before(from) || n.CreatedAt.After(to) {
			continue
		}
		stats.TotalNotifications++
		switch n.Type {
		case TypeGeneral:
			stats.NotificationsByType.General++
		case TypeUrgent:
			stats.NotificationsByType.Urgent++
		case TypeInfo:
			stats.NotificationsByType.Info++
		}
	}
	return stats, nil
}

func (s *fakeStore) UserStats(_ context.Context, userID primitive.ObjectID, from, to time.Time) (*UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userStatsCalls++
	stats := &UserStats{}
	for _, n := range s.notifications {
		if n.CreatedAt.Before(from) || n.CreatedAt.After(to) {
			continue
		}
		r := s.findRead(n.ID, userID)
		if n.RecipientsType == RecipientsSpecific && r == nil {
			continue
		}
		stats.TotalNotifications++
		if r != nil && r.ReadAt != nil {
			stats.ReadNotifications++
		} else {
			stats.UnreadNotifications++
		}
	}
	return stats, nil
}

// findRead expects the caller to hold the lock.
func (s *fakeStore) findRead(notificationID, userID primitive.ObjectID) *ReadRecord {
	for _, r := range s.reads {
		if r.NotificationID == notificationID && r.UserID == userID {
			return r
		}
	}
	return nil
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reads)
}

func (s *fakeStore) readFor(notificationID, userID primitive.ObjectID) *ReadRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findRead(notificationID, userID)
	if r == nil {
		return nil
	}
	copied := *r
	return &copied
}

func page[T any](all []T, pageNum, limit int) []T {
	start := (pageNum - 1) * limit
	if start >= len(all) {
		return nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

type fakeDirectory struct {
	users []auth.User
}

func (d *fakeDirectory) FindActiveUsers(context.Context) ([]auth.User, error) {
	var active []auth.User
	for _, u := range d.users {
		if u.IsActive() {
			active = append(active, u)
		}
	}
	return active, nil
}

func (d *fakeDirectory) FindActiveByIDs(_ context.Context, ids []primitive.ObjectID) ([]auth.User, error) {
	wanted := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var active []auth.User
	for _, u := range d.users {
		if wanted[u.ID] && u.IsActive() {
			active = append(active, u)
		}
	}
	return active, nil
}

type sentPush struct {
	UserID string
	Event  string
	Data   interface{}
}

// fakePusher records pushes; connected lists the user ids treated as online.
type fakePusher struct {
	mu        sync.Mutex
	connected []string
	sends     []sentPush
	casts     []sentPush
}

func (p *fakePusher) SendToUser(userID, event string, data interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.connected {
		if id == userID {
			p.sends = append(p.sends, sentPush{UserID: userID, Event: event, Data: data})
			return true
		}
	}
	return false
}

func (p *fakePusher) Broadcast(event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.casts = append(p.casts, sentPush{Event: event, Data: data})
}

func (p *fakePusher) ConnectedUserIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.connected...)
}

func (p *fakePusher) sent() []sentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentPush(nil), p.sends...)
}

func (p *fakePusher) broadcasts() []sentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentPush(nil), p.casts...)
}

type sentMail struct {
	To      string
	Subject string
}

type fakeMailer struct {
	mu    sync.Mutex
	mails []sentMail
}

func (m *fakeMailer) Send(to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, sentMail{To: to, Subject: subject})
	return nil
}

func (m *fakeMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, mail := range m.mails {
		out = append(out, mail.To)
	}
	return out
}
