package notification

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
	"HRPortal/internal/cache"
	"HRPortal/internal/config"
)

// Store is the persistence surface the service needs; *Repository implements it.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Notification, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Notification, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	InsertUnreadRecords(ctx context.Context, notificationID primitive.ObjectID, userIDs []primitive.ObjectID) error
	UpsertRead(ctx context.Context, notificationID, userID primitive.ObjectID, at time.Time) error
	SetReadAt(ctx context.Context, notificationID, userID primitive.ObjectID, at *time.Time) (int64, error)
	DeleteRead(ctx context.Context, notificationID, userID primitive.ObjectID) error
	DeleteReadsByNotification(ctx context.Context, notificationID primitive.ObjectID) error
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	List(ctx context.Context, q AdminListQuery) ([]Notification, int64, error)
	ListForUser(ctx context.Context, q UserListQuery) ([]UserNotification, int64, error)
	AdminStats(ctx context.Context, from, to time.Time) (*AdminStats, error)
	UserStats(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (*UserStats, error)
}

// UserDirectory resolves recipients; *auth.UserRepository implements it.
type UserDirectory interface {
	FindActiveUsers(ctx context.Context) ([]auth.User, error)
	FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]auth.User, error)
}

// Pusher is the realtime gateway surface the service pushes through. All
// realtime sends go through these operations; the service never touches the
// live directory itself.
type Pusher interface {
	SendToUser(userID, event string, data interface{}) bool
	Broadcast(event string, data interface{})
	ConnectedUserIDs() []string
}

const (
	EventNewNotification   = "new_notification"
	EventUnreadCountUpdate = "unread_count_update"
)

// UnreadCountPayload is the unread_count_update payload.
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// Service orchestrates notification creation, read-state mutation and the
// cache-fronted read paths. Email and realtime fan-out are detached,
// best-effort side effects: persistence happens first and its outcome is
// returned regardless of delivery.
type Service struct {
	store       Store
	users       UserDirectory
	mailer      config.Mailer
	pusher      Pusher
	caches      *cache.Caches
	logger      *zap.Logger
	frontendURL string
}

func NewService(store Store, users UserDirectory, mailer config.Mailer, pusher Pusher, caches *cache.Caches, logger *zap.Logger) *Service {
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	return &Service{
		store:       store,
		users:       users,
		mailer:      mailer,
		pusher:      pusher,
		caches:      caches,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

func validateCreate(req CreateRequest) error {
	if n := utf8.RuneCountInString(req.Title); n < 3 || n > 100 {
		return fmt.Errorf("%w: title must be between 3 and 100 characters", ErrValidation)
	}
	if n := utf8.RuneCountInString(req.Message); n < 10 || n > 1000 {
		return fmt.Errorf("%w: message must be between 10 and 1000 characters", ErrValidation)
	}
	switch req.Type {
	case TypeGeneral, TypeUrgent, TypeInfo:
	default:
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, req.Type)
	}
	switch req.Recipients {
	case RecipientsAll:
	case RecipientsSpecific:
		if len(req.UserIDs) == 0 {
			return fmt.Errorf("%w: userIds must be a non-empty list for specific recipients", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown recipients type %q", ErrValidation, req.Recipients)
	}
	return nil
}

// Create validates the request, resolves the audience, persists the
// notification (and, for targeted audiences, the eager unread records), then
// dispatches email and realtime fan-out as detached tasks and invalidates
// the statistics and unread-count caches.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy primitive.ObjectID) (*Notification, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var recipients []auth.User
	var err error
	if req.Recipients == RecipientsAll {
		recipients, err = s.users.FindActiveUsers(ctx)
	} else {
		ids := parseObjectIDs(req.UserIDs) // unparseable or unknown ids are dropped
		recipients, err = s.users.FindActiveByIDs(ctx, ids)
	}
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	now := time.Now()
	n := &Notification{
		Title:           req.Title,
		Message:         req.Message,
		Type:            req.Type,
		RecipientsType:  req.Recipients,
		RecipientsCount: len(recipients),
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	recipientIDs := make([]primitive.ObjectID, 0, len(recipients))
	emails := make([]string, 0, len(recipients))
	for _, u := range recipients {
		recipientIDs = append(recipientIDs, u.ID)
		emails = append(emails, u.Email)
	}

	if req.Recipients == RecipientsSpecific {
		if err := s.store.InsertUnreadRecords(ctx, n.ID, recipientIDs); err != nil {
			return nil, err
		}
	}

	// Invalidate before dispatch so pushed counts never read a pre-create
	// cached value.
	s.caches.ClearNotificationCaches()

	// Detached side effects: failure is logged, never escalated.
	go s.dispatchEmails(*n, emails)
	go s.dispatchRealtime(*n, recipientIDs)

	s.logger.Info("notification created",
		zap.String("id", n.ID.Hex()),
		zap.String("recipients_type", n.RecipientsType),
		zap.Int("recipients_count", n.RecipientsCount))
	return n, nil
}

func (s *Service) dispatchEmails(n Notification, emails []string) {
	actionURL := s.frontendURL + "/notifications"
	subject, body, err := config.GeneralNotificationEmail(n.Title, n.Message, actionURL)
	if err != nil {
		s.logger.Error("failed to render notification email", zap.Error(err))
		return
	}
	sent := 0
	for _, email := range emails {
		if err := s.mailer.Send(email, subject, body); err != nil {
			s.logger.Error("failed to send notification email",
				zap.String("to", email), zap.Error(err))
			continue
		}
		sent++
	}
	s.logger.Info("notification emails dispatched",
		zap.String("id", n.ID.Hex()), zap.Int("sent", sent), zap.Int("total", len(emails)))
}

func (s *Service) dispatchRealtime(n Notification, recipientIDs []primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event := Event{
		ID:        n.ID.Hex(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: n.CreatedAt,
	}

	if n.RecipientsType == RecipientsAll {
		s.pusher.Broadcast(EventNewNotification, event)
		// Each connected user gets their own count; counts differ per user.
		for _, uid := range s.pusher.ConnectedUserIDs() {
			s.pushUnreadCount(ctx, uid)
		}
		return
	}

	for _, id := range recipientIDs {
		uid := id.Hex()
		if s.pusher.SendToUser(uid, EventNewNotification, event) {
			s.pushUnreadCount(ctx, uid)
		}
	}
}

func (s *Service) pushUnreadCount(ctx context.Context, userID string) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return
	}
	count, err := s.GetUnreadCount(ctx, uid)
	if err != nil {
		s.logger.Error("failed to compute unread count for push",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.pusher.SendToUser(userID, EventUnreadCountUpdate, UnreadCountPayload{Count: count})
}

// MarkRead records that the user read the notification. Broadcast audiences
// upsert the read record; targeted ones update the eager record in place.
func (s *Service) MarkRead(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	n, err := s.store.FindByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}

	now := time.Now()
	if n.RecipientsType == RecipientsAll {
		if err := s.store.UpsertRead(ctx, notificationID, userID, now); err != nil {
			return err
		}
	} else {
		matched, err := s.store.SetReadAt(ctx, notificationID, userID, &now)
		if err != nil {
			return err
		}
		if matched == 0 {
			// Read record missing for a targeted notification: integrity
			// breach upstream. Treated as a no-op; never create a duplicate.
			s.logger.Warn("read record missing for targeted notification",
				zap.String("notification_id", notificationID.Hex()),
				zap.String("user_id", userID.Hex()))
		}
	}

	s.invalidateUserCaches(userID)
	return nil
}

// MarkUnread reverses MarkRead: broadcast audiences drop the record,
// targeted ones reset read_at to nil.
func (s *Service) MarkUnread(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	n, err := s.store.FindByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}

	if n.RecipientsType == RecipientsAll {
		if err := s.store.DeleteRead(ctx, notificationID, userID); err != nil {
			return err
		}
	} else {
		matched, err := s.store.SetReadAt(ctx, notificationID, userID, nil)
		if err != nil {
			return err
		}
		if matched == 0 {
			s.logger.Warn("read record missing for targeted notification",
				zap.String("notification_id", notificationID.Hex()),
				zap.String("user_id", userID.Hex()))
		}
	}

	s.invalidateUserCaches(userID)
	return nil
}

// MarkManyRead marks every resolvable notification read and returns the
// count processed; unknown ids are skipped. The caller's cache entries are
// invalidated once at the end, matching the single-item paths.
func (s *Service) MarkManyRead(ctx context.Context, notificationIDs []primitive.ObjectID, userID primitive.ObjectID) (int, error) {
	notifications, err := s.store.FindByIDs(ctx, notificationIDs)
	if err != nil {
		return 0, err
	}
	if len(notifications) == 0 {
		return 0, ErrNotFound
	}

	now := time.Now()
	processed := 0
	for _, n := range notifications {
		if n.RecipientsType == RecipientsAll {
			if err := s.store.UpsertRead(ctx, n.ID, userID, now); err != nil {
				return processed, err
			}
		} else {
			if _, err := s.store.SetReadAt(ctx, n.ID, userID, &now); err != nil {
				return processed, err
			}
		}
		processed++
	}

	s.invalidateUserCaches(userID)
	return processed, nil
}

func (s *Service) invalidateUserCaches(userID primitive.ObjectID) {
	s.caches.UnreadCount.Delete(cache.Key("unread_count", userID.Hex()))
	s.caches.Stats.DeletePrefix(cache.Key("stats", "user", userID.Hex()))
}

// Delete removes the notification and all its read records, then drops the
// statistics and unread-count caches entirely.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotFound
	}

	if err := s.store.DeleteReadsByNotification(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.caches.ClearNotificationCaches()

	s.logger.Info("notification deleted",
		zap.String("id", id.Hex()), zap.String("title", n.Title))
	return nil
}

// GetUnreadCount is a cache-first read with a 5-minute TTL on misses.
func (s *Service) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	key := cache.Key("unread_count", userID.Hex())
	if cached, ok := s.caches.UnreadCount.Get(key); ok {
		return cached.(int64), nil
	}
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.caches.UnreadCount.Set(key, count)
	return count, nil
}

// GetAdminStatistics is a cache-first read of system-wide aggregates.
func (s *Service) GetAdminStatistics(ctx context.Context, adminID primitive.ObjectID, q StatsQuery) (*AdminStats, error) {
	key := cache.Key("stats", "admin", adminID.Hex(), q.CacheSuffix())
	if cached, ok := s.caches.Stats.Get(key); ok {
		return cached.(*AdminStats), nil
	}
	from, to := q.Window(time.Now())
	stats, err := s.store.AdminStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.caches.Stats.Set(key, stats)
	return stats, nil
}

// GetUserStatistics is a cache-first read of the caller's aggregates.
func (s *Service) GetUserStatistics(ctx context.Context, userID primitive.ObjectID, q StatsQuery) (*UserStats, error) {
	key := cache.Key("stats", "user", userID.Hex(), q.CacheSuffix())
	if cached, ok := s.caches.Stats.Get(key); ok {
		return cached.(*UserStats), nil
	}
	from, to := q.Window(time.Now())
	stats, err := s.store.UserStats(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	s.caches.Stats.Set(key, stats)
	return stats, nil
}

// Types serves the category catalog from the 1-hour cache. Writes never
// invalidate it; it only expires.
func (s *Service) Types() []TypeDescriptor {
	const key = "notification_types"
	if cached, ok := s.caches.Types.Get(key); ok {
		return cached.([]TypeDescriptor)
	}
	types := TypeCatalog()
	s.caches.Types.Set(key, types)
	return types
}

// List returns one admin page.
func (s *Service) List(ctx context.Context, q AdminListQuery) ([]Notification, Pagination, error) {
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, Pagination{}, err
	}
	return items, NewPagination(q.Page, q.Limit, total), nil
}

// ListForUser returns one page of the caller's notifications.
func (s *Service) ListForUser(ctx context.Context, q UserListQuery) ([]UserNotification, Pagination, error) {
	items, total, err := s.store.ListForUser(ctx, q)
	if err != nil {
		return nil, Pagination{}, err
	}
	return items, NewPagination(q.Page, q.Limit, total), nil
}

func parseObjectIDs(raw []string) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(raw))
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
