package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeGeneral = "general"
	TypeUrgent  = "urgent"
	TypeInfo    = "info"

	RecipientsAll      = "all"
	RecipientsSpecific = "specific"
)

// Notification is the persisted record of a notification. It is never edited
// after creation; RecipientsCount reflects the audience resolved at creation
// time and is not recomputed.
type Notification struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Message         string             `bson:"message" json:"message"`
	Type            string             `bson:"type" json:"type"`
	RecipientsType  string             `bson:"recipients_type" json:"recipients_type"`
	RecipientsCount int                `bson:"recipients_count" json:"recipients_count"`
	CreatedBy       primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// ReadRecord tracks whether and when one user read one notification. At most
// one record exists per (notification, user); a nil ReadAt means unread.
//
// Broadcast notifications get a record lazily, only once the user acts.
// Targeted notifications get an unread record per recipient at creation.
type ReadRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NotificationID primitive.ObjectID `bson:"notification_id" json:"notification_id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	ReadAt         *time.Time         `bson:"read_at" json:"read_at"`
}

// UserNotification is the per-user list view: the notification joined with
// the caller's read state.
type UserNotification struct {
	ID        primitive.ObjectID `json:"id"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Type      string             `json:"type"`
	CreatedAt time.Time          `json:"created_at"`
	ReadAt    *time.Time         `json:"read_at"`
	IsRead    bool               `json:"is_read"`
}

// Event is the realtime push payload for new_notification.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// TypeDescriptor describes one entry of the type catalog.
type TypeDescriptor struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// TypeCatalog returns the fixed category catalog served by /types.
func TypeCatalog() []TypeDescriptor {
	return []TypeDescriptor{
		{Value: TypeGeneral, Label: "General", Description: "General portal notifications"},
		{Value: TypeUrgent, Label: "Urgent", Description: "Urgent notifications requiring immediate attention"},
		{Value: TypeInfo, Label: "Informative", Description: "Informative notifications"},
	}
}

// CreateRequest is the POST /notifications body.
type CreateRequest struct {
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Recipients string   `json:"recipients"`
	UserIDs    []string `json:"userIds"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// AdminListQuery filters the admin list. UserID restricts to targeted
// notifications addressed to that user; Status is "read" or "unread".
type AdminListQuery struct {
	Page   int
	Limit  int
	UserID *primitive.ObjectID
	Type   string
	Status string
}

// UserListQuery filters a user's own list.
type UserListQuery struct {
	UserID     primitive.ObjectID
	Page       int
	Limit      int
	UnreadOnly bool
	Type       string
}

// TypeBreakdown counts notifications per category.
type TypeBreakdown struct {
	General int64 `json:"general"`
	Urgent  int64 `json:"urgent"`
	Info    int64 `json:"info"`
}

// AdminStats aggregates system-wide notification activity over a window.
type AdminStats struct {
	TotalNotifications int64         `json:"total_notifications"`
	NotificationsByType TypeBreakdown `json:"notifications_by_type"`
	ReadNotifications  int64         `json:"read_notifications"`
	UsersWhoRead       int64         `json:"users_who_read"`
	AvgRecipients      int64         `json:"avg_recipients"`
}

// UserStats aggregates one user's notification activity over a window.
type UserStats struct {
	TotalNotifications  int64 `json:"total_notifications"`
	ReadNotifications   int64 `json:"read_notifications"`
	UnreadNotifications int64 `json:"unread_notifications"`
}

// StatsQuery selects the statistics window: either a named period (day,
// week, month, year) or an explicit date range.
type StatsQuery struct {
	Period    string
	StartDate *time.Time
	EndDate   *time.Time
}

// Window resolves the query to a concrete [from, to] range relative to now.
func (q StatsQuery) Window(now time.Time) (time.Time, time.Time) {
	if q.StartDate != nil && q.EndDate != nil {
		return *q.StartDate, *q.EndDate
	}
	var back time.Duration
	switch q.Period {
	case "day":
		back = 24 * time.Hour
	case "month":
		back = 30 * 24 * time.Hour
	case "year":
		back = 365 * 24 * time.Hour
	default: // week
		back = 7 * 24 * time.Hour
	}
	return now.Add(-back), now
}

// CacheSuffix identifies the window in cache keys.
func (q StatsQuery) CacheSuffix() string {
	if q.StartDate != nil && q.EndDate != nil {
		return q.StartDate.Format("2006-01-02") + ":" + q.EndDate.Format("2006-01-02")
	}
	if q.Period == "" {
		return "week"
	}
	return q.Period
}
