package notification

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository handles DB access for notifications and read records. Read/write
// races on the same (notification, user) pair resolve at the storage layer
// through the unique compound index; last write wins.
type Repository struct {
	notifications *mongo.Collection
	reads         *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		notifications: db.Collection("notifications"),
		reads:         db.Collection("notification_reads"),
	}
}

func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.notifications.InsertOne(ctx, n)
	return err
}

// FindByID returns the notification, or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*Notification, error) {
	var n Notification
	err := r.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *Repository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.notifications.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var notifications []Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.notifications.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// InsertUnreadRecords eagerly creates one unread read record per recipient.
// Callers pass deduplicated ids; the unique index rejects duplicates.
func (r *Repository) InsertUnreadRecords(ctx context.Context, notificationID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if len(userIDs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(userIDs))
	for _, uid := range userIDs {
		docs = append(docs, ReadRecord{
			ID:             primitive.NewObjectID(),
			NotificationID: notificationID,
			UserID:         uid,
			ReadAt:         nil,
		})
	}
	_, err := r.reads.InsertMany(ctx, docs)
	return err
}

// UpsertRead inserts or updates the read record, setting read_at. Used for
// broadcast notifications where the record is created lazily.
func (r *Repository) UpsertRead(ctx context.Context, notificationID, userID primitive.ObjectID, at time.Time) error {
	filter := bson.M{"notification_id": notificationID, "user_id": userID}
	update := bson.M{"$set": bson.M{"read_at": at}}
	_, err := r.reads.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// SetReadAt updates the existing record's read_at (nil marks unread). Used
// for targeted notifications where the record was created eagerly; a missing
// record is reported through the matched count, never created here.
func (r *Repository) SetReadAt(ctx context.Context, notificationID, userID primitive.ObjectID, at *time.Time) (int64, error) {
	filter := bson.M{"notification_id": notificationID, "user_id": userID}
	update := bson.M{"$set": bson.M{"read_at": at}}
	res, err := r.reads.UpdateOne(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// DeleteRead removes the record if present; no-op otherwise. Used to mark a
// broadcast notification unread.
func (r *Repository) DeleteRead(ctx context.Context, notificationID, userID primitive.ObjectID) error {
	_, err := r.reads.DeleteOne(ctx, bson.M{"notification_id": notificationID, "user_id": userID})
	return err
}

// DeleteReadsByNotification cascades read-record deletion before the
// notification itself is removed.
func (r *Repository) DeleteReadsByNotification(ctx context.Context, notificationID primitive.ObjectID) error {
	_, err := r.reads.DeleteMany(ctx, bson.M{"notification_id": notificationID})
	return err
}

// UnreadCount computes the number of notifications the user has not read:
// every broadcast notification counts unless a read record with a timestamp
// exists; targeted ones count while their record stays unread.
func (r *Repository) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	broadcastTotal, err := r.notifications.CountDocuments(ctx, bson.M{"recipients_type": RecipientsAll})
	if err != nil {
		return 0, err
	}

	records, err := r.findUserReads(ctx, userID)
	if err != nil {
		return 0, err
	}

	var readIDs []primitive.ObjectID
	var unreadTargeted int64
	for _, rec := range records {
		if rec.ReadAt != nil {
			readIDs = append(readIDs, rec.NotificationID)
		} else {
			unreadTargeted++
		}
	}

	var readBroadcast int64
	if len(readIDs) > 0 {
		readBroadcast, err = r.notifications.CountDocuments(ctx, bson.M{
			"_id":             bson.M{"$in": readIDs},
			"recipients_type": RecipientsAll,
		})
		if err != nil {
			return 0, err
		}
	}

	return broadcastTotal - readBroadcast + unreadTargeted, nil
}

// List returns one admin page, newest first.
func (r *Repository) List(ctx context.Context, q AdminListQuery) ([]Notification, int64, error) {
	conds := []bson.M{}
	if q.Type != "" {
		conds = append(conds, bson.M{"type": q.Type})
	}

	if q.UserID != nil {
		records, err := r.findUserReads(ctx, *q.UserID)
		if err != nil {
			return nil, 0, err
		}
		ids := make([]primitive.ObjectID, 0, len(records))
		for _, rec := range records {
			ids = append(ids, rec.NotificationID)
		}
		conds = append(conds,
			bson.M{"recipients_type": RecipientsSpecific},
			bson.M{"_id": bson.M{"$in": ids}},
		)
	}

	if q.Status != "" {
		readFilter := bson.M{"read_at": bson.M{"$ne": nil}}
		if q.UserID != nil {
			readFilter["user_id"] = *q.UserID
		}
		readIDs, err := r.distinctReadNotificationIDs(ctx, readFilter)
		if err != nil {
			return nil, 0, err
		}
		switch q.Status {
		case "read":
			conds = append(conds, bson.M{"_id": bson.M{"$in": readIDs}})
		case "unread":
			conds = append(conds, bson.M{"_id": bson.M{"$nin": readIDs}})
		}
	}

	filter := combine(conds)

	total, err := r.notifications.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))
	cursor, err := r.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var notifications []Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// ListForUser returns one page of the caller's notifications with read state
// attached: broadcast notifications plus targeted ones addressed to them.
func (r *Repository) ListForUser(ctx context.Context, q UserListQuery) ([]UserNotification, int64, error) {
	records, err := r.findUserReads(ctx, q.UserID)
	if err != nil {
		return nil, 0, err
	}

	recordByID := make(map[primitive.ObjectID]ReadRecord, len(records))
	rowIDs := make([]primitive.ObjectID, 0, len(records))
	readDoneIDs := make([]primitive.ObjectID, 0, len(records))
	for _, rec := range records {
		recordByID[rec.NotificationID] = rec
		rowIDs = append(rowIDs, rec.NotificationID)
		if rec.ReadAt != nil {
			readDoneIDs = append(readDoneIDs, rec.NotificationID)
		}
	}

	conds := []bson.M{{
		"$or": bson.A{
			bson.M{"recipients_type": RecipientsAll},
			bson.M{"_id": bson.M{"$in": rowIDs}},
		},
	}}
	if q.Type != "" {
		conds = append(conds, bson.M{"type": q.Type})
	}
	if q.UnreadOnly {
		conds = append(conds, bson.M{"_id": bson.M{"$nin": readDoneIDs}})
	}
	filter := combine(conds)

	total, err := r.notifications.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))
	cursor, err := r.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var notifications []Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}

	items := make([]UserNotification, 0, len(notifications))
	for _, n := range notifications {
		item := UserNotification{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		}
		if rec, ok := recordByID[n.ID]; ok && rec.ReadAt != nil {
			item.ReadAt = rec.ReadAt
			item.IsRead = true
		}
		items = append(items, item)
	}
	return items, total, nil
}

// AdminStats aggregates totals by type plus read activity over the window.
func (r *Repository) AdminStats(ctx context.Context, from, to time.Time) (*AdminStats, error) {
	match := bson.M{"created_at": bson.M{"$gte": from, "$lte": to}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"general": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$type", TypeGeneral}}, 1, 0},
			}},
			"urgent": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$type", TypeUrgent}}, 1, 0},
			}},
			"info": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$type", TypeInfo}}, 1, 0},
			}},
			"avg_recipients": bson.M{"$avg": "$recipients_count"},
		}}},
	}
	cursor, err := r.notifications.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Total         int64   `bson:"total"`
		General       int64   `bson:"general"`
		Urgent        int64   `bson:"urgent"`
		Info          int64   `bson:"info"`
		AvgRecipients float64 `bson:"avg_recipients"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := &AdminStats{}
	if len(rows) > 0 {
		stats.TotalNotifications = rows[0].Total
		stats.NotificationsByType = TypeBreakdown{
			General: rows[0].General,
			Urgent:  rows[0].Urgent,
			Info:    rows[0].Info,
		}
		stats.AvgRecipients = int64(rows[0].AvgRecipients + 0.5)
	}

	windowIDs, err := r.notifications.Distinct(ctx, "_id", match)
	if err != nil {
		return nil, err
	}
	if len(windowIDs) > 0 {
		readFilter := bson.M{
			"notification_id": bson.M{"$in": windowIDs},
			"read_at":         bson.M{"$ne": nil},
		}
		readNotifIDs, err := r.reads.Distinct(ctx, "notification_id", readFilter)
		if err != nil {
			return nil, err
		}
		readerIDs, err := r.reads.Distinct(ctx, "user_id", readFilter)
		if err != nil {
			return nil, err
		}
		stats.ReadNotifications = int64(len(readNotifIDs))
		stats.UsersWhoRead = int64(len(readerIDs))
	}
	return stats, nil
}

// UserStats aggregates one user's totals over the window: broadcast
// notifications plus targeted ones addressed to the user.
func (r *Repository) UserStats(ctx context.Context, userID primitive.ObjectID, from, to time.Time) (*UserStats, error) {
	window := bson.M{"$gte": from, "$lte": to}

	broadcastTotal, err := r.notifications.CountDocuments(ctx, bson.M{
		"recipients_type": RecipientsAll,
		"created_at":      window,
	})
	if err != nil {
		return nil, err
	}

	records, err := r.findUserReads(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &UserStats{
			TotalNotifications:  broadcastTotal,
			UnreadNotifications: broadcastTotal,
		}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.NotificationID)
	}
	cursor, err := r.notifications.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "created_at": window},
		options.Find().SetProjection(bson.M{"_id": 1, "recipients_type": 1}))
	if err != nil {
		return nil, err
	}
	var inWindow []struct {
		ID             primitive.ObjectID `bson:"_id"`
		RecipientsType string             `bson:"recipients_type"`
	}
	if err := cursor.All(ctx, &inWindow); err != nil {
		return nil, err
	}
	typeByID := make(map[primitive.ObjectID]string, len(inWindow))
	for _, n := range inWindow {
		typeByID[n.ID] = n.RecipientsType
	}

	var targetedTotal, read int64
	for _, rec := range records {
		recipientsType, ok := typeByID[rec.NotificationID]
		if !ok {
			continue // outside the window
		}
		if recipientsType == RecipientsSpecific {
			targetedTotal++
		}
		if rec.ReadAt != nil {
			read++
		}
	}

	total := broadcastTotal + targetedTotal
	return &UserStats{
		TotalNotifications:  total,
		ReadNotifications:   read,
		UnreadNotifications: total - read,
	}, nil
}

func (r *Repository) findUserReads(ctx context.Context, userID primitive.ObjectID) ([]ReadRecord, error) {
	cursor, err := r.reads.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	var records []ReadRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Repository) distinctReadNotificationIDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	raw, err := r.reads.Distinct(ctx, "notification_id", filter)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func combine(conds []bson.M) bson.M {
	switch len(conds) {
	case 0:
		return bson.M{}
	case 1:
		return conds[0]
	default:
		return bson.M{"$and": conds}
	}
}
