package auth

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection("users")}
}

// FindActiveByID returns the user if it exists and is active, nil otherwise.
func (r *UserRepository) FindActiveByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var user User
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "status": StatusActive}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindActiveUsers returns every active user.
func (r *UserRepository) FindActiveUsers(ctx context.Context) ([]User, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": StatusActive})
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindActiveByIDs returns the active users among the given ids. Ids that do
// not resolve to an active user are dropped.
func (r *UserRepository) FindActiveByIDs(ctx context.Context, ids []primitive.ObjectID) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{
		"_id":    bson.M{"$in": ids},
		"status": StatusActive,
	})
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// TodaysBirthdays returns active users whose birth month and day match today.
func (r *UserRepository) TodaysBirthdays(ctx context.Context) ([]User, error) {
	now := time.Now()
	filter := bson.M{
		"status":     StatusActive,
		"birth_date": bson.M{"$ne": nil},
		"$expr": bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$month": "$birth_date"}, int(now.Month())}},
			bson.M{"$eq": bson.A{bson.M{"$dayOfMonth": "$birth_date"}, now.Day()}},
		}},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpcomingBirthday pairs a user with the number of days until their next
// birthday.
type UpcomingBirthday struct {
	User      User `json:"user"`
	DaysUntil int  `json:"days_until"`
}

// UpcomingBirthdays returns active users whose birthday falls within the next
// given number of days, soonest first. The day arithmetic runs in Go; the
// user population is small.
func (r *UserRepository) UpcomingBirthdays(ctx context.Context, days int) ([]UpcomingBirthday, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"status":     StatusActive,
		"birth_date": bson.M{"$ne": nil},
	})
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	today := time.Now()
	var upcoming []UpcomingBirthday
	for _, u := range users {
		if u.BirthDate == nil {
			continue
		}
		until := daysUntilBirthday(today, *u.BirthDate)
		if until <= days {
			upcoming = append(upcoming, UpcomingBirthday{User: u, DaysUntil: until})
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		if upcoming[i].DaysUntil != upcoming[j].DaysUntil {
			return upcoming[i].DaysUntil < upcoming[j].DaysUntil
		}
		return upcoming[i].User.FirstName < upcoming[j].User.FirstName
	})
	return upcoming, nil
}

func daysUntilBirthday(today time.Time, birthDate time.Time) int {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	next := time.Date(today.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return int(next.Sub(today).Hours() / 24)
}
