package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User is an employee record. Account lifecycle (registration, password
// setup) is owned by the identity service; this module only reads users.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email      string             `bson:"email" json:"email"`
	FirstName  string             `bson:"first_name" json:"first_name"`
	LastName   string             `bson:"last_name" json:"last_name"`
	Role       string             `bson:"role" json:"role"`
	Status     string             `bson:"status" json:"status"`
	Position   string             `bson:"position,omitempty" json:"position,omitempty"`
	Department string             `bson:"department,omitempty" json:"department,omitempty"`
	BirthDate  *time.Time         `bson:"birth_date,omitempty" json:"birth_date,omitempty"`
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
