package models

import "time"

// Identity is the verified caller. Email and Name default to "" when the
// identity provider omits them.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// User is the stored owner of captures and briefings
type User struct {
	ID         string    `bson:"_id" json:"id"`
	Email      string    `bson:"email" json:"email"`
	Name       string    `bson:"name" json:"name"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	LastSeenAt time.Time `bson:"lastSeenAt" json:"lastSeenAt"`
}
