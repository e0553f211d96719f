package models

import (
	"time"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

// User is an entry of the users directory. Its name parts become the
// author of the history entries the user leaves.
type User struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Sub        string    `bson:"sub" json:"sub"`
	Email      string    `bson:"email,omitempty" json:"email,omitempty"`
	Firstname  string    `bson:"firstname,omitempty" json:"firstname,omitempty"`
	Lastname   string    `bson:"lastname,omitempty" json:"lastname,omitempty"`
	Middlename string    `bson:"middlename,omitempty" json:"middlename,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Author returns the display name stored for the user.
func (u *User) Author() history.Author {
	return history.Author{Firstname: u.Firstname, Lastname: u.Lastname, Middlename: u.Middlename}
}
