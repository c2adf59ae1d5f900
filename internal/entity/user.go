package entity

import (
	"time"
)

type User struct {
	ID       string     `bson:"_id"`
	Username string     `bson:"username"`
	Avatar   string     `bson:"avatar,omitempty"`
	IsOnline bool       `bson:"isOnline"`
	LastSeen *time.Time `bson:"lastSeen,omitempty"`
}

type PublicProfile struct {
	ID       string
	Username string
	Avatar   string
}

func (u *User) Profile() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.LastSeen != nil {
		t := *u.LastSeen
		cp.LastSeen = &t
	}
	return &cp
}

type UserStatus struct {
	UserID   string
	IsOnline bool
	LastSeen *time.Time
}
