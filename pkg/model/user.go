package model

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Bio       string    `json:"bio,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sender is the subset of User attached to outgoing chat events.
type Sender struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u User) Sender() Sender {
	return Sender{ID: u.ID, Username: u.Username}
}
