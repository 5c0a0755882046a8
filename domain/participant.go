// Package domain contains core concepts of the chat system.
// This file defines user identities and their profiles.
// Identities are issued by the account subsystem and never change here.
package domain

import "time"

type UserID string

func (u UserID) String() string { return string(u) }

// UserProfile holds the static fields merged into conversation summaries.
type UserProfile struct {
	ID         UserID
	Name       string
	Email      string
	ProfilePic string
	CreatedAt  time.Time
}
