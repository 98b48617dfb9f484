package models

import "time"

// DefaultAvatar is shown for users that never uploaded a picture
const DefaultAvatar = "https://tinyurl.com/Avatar010x"

// User holds the structure for the users collection in mongo
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	Avatar    string    `json:"avatar" bson:"avatar"`
	Role      string    `json:"role" bson:"role"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Company   string    `json:"company,omitempty" bson:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Profile is the public summary of a user attached to chat messages
type Profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Profile returns the public summary of the user
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// AvatarOrDefault returns the avatar, falling back to DefaultAvatar
func (p Profile) AvatarOrDefault() string {
	if p.Avatar == "" {
		return DefaultAvatar
	}
	return p.Avatar
}
