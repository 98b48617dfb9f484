package models

// ChatMessage is a relayed chat message. It is never stored.
type ChatMessage struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	SenderID  string  `json:"senderId"`
	CreatedAt string  `json:"createdAt"`
	Sender    Profile `json:"sender"`
	RoomID    string  `json:"roomId"`
}

// ChatStats is a point in time view of the chat gateway
type ChatStats struct {
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
	OnlineUsers int `json:"onlineUsers"`
	Connections int `json:"connections"`
}

// RoomMembersResponse lists the users currently in a chat room
type RoomMembersResponse struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

// RoomResponse maps a consultation to its chat room
type RoomResponse struct {
	ConsultationID string `json:"consultationId"`
	RoomID         string `json:"roomId"`
}

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive    bool   `json:"alive"`
	Database string `json:"database,omitempty"`
}

// PresenceResponse reports whether a user currently holds a chat connection
type PresenceResponse struct {
	UserID       string `json:"userId"`
	Online       bool   `json:"online"`
	ConnectionID string `json:"connectionId,omitempty"`
}
