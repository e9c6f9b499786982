package packets

import "github.com/Nixie-Tech-LLC/ledmanager/internal/model"

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type ProfileResponse struct {
	User model.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
