// Package domain contains core domain types for the chat client.
package domain

import (
	"net/url"
)

// SearchUser is a user returned by the companion search.
type SearchUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

// ChatPath returns the web path that begins a chat with the user.
func (u SearchUser) ChatPath() string {
	return "/chats/begin/" + url.PathEscape(u.Username)
}
