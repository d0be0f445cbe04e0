package webclient

import (
	"fmt"
	"io"

	"github.com/ashureev/roomchat/internal/domain"
)

// NothingFound is printed for a search without results.
const NothingFound = "Nothing is found"

// RenderSearchResults writes one line per user with the link that begins a
// chat with them, or NothingFound when users is empty.
func RenderSearchResults(w io.Writer, baseURL string, users []domain.SearchUser) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(w, NothingFound)
		return err
	}
	for _, u := range users {
		if _, err := fmt.Fprintf(w, "%s (@%s)  %s%s\n", u.Name, u.Username, baseURL, u.ChatPath()); err != nil {
			return err
		}
	}
	return nil
}
