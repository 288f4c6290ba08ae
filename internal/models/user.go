package models

// User is one registered Telegram account. The map key in the registry is
// the Telegram user ID. JSON field names match the snapshot layout written
// by earlier generations of the bot, so old users.json files load as-is.
type User struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`

	// IsCurator is derived once at registration time from the configured
	// allow-lists (phone or ID) and never re-derived afterwards.
	IsCurator bool `json:"is_admin"`

	// Favorites holds movie codes. Set semantics, rendered in stable
	// insertion order.
	Favorites []string `json:"fav"`

	// RandomHistory holds the recently shown movie codes, most recent
	// last, capped at RandomHistoryLimit. A re-shown code moves to the
	// end instead of duplicating.
	RandomHistory []string `json:"rand_hist"`
}

// RandomHistoryLimit bounds User.RandomHistory.
const RandomHistoryLimit = 20

// HasFavorite reports whether code is in the user's favorites.
func (u *User) HasFavorite(code string) bool {
	for _, c := range u.Favorites {
		if c == code {
			return true
		}
	}
	return false
}

// LastShown returns the most recently shown code, or "" for an empty
// history.
func (u *User) LastShown() string {
	if len(u.RandomHistory) == 0 {
		return ""
	}
	return u.RandomHistory[len(u.RandomHistory)-1]
}
