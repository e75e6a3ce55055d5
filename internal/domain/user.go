package domain

// User is the already-authenticated viewer of the board.
// A nil *User is an anonymous viewer.
type User struct {
	Username string `json:"username" yaml:"username"`
}

// NewUser returns a User for username, or nil when username is empty
func NewUser(username string) *User {
	if username == "" {
		return nil
	}
	return &User{Username: username}
}
