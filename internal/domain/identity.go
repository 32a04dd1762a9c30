package domain

// Identity is the best-effort user identity attached to leg-mutating calls.
// The zero value means "unknown"; the store then infers the owner from the
// appointment's assignment record.
type Identity struct {
	UserID string `json:"clerkUserId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// IsZero reports whether no user id is known.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
