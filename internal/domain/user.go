// Package domain contains entities without logic, just meta-data.
package domain

type UserID string

// Identity is resolved once from the connection token and never changes
// for the lifetime of that connection.
type Identity struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"name"`
	Premium     bool   `json:"premium,omitempty"`
}
