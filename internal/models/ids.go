package models

import "github.com/google/uuid"

// ensureID assigns a random UUID when the primary key was left empty.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
