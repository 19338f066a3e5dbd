package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateConnID returns an id for a transport connection
func GenerateConnID() string {
	return "conn-" + GenerateID()
}
