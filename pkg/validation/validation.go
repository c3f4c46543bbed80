package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// UsernameRegex validates streamer/viewer usernames
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// EndpointIDRegex validates endpoint identifier format
	EndpointIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateUsername validates a username string coming off the wire
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateEndpointID validates a target endpoint id named in a relay request
func ValidateEndpointID(id string) error {
	if id == "" {
		return fmt.Errorf("endpoint id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("endpoint id is too long (max 100 characters)")
	}
	if !EndpointIDRegex.MatchString(id) {
		return fmt.Errorf("endpoint id contains invalid characters")
	}
	return nil
}
