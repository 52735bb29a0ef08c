package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Local identifiers carry a short prefix and an 8-char hex tail
	sessionRegex  = regexp.MustCompile(`^sess_[0-9a-f]{8}$`)
	scheduleRegex = regexp.MustCompile(`^sched_[0-9a-f]{8}$`)

	// Job IDs are issued by the orchestrator and treated as opaque
	// tokens; they still have to be safe to embed in a URL path
	jobIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

	// safePathRegex matches safe path components (alphanumeric, dash, underscore, dot)
	safePathRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// ValidateSessionID validates a local session ID (sess_ prefix)
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if !sessionRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID format: %s", id)
	}
	return nil
}

// ValidateScheduleID validates a schedule ID (sched_ prefix)
func ValidateScheduleID(id string) error {
	if id == "" {
		return fmt.Errorf("schedule ID cannot be empty")
	}
	if !scheduleRegex.MatchString(id) {
		return fmt.Errorf("invalid schedule ID format: %s", id)
	}
	return nil
}

// ValidateJobID validates an orchestrator-issued job ID
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("job ID too long: %d chars", len(id))
	}
	if !jobIDRegex.MatchString(id) {
		return fmt.Errorf("invalid job ID format: %s", id)
	}
	return nil
}

// SanitizePath removes path traversal attempts and validates path components
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	// Reject obvious traversal attempts
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}

	// Reject absolute paths when relative expected
	if strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}

	// Split and validate each component
	parts := strings.Split(path, "/")
	for _, part := range parts {
		if part == "" {
			continue // Allow trailing/leading slashes
		}
		if !safePathRegex.MatchString(part) {
			return "", fmt.Errorf("unsafe path component: %s", part)
		}
	}

	return path, nil
}
