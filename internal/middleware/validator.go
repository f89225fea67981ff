package middleware

import (
	"fmt"
	"regexp"
)

// Input validation utilities

var (
	tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	jobIDPattern    = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
)

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantIDPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateJobID validates job ID format (UUID)
func ValidateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("invalid job ID format")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
