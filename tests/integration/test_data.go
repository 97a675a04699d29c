package integration

import (
	"fmt"
	"time"
)

// UniqueEmail generates a unique test email using a timestamp so reruns
// against a dirty database never collide.
func UniqueEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

// TestPassword satisfies the password policy used across the suite.
const TestPassword = "TestPassword123!"
