package testutil

import (
	"os"
	"testing"
)

const (
	// Test environment variables
	TestRedisAddr        = "TEST_REDIS_ADDR"
	TestReasoningAPIKey  = "TEST_REASONING_API_KEY"
	TestReasoningBaseURL = "TEST_REASONING_BASE_URL"

	// DefaultReasoningBaseURL is used by live reasoning tests when no base URL is set
	DefaultReasoningBaseURL = "https://api.openai.com/v1"
)

// Getenv returns the environment variable or a default
func Getenv(envVar, defaultValue string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultValue
}

// RequireEnv returns the environment variable or skips the test when it is unset
func RequireEnv(t testing.TB, envVar string) string {
	t.Helper()
	v := os.Getenv(envVar)
	if v == "" {
		t.Skipf("%s not set", envVar)
	}
	return v
}

// RequireRedis returns the address of a test redis server or skips the test
func RequireRedis(t testing.TB) string {
	t.Helper()
	return RequireEnv(t, TestRedisAddr)
}

// ReasoningBaseURL returns the endpoint for live reasoning tests
func ReasoningBaseURL() string {
	return Getenv(TestReasoningBaseURL, DefaultReasoningBaseURL)
}
