package config

import "time"

// NotifxConfig configures one-time-code delivery.
type NotifxConfig struct {
	EmailProvider string // "ses" or "console"
	SMSProvider   string // "sns" or "console"
	FromAddress   string
	FromName      string
	AWSRegion     string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		EmailProvider: getEnv("NOTIFX_EMAIL_PROVIDER", "console"),
		SMSProvider:   getEnv("NOTIFX_SMS_PROVIDER", "console"),
		FromAddress:   getEnv("NOTIFX_FROM_ADDRESS", "noreply@trustgate.dev"),
		FromName:      getEnv("NOTIFX_FROM_NAME", "TrustGate"),
		AWSRegion:     getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
	}
}

// TasksConfig configures the background maintenance runner.
type TasksConfig struct {
	Enabled          bool
	RotationInterval time.Duration
	CleanupInterval  time.Duration
}

func loadTasksConfig() TasksConfig {
	return TasksConfig{
		Enabled:          getEnvBool("TASKS_ENABLED", true),
		RotationInterval: getEnvDuration("TASKS_ROTATION_INTERVAL", time.Hour),
		CleanupInterval:  getEnvDuration("TASKS_CLEANUP_INTERVAL", 6*time.Hour),
	}
}
