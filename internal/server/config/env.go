package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays settings from environment variables. PORT is accepted
// for platforms that only hand out a port number.
func parseEnv(c *Config) {
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		c.EndpointAddrHTTP = ":" + port
	}
	envString(&c.EndpointAddrHTTP, "HTTP_ADDR")
	envString(&c.DatabaseDSN, "DATABASE_DSN")
	envString(&c.DatabaseName, "DATABASE_NAME")
	envString(&c.UploadDir, "UPLOAD_DIR")
	envString(&c.S3RootUser, "S3_ROOT_USER")
	envString(&c.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&c.S3Bucket, "S3_BUCKET")
	envString(&c.S3Region, "S3_REGION")
	envString(&c.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&c.DirectoryBaseURL, "REQRES_API_URL")
	envString(&c.DirectoryAPIKey, "REQRES_API_KEY")
	envDuration(&c.DirectoryTimeout, "REQRES_TIMEOUT")
	envString(&c.QueueURI, "RABBITMQ_URI")
	envString(&c.QueueName, "RABBITMQ_QUEUE")
	envString(&c.MailHost, "MAIL_HOST")
	envInt(&c.MailPort, "MAIL_PORT")
	envString(&c.MailUser, "MAIL_USER")
	envString(&c.MailPassword, "MAIL_PASSWORD")
	envString(&c.MailFrom, "MAIL_FROM")
	envString(&c.RedisAddr, "REDIS_ADDR")
	envString(&c.RedisPassword, "REDIS_PASSWORD")
	envInt(&c.ThrottleLimit, "THROTTLE_LIMIT")
	envDuration(&c.ThrottleWindow, "THROTTLE_WINDOW")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")
	envDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	envDuration(&c.NotifyTimeout, "NOTIFY_TIMEOUT")

	if origins, ok := os.LookupEnv("CORS_ORIGINS"); ok && origins != "" {
		c.CORSOrigins = splitList(origins)
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// envInt and envDuration ignore values that do not parse.
func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// splitList splits on ';' or ',' and drops empty items.
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
