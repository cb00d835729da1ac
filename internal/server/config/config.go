// Package config handles configuration for the server component:
// defaults, then an optional JSON/YAML file, then environment variables,
// then command-line flags.
package config

import "time"

// Config holds runtime settings for the users service.
//
// Fields:
//   - EndpointAddrHTTP: bind address of the HTTP API.
//   - DatabaseDSN / DatabaseName: local store. mongodb:// DSNs select the
//     document store, postgres:// DSNs the SQL store.
//   - UploadDir: root directory for avatar files when no S3 bucket is set.
//   - S3*: object storage settings; S3Bucket != "" switches avatar blobs to S3.
//   - Directory*: remote user directory (reqres-compatible) client settings.
//   - Queue*: AMQP broker for user-created events. Empty URI disables it.
//   - Mail*: SMTP settings for welcome mail. Empty host disables it.
//   - Redis* / Throttle*: request throttling. Empty address disables it.
type Config struct {
	EndpointAddrHTTP string
	DatabaseDSN      string
	DatabaseName     string
	UploadDir        string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string

	DirectoryBaseURL string
	DirectoryAPIKey  string
	DirectoryTimeout time.Duration

	QueueURI  string
	QueueName string

	MailHost     string
	MailPort     int
	MailUser     string
	MailPassword string
	MailFrom     string

	RedisAddr      string
	RedisPassword  string
	ThrottleLimit  int
	ThrottleWindow time.Duration

	CORSOrigins []string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	NotifyTimeout   time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3000"
	c.DatabaseDSN = "mongodb://localhost:27017"
	c.DatabaseName = "users"
	c.UploadDir = "uploads"
	c.S3Region = "us-east-1"
	c.DirectoryBaseURL = "https://reqres.in"
	c.DirectoryTimeout = 10 * time.Second
	c.QueueName = "main_queue"
	c.MailPort = 587
	c.MailFrom = "noreply@example.com"
	c.ThrottleLimit = 100
	c.ThrottleWindow = time.Minute
	c.CORSOrigins = []string{"http://localhost:3000"}
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.ShutdownTimeout = 10 * time.Second
	c.NotifyTimeout = 5 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file, the environment and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
