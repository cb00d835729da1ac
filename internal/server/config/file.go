package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/userhub/internal/flagx"
	"github.com/dmitrijs2005/userhub/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so both "30s" and integer nanoseconds are accepted.
// Fields left out of the file keep their previous value.
type FileConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn" yaml:"database_dsn"`
	DatabaseName     string         `json:"database_name" yaml:"database_name"`
	UploadDir        string         `json:"upload_dir" yaml:"upload_dir"`
	S3RootUser       string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region         string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	DirectoryBaseURL string         `json:"directory_base_url" yaml:"directory_base_url"`
	DirectoryAPIKey  string         `json:"directory_api_key" yaml:"directory_api_key"`
	DirectoryTimeout timex.Duration `json:"directory_timeout" yaml:"directory_timeout"`
	QueueURI         string         `json:"queue_uri" yaml:"queue_uri"`
	QueueName        string         `json:"queue_name" yaml:"queue_name"`
	MailHost         string         `json:"mail_host" yaml:"mail_host"`
	MailPort         int            `json:"mail_port" yaml:"mail_port"`
	MailUser         string         `json:"mail_user" yaml:"mail_user"`
	MailPassword     string         `json:"mail_password" yaml:"mail_password"`
	MailFrom         string         `json:"mail_from" yaml:"mail_from"`
	RedisAddr        string         `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword    string         `json:"redis_password" yaml:"redis_password"`
	ThrottleLimit    int            `json:"throttle_limit" yaml:"throttle_limit"`
	ThrottleWindow   timex.Duration `json:"throttle_window" yaml:"throttle_window"`
	CORSOrigins      []string       `json:"cors_origins" yaml:"cors_origins"`
	LogLevel         string         `json:"log_level" yaml:"log_level"`
	LogFormat        string         `json:"log_format" yaml:"log_format"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	NotifyTimeout    timex.Duration `json:"notify_timeout" yaml:"notify_timeout"`
}

// parseFile loads the file named by -c/-config into config. Files ending in
// .yaml or .yml are decoded as YAML, everything else as JSON. A file that
// cannot be read or decoded panics; no flag means nothing to load.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.DatabaseName, fc.DatabaseName)
	setString(&c.UploadDir, fc.UploadDir)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.DirectoryBaseURL, fc.DirectoryBaseURL)
	setString(&c.DirectoryAPIKey, fc.DirectoryAPIKey)
	setString(&c.QueueURI, fc.QueueURI)
	setString(&c.QueueName, fc.QueueName)
	setString(&c.MailHost, fc.MailHost)
	setString(&c.MailUser, fc.MailUser)
	setString(&c.MailPassword, fc.MailPassword)
	setString(&c.MailFrom, fc.MailFrom)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.MailPort != 0 {
		c.MailPort = fc.MailPort
	}
	if fc.ThrottleLimit != 0 {
		c.ThrottleLimit = fc.ThrottleLimit
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	if fc.DirectoryTimeout.Duration != 0 {
		c.DirectoryTimeout = fc.DirectoryTimeout.Duration
	}
	if fc.ThrottleWindow.Duration != 0 {
		c.ThrottleWindow = fc.ThrottleWindow.Duration
	}
	if fc.ShutdownTimeout.Duration != 0 {
		c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	if fc.NotifyTimeout.Duration != 0 {
		c.NotifyTimeout = fc.NotifyTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
