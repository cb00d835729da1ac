package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/userhub/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   database DSN (mongodb://... or postgres://...)
//	-n string   database name (document store)
//	-u string   avatar upload directory
//	-b string   S3 bucket (enables S3 avatar storage)
//	-r string   remote user directory base URL
//	-q string   AMQP URI for user-created events
//	-m string   SMTP host
//	-t int      remote directory timeout, seconds
//	-l string   log level
//
// Only recognised flags are parsed, see flagx.FilterArgs.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-n", "-u", "-b", "-r", "-q", "-m", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DatabaseName, "n", config.DatabaseName, "database name")
	fs.StringVar(&config.UploadDir, "u", config.UploadDir, "avatar upload directory")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for avatars")
	fs.StringVar(&config.DirectoryBaseURL, "r", config.DirectoryBaseURL, "remote user directory base URL")
	fs.StringVar(&config.QueueURI, "q", config.QueueURI, "AMQP URI")
	fs.StringVar(&config.MailHost, "m", config.MailHost, "SMTP host")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	directoryTimeout := fs.Int("t", int(config.DirectoryTimeout.Seconds()), "remote directory timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DirectoryTimeout = time.Duration(*directoryTimeout) * time.Second
}
