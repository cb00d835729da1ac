// Package server wires the users service together: storage backends, the
// remote directory client, notifications, throttling and the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/userhub/internal/logging"
	"github.com/dmitrijs2005/userhub/internal/server/config"
	"github.com/dmitrijs2005/userhub/internal/server/directory"
	"github.com/dmitrijs2005/userhub/internal/server/httpserver"
	"github.com/dmitrijs2005/userhub/internal/server/notify"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userhub/internal/server/services"
	"github.com/dmitrijs2005/userhub/internal/server/storage"
	"github.com/dmitrijs2005/userhub/internal/server/throttle"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	server  *httpserver.HTTPServer
	closers []io.Closer
}

// NewApp opens every backend named by c. Connections opened before a
// failure are closed again.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}

	defer func() {
		if err != nil {
			app.close(context.WithoutCancel(ctx))
		}
	}()

	app.repos, err = repomanager.New(ctx, c.DatabaseDSN, c.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err = app.repos.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob storage init error: %w", err)
	}

	sink, err := app.newNotifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	opts := httpserver.Options{
		Address:         c.EndpointAddrHTTP,
		CORSOrigins:     c.CORSOrigins,
		ShutdownTimeout: c.ShutdownTimeout,
	}
	if c.RedisAddr != "" {
		rdb, err := throttle.Connect(ctx, c.RedisAddr, c.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, rdb)
		limiter, err := throttle.NewRedisLimiter(rdb, c.ThrottleLimit, c.ThrottleWindow)
		if err != nil {
			return nil, fmt.Errorf("throttle init error: %w", err)
		}
		opts.Limiter = limiter
	}

	dir := directory.New(c.DirectoryBaseURL, c.DirectoryAPIKey, c.DirectoryTimeout)
	avatarService := services.NewAvatarService(app.repos, blobs, logger)
	userService := services.NewUserService(app.repos, dir, avatarService, sink, c.NotifyTimeout, logger)

	app.server = httpserver.NewHTTPServer(opts, userService, logger)

	return app, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (storage.BlobStore, error) {
	if c.S3Bucket == "" {
		return storage.NewLocalStore(c.UploadDir)
	}
	return storage.NewS3Store(ctx, storage.S3Options{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
}

// newNotifier returns nil when neither a queue nor a mail host is set.
func (app *App) newNotifier(ctx context.Context) (services.Notifier, error) {
	c := app.config

	var publisher notify.Publisher
	if c.QueueURI != "" {
		p, err := notify.NewAMQPPublisher(c.QueueURI, c.QueueName)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, p)
		publisher = p
	}

	var mailer notify.Mailer
	if c.MailHost != "" {
		mailer = notify.NewSMTPMailer(c.MailHost, c.MailPort, c.MailUser, c.MailPassword, c.MailFrom)
	}

	if publisher == nil && mailer == nil {
		app.logger.Info(ctx, "user notifications disabled")
		return nil, nil
	}
	return notify.NewSink(publisher, mailer), nil
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil

	if app.repos != nil {
		if err := app.repos.Close(ctx); err != nil {
			app.logger.Warn(ctx, "db close failed", "error", err)
		}
		app.repos = nil
	}
}

// Run serves HTTP until ctx is done and then releases every connection.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	defer app.close(context.WithoutCancel(ctx))

	err := app.server.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "http server failed", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
