package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"sn-go/internal/cache"
	"sn-go/internal/config"
	"sn-go/internal/credentials"
	"sn-go/internal/database"
	"sn-go/internal/events"
	"sn-go/internal/media"
	"sn-go/internal/model"
	"sn-go/internal/sn"
)

// SNApp is the application layer between the CLI and SNService.
// It constructs all dependencies from config, exposes operations that accept
// raw file paths, and releases every backend on Close.
type SNApp struct {
	cfg     *config.Config
	raw     sn.Store // the store without cache decoration
	store   sn.Store
	media   sn.MediaStore
	hasher  *credentials.BcryptHasher
	service *sn.SNService
	logger  sn.Logger
	op      *Operation
	logFile *os.File
	closers []func() error
}

// NewSNApp creates a fully wired SNApp from the given config.
// operation identifies the CLI command being run (e.g. "Follow", "CreatePost").
// The caller must call Close when done.
func NewSNApp(ctx context.Context, cfg *config.Config, operation string, verbose bool) (_ *SNApp, err error) {
	a := &SNApp{cfg: cfg, op: NewOperation(operation, "", time.Now())}
	defer func() {
		if err != nil {
			a.closeAll()
		}
	}()

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	slogger, logFile, err := newLogger(cfg.LogDir, a.op.ID, verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.logFile = logFile
	a.logger = &slogAdapter{l: slogger}

	if a.raw, err = database.NewStoreFromConfig(ctx, cfg.Database); err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	a.store = a.raw
	a.closers = append(a.closers, a.raw.Close)

	if cfg.Cache.Type == "redis" {
		ttl, err := cfg.Cache.Expiry()
		if err != nil {
			return nil, err
		}
		client := cache.NewRedisClient(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		a.closers = append(a.closers, client.Close)
		a.store = cache.NewGraphCache(a.raw, client, ttl, a.logger)
	}

	if a.media, err = media.NewMediaStoreFromConfig(ctx, cfg.Media); err != nil {
		return nil, fmt.Errorf("creating media store: %w", err)
	}

	var sink sn.FindingSink = sn.NewLogSink(a.logger)
	if cfg.Events.Type == "amqp" {
		amqpSink, err := events.DialAMQPSink(cfg.Events.AMQPURL, a.topology())
		if err != nil {
			return nil, fmt.Errorf("creating finding sink: %w", err)
		}
		a.closers = append(a.closers, amqpSink.Close)
		sink = amqpSink
	}

	if a.hasher, err = credentials.NewBcryptHasher(0); err != nil {
		return nil, err
	}

	a.service = sn.NewSNService(a.store, a.media, a.hasher, sink, a.logger, sn.RealClock{}, sn.UUIDGenerator{})
	a.service.SetOperationTimeout(timeout)
	a.logger.Debug("operation started", "name", operation, "database", cfg.Database.Type, "media", cfg.Media.Type)
	return a, nil
}

func (a *SNApp) topology() events.Topology {
	return events.Topology{Exchange: a.cfg.Events.Exchange, Queue: a.cfg.Events.Queue}
}

// Service returns the underlying service for operations that take no files.
func (a *SNApp) Service() *sn.SNService {
	return a.service
}

// Hasher returns the password hasher, for callers that verify credentials.
func (a *SNApp) Hasher() *credentials.BcryptHasher {
	return a.hasher
}

// ValidateSetup checks that the document store and the media store are reachable.
func (a *SNApp) ValidateSetup(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := a.media.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("media store: %w", err)
	}
	return nil
}

// RegisterUser creates an account. imagePath may be empty.
func (a *SNApp) RegisterUser(ctx context.Context, nu sn.NewUser, imagePath string) (*model.User, error) {
	var u *model.User
	err := withUpload(imagePath, func(up *sn.Upload) (err error) {
		nu.ProfileImage = up
		u, err = a.service.RegisterUser(ctx, nu)
		return err
	})
	return u, err
}

// UpdateProfile applies changes, reading new images from the given paths.
// Empty paths leave the corresponding image alone.
func (a *SNApp) UpdateProfile(ctx context.Context, userID string, ch sn.ProfileChanges, profilePath, coverPath string) (*model.User, error) {
	var u *model.User
	err := withUpload(profilePath, func(profile *sn.Upload) error {
		return withUpload(coverPath, func(cover *sn.Upload) (err error) {
			ch.ProfileImage, ch.CoverImage = profile, cover
			u, err = a.service.UpdateProfile(ctx, userID, ch)
			return err
		})
	})
	return u, err
}

// ReplaceUserImage replaces a profile or cover image with the file at path.
func (a *SNApp) ReplaceUserImage(ctx context.Context, userID string, slot model.ImageSlot, path string) (*model.User, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: image path is required", sn.ErrInvalidInput)
	}
	var u *model.User
	err := withUpload(path, func(up *sn.Upload) (err error) {
		u, err = a.service.ReplaceUserImage(ctx, userID, slot, *up)
		return err
	})
	return u, err
}

// CreatePost publishes a post. mediaPath may be empty; its extension decides
// between image and video.
func (a *SNApp) CreatePost(ctx context.Context, np sn.NewPost, mediaPath string) (*sn.PostView, error) {
	var v *sn.PostView
	err := withUpload(mediaPath, func(up *sn.Upload) (err error) {
		np.Media = up
		v, err = a.service.CreatePost(ctx, np)
		return err
	})
	return v, err
}

// UpdatePost applies changes to a post, reading new media from mediaPath if set.
func (a *SNApp) UpdatePost(ctx context.Context, postID string, ch sn.PostChanges, mediaPath string) (*model.Post, error) {
	var p *model.Post
	err := withUpload(mediaPath, func(up *sn.Upload) (err error) {
		ch.Media = up
		p, err = a.service.UpdatePost(ctx, postID, ch)
		return err
	})
	return p, err
}

// AddComment comments on a post. imagePath may be empty.
func (a *SNApp) AddComment(ctx context.Context, postID, authorID, text, imagePath string) (*sn.CommentView, error) {
	var v *sn.CommentView
	err := withUpload(imagePath, func(up *sn.Upload) (err error) {
		v, err = a.service.AddComment(ctx, postID, authorID, text, up)
		return err
	})
	return v, err
}

// UpdateComment changes a comment's text, image or both.
func (a *SNApp) UpdateComment(ctx context.Context, commentID string, text *string, imagePath string) (*model.Comment, error) {
	var c *model.Comment
	err := withUpload(imagePath, func(up *sn.Upload) (err error) {
		c, err = a.service.UpdateComment(ctx, commentID, text, up)
		return err
	})
	return c, err
}

// Backup writes a consistent copy of the document store to dest.
// Only the SQLite store supports this.
func (a *SNApp) Backup(ctx context.Context, dest string) error {
	b, ok := a.raw.(interface {
		BackupTo(ctx context.Context, destPath string) error
	})
	if !ok {
		return fmt.Errorf("%w: %s store does not support backups", sn.ErrInvalidInput, a.cfg.Database.Type)
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%w: %s already exists", sn.ErrConflict, dest)
	}
	if err := b.BackupTo(ctx, dest); err != nil {
		return err
	}
	a.logger.Info("store backed up", "dest", dest)
	return nil
}

// RunMaintenance runs scheduled graph reconciliation and, when findings go
// to a broker, the finding consumer. It blocks until ctx is done.
func (a *SNApp) RunMaintenance(ctx context.Context) error {
	sched, err := NewScheduler(a.service, a.cfg.Maintenance.Schedule, a.logger)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	a.logger.Info("maintenance started", "schedule", a.cfg.Maintenance.Schedule)

	if a.cfg.Events.Type != "amqp" {
		<-ctx.Done()
		return nil
	}

	consumer, err := events.DialConsumer(a.cfg.Events.AMQPURL, a.topology(), a.service, a.logger)
	if err != nil {
		return fmt.Errorf("starting finding consumer: %w", err)
	}
	defer consumer.Close()
	return consumer.Run(ctx)
}

// Close finishes the operation record and closes all resources.
// opErr is the outcome of the command and only affects the operation log.
func (a *SNApp) Close(opErr error) error {
	a.op.Finish(opErr, time.Now())
	if a.logger != nil {
		a.logger.Info("operation finished", "name", a.op.Name, "status", a.op.Status, "duration", a.op.Duration())
	}
	return a.closeAll()
}

// closeAll closes resources in reverse order of creation.
func (a *SNApp) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return errors.Join(errs...)
}

// withUpload opens path as an upload for the duration of fn. An empty path
// calls fn with a nil upload.
func withUpload(path string, fn func(*sn.Upload) error) error {
	if path == "" {
		return fn(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening media file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", sn.ErrInvalidInput, path)
	}
	return fn(&sn.Upload{Body: f, Size: info.Size(), Kind: model.MediaKindFromFilename(path)})
}
