package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/loop"
	"github.com/redis/go-redis/v9"
)

const (
	KeyFileRecord = "fr" // HASH. fr:{gri} attribute: value
	KeyFileParent = "fp" // HASH. fp gri: parent gri
	KeySeparator  = ":"

	ScanCount               = 1000
	defaultRecordExpiration = 24 * time.Hour
)

type fileRepository struct {
	connProblem atomic.Bool
	cl          *redis.Client
	ttl         time.Duration
	log         *slog.Logger
}

func NewFileRepository(cl *redis.Client, log *slog.Logger) *fileRepository {
	return &fileRepository{
		cl:  cl,
		ttl: defaultRecordExpiration,
		log: log.With(slog.String("item", "FileRepository")),
	}
}

// HasConnectionProblem is true after a failed redis call until the next
// successful one.
func (r *fileRepository) HasConnectionProblem() bool {
	return r.connProblem.Load()
}

func (r *fileRepository) track(err error) error {
	if err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
		if !r.connProblem.Swap(true) {
			r.log.Warn("Connection problem", slog.Any("error", err))
		}

		return err
	}

	if r.connProblem.Swap(false) {
		r.log.Info("Connection restored")
	}

	return err
}

func (r *fileRepository) Save(ctx context.Context, files ...*entity.File) error {
	if len(files) == 0 {
		return nil
	}

	pipe := r.cl.Pipeline()
	for _, file := range files {
		key := getKey(KeyFileRecord, file.GRI)
		pipe.Del(ctx, key)
		if len(file.Attributes) > 0 {
			pipe.HSet(ctx, key, file.Attributes)
		}
		pipe.Expire(ctx, key, r.ttl)
		pipe.HSet(ctx, KeyFileParent, file.GRI, file.ParentGRI)
	}

	if _, err := pipe.Exec(ctx); r.track(err) != nil {
		return fmt.Errorf("cannot save file records: %w", err)
	}

	return nil
}

func (r *fileRepository) Get(ctx context.Context, gri string) (*entity.File, error) {
	pipe := r.cl.Pipeline()
	attrsCmd := pipe.HGetAll(ctx, getKey(KeyFileRecord, gri))
	parentCmd := pipe.HGet(ctx, KeyFileParent, gri)

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		r.track(err)

		return nil, fmt.Errorf("cannot get file record %s: %w", gri, err)
	}
	r.track(nil)

	attrs := attrsCmd.Val()
	if len(attrs) == 0 {
		return nil, common.ErrRecordNotFoundError
	}

	return &entity.File{
		GRI:        gri,
		ParentGRI:  parentCmd.Val(),
		Attributes: attrs,
	}, nil
}

func (r *fileRepository) Unload(ctx context.Context, gri string) error {
	pipe := r.cl.Pipeline()
	pipe.Del(ctx, getKey(KeyFileRecord, gri))
	pipe.HDel(ctx, KeyFileParent, gri)

	if _, err := pipe.Exec(ctx); r.track(err) != nil {
		return fmt.Errorf("cannot unload file record %s: %w", gri, err)
	}

	return nil
}

// Keys returns GRIs of all stored records.
func (r *fileRepository) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		gris   []string
	)

	prefix := getKey(KeyFileRecord, "")
	for {
		keys, nextCursor, err := r.cl.Scan(ctx, cursor, prefix+"*", ScanCount).Result()
		if r.track(err) != nil {
			return nil, fmt.Errorf("error scanning keys: %w", err)
		}

		for _, key := range keys {
			gris = append(gris, strings.TrimPrefix(key, prefix))
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return gris, nil
}

func (r *fileRepository) Ping(ctx context.Context) error {
	return r.track(r.cl.Ping(ctx).Err())
}

// Watch pings redis every interval while a connection problem is reported.
// Nothing else clears the flag once pollers stop calling redis. Blocks until
// ctx is done.
func (r *fileRepository) Watch(ctx context.Context, interval time.Duration) {
	_, _ = loop.Start(ctx, struct{}{}, func(ctx context.Context, _ struct{}) (struct{}, loop.Next) {
		if r.HasConnectionProblem() {
			pctx, cancel := context.WithTimeout(ctx, interval)
			if err := r.Ping(pctx); err != nil {
				r.log.Debug("Redis still unavailable", slog.Any("error", err))
			}
			cancel()
		}

		return struct{}{}, loop.Continue(interval)
	})
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
