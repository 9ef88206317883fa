package reporter

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

const defaultRedisKey = "warden:reports"

type redisSinkOptions struct {
	db       int
	username string
	password string
	key      string
	maxLen   int64
}

type RedisSinkOption func(opts *redisSinkOptions)

func DBRedisSinkOption(db int) RedisSinkOption {
	return func(opts *redisSinkOptions) {
		opts.db = db
	}
}

func UsernameRedisSinkOption(username string) RedisSinkOption {
	return func(opts *redisSinkOptions) {
		opts.username = username
	}
}

func PasswordRedisSinkOption(password string) RedisSinkOption {
	return func(opts *redisSinkOptions) {
		opts.password = password
	}
}

func KeyRedisSinkOption(key string) RedisSinkOption {
	return func(opts *redisSinkOptions) {
		opts.key = key
	}
}

// MaxLenRedisSinkOption caps the list, older batches are trimmed.
func MaxLenRedisSinkOption(n int64) RedisSinkOption {
	return func(opts *redisSinkOptions) {
		opts.maxLen = n
	}
}

type redisSink struct {
	client *redis.Client
	key    string
	maxLen int64
}

// RedisSink pushes batches as JSON onto the head of a redis list.
func RedisSink(addr string, opts ...RedisSinkOption) Sink {
	var options redisSinkOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.key == "" {
		options.key = defaultRedisKey
	}

	return &redisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Username: options.username,
			Password: options.password,
			DB:       options.db,
		}),
		key:    options.key,
		maxLen: options.maxLen,
	}
}

func (s *redisSink) Name() string { return "redis" }

func (s *redisSink) Send(ctx context.Context, b *Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.key, data)
		if s.maxLen > 0 {
			pipe.LTrim(ctx, s.key, 0, s.maxLen-1)
		}
		return nil
	})
	return err
}

func (s *redisSink) Close() error {
	return s.client.Close()
}
