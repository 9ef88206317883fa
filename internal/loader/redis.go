package loader

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/go-redis/redis/v8"
)

const (
	DefaultRedisKey = "warden:rules"
)

type redisLoaderOptions struct {
	db       int
	username string
	password string
	key      string
}

type RedisLoaderOption func(opts *redisLoaderOptions)

func DBRedisLoaderOption(db int) RedisLoaderOption {
	return func(opts *redisLoaderOptions) {
		opts.db = db
	}
}

func UsernameRedisLoaderOption(username string) RedisLoaderOption {
	return func(opts *redisLoaderOptions) {
		opts.username = username
	}
}

func PasswordRedisLoaderOption(password string) RedisLoaderOption {
	return func(opts *redisLoaderOptions) {
		opts.password = password
	}
}

func KeyRedisLoaderOption(key string) RedisLoaderOption {
	return func(opts *redisLoaderOptions) {
		opts.key = key
	}
}

func newRedisClient(addr string, opts []RedisLoaderOption) (*redis.Client, string) {
	var options redisLoaderOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	key := options.key
	if key == "" {
		key = DefaultRedisKey
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: options.username,
		Password: options.password,
		DB:       options.db,
	}), key
}

type redisStringLoader struct {
	client *redis.Client
	key    string
}

// RedisStringLoader loads a whole document stored in a redis string.
func RedisStringLoader(addr string, opts ...RedisLoaderOption) Loader {
	client, key := newRedisClient(addr, opts)
	return &redisStringLoader{
		client: client,
		key:    key,
	}
}

func (p *redisStringLoader) Load(ctx context.Context) (io.Reader, error) {
	v, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(v), nil
}

func (p *redisStringLoader) Close() error {
	return p.client.Close()
}

type redisListLoader struct {
	client *redis.Client
	key    string
}

// RedisListLoader loads items from a redis list, one item per line.
func RedisListLoader(addr string, opts ...RedisLoaderOption) Loader {
	client, key := newRedisClient(addr, opts)
	return &redisListLoader{
		client: client,
		key:    key,
	}
}

func (p *redisListLoader) Load(ctx context.Context) (io.Reader, error) {
	v, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(strings.Join(v, "\n")), nil
}

// List implements Lister interface{}
func (p *redisListLoader) List(ctx context.Context) ([]string, error) {
	return p.client.LRange(ctx, p.key, 0, -1).Result()
}

func (p *redisListLoader) Close() error {
	return p.client.Close()
}
