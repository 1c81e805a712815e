// Package redis stores session transcripts in Redis.
//
// Each session is a list of JSON-encoded messages under
// "<prefix><id>:messages" plus a hash "<prefix><id>:meta" holding the
// creation time, the last update time and free-form metadata.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hupe1980/lifemesh/core"
)

const (
	fieldCreated = "_created"
	fieldUpdated = "_updated"
)

// Options configures a Store.
type Options struct {
	// Prefix namespaces all keys.
	Prefix string
	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration
	// OpTimeout bounds each Redis round trip.
	OpTimeout time.Duration
}

// Store is a core.SessionStore backed by Redis.
type Store struct {
	client goredis.UniversalClient
	opts   Options
}

var _ core.SessionStore = (*Store)(nil)

// New creates a store over client.
func New(client goredis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{
		Prefix:    "lifemesh:session:",
		OpTimeout: 5 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, opts: opts}
}

// Dial connects to the Redis server at addr, which is either host:port or a
// redis:// URL, and verifies the connection.
func Dial(ctx context.Context, addr string, optFns ...func(o *Options)) (*Store, error) {
	var opt *goredis.Options
	if strings.Contains(addr, "://") {
		var err error
		if opt, err = goredis.ParseURL(addr); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		opt = &goredis.Options{Addr: addr}
	}

	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opt.Addr, err)
	}
	return New(client, optFns...), nil
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) messagesKey(id string) string { return s.opts.Prefix + id + ":messages" }

func (s *Store) metaKey(id string) string { return s.opts.Prefix + id + ":meta" }

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	if s.opts.OpTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.opts.OpTimeout)
}

// Get implements core.SessionStore. A missing session is created.
func (s *Store) Get(id string) (*core.Session, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		rangeCmd *goredis.StringSliceCmd
		metaCmd  *goredis.MapStringStringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSetNX(ctx, s.metaKey(id), fieldCreated, now)
		p.HSetNX(ctx, s.metaKey(id), fieldUpdated, now)
		rangeCmd = p.LRange(ctx, s.messagesKey(id), 0, -1)
		metaCmd = p.HGetAll(ctx, s.metaKey(id))
		s.expire(ctx, p, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: get session %s: %w", id, err)
	}

	msgs, err := decodeMessages(rangeCmd.Val())
	if err != nil {
		return nil, fmt.Errorf("redis: session %s: %w", id, err)
	}
	return buildSession(id, msgs, metaCmd.Val()), nil
}

// Append implements core.SessionStore.
func (s *Store) Append(id string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values, err := encodeMessages(msgs)
	if err != nil {
		return fmt.Errorf("redis: session %s: %w", id, err)
	}

	ctx, cancel := s.ctx()
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, s.messagesKey(id), values...)
		p.HSetNX(ctx, s.metaKey(id), fieldCreated, now)
		p.HSet(ctx, s.metaKey(id), fieldUpdated, now)
		s.expire(ctx, p, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: append session %s: %w", id, err)
	}
	return nil
}

// SetMetadata sets one metadata entry.
func (s *Store) SetMetadata(id, key, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.HSet(ctx, s.metaKey(id), key, value).Err()
}

// Delete removes a session.
func (s *Store) Delete(id string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, s.messagesKey(id), s.metaKey(id)).Err()
}

func (s *Store) expire(ctx context.Context, p goredis.Pipeliner, id string) {
	if s.opts.TTL <= 0 {
		return
	}
	p.Expire(ctx, s.messagesKey(id), s.opts.TTL)
	p.Expire(ctx, s.metaKey(id), s.opts.TTL)
}

func encodeMessages(msgs []core.Message) ([]any, error) {
	values := make([]any, len(msgs))
	for i, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		values[i] = string(b)
	}
	return values, nil
}

func decodeMessages(raw []string) ([]core.Message, error) {
	msgs := make([]core.Message, 0, len(raw))
	for i, r := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func buildSession(id string, msgs []core.Message, meta map[string]string) *core.Session {
	sess := core.NewSession(id)
	sess.Messages = msgs
	for k, v := range meta {
		switch k {
		case fieldCreated:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				sess.Created = t
			}
		case fieldUpdated:
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				sess.Updated = t
			}
		default:
			sess.Metadata[k] = v
		}
	}
	return sess
}
