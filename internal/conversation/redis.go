package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"ragchat/internal/models"
	rdb "ragchat/internal/redis"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps each conversation as a JSON-encoded list plus a set of known ids.
type RedisStore struct {
	client    *rdb.Client
	namespace string
}

func NewRedisStore(client *rdb.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) idsKey() string {
	return fmt.Sprintf("ragchat:%s:conversations", s.namespace)
}

func (s *RedisStore) messagesKey(id string) string {
	return fmt.Sprintf("ragchat:%s:conversation:%s", s.namespace, id)
}

func (s *RedisStore) Create(ctx context.Context, seed ...models.Message) (string, error) {
	id := NewID()
	values := make([]interface{}, 0, len(seed))
	for _, msg := range seed {
		raw, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("encode message: %w", err)
		}
		values = append(values, raw)
	}
	err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.idsKey(), id)
		if len(values) > 0 {
			pipe.RPush(ctx, s.messagesKey(id), values...)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return id, nil
}

func (s *RedisStore) exists(ctx context.Context, id string) error {
	ok, err := s.client.SIsMember(ctx, s.idsKey(), id)
	if err != nil {
		return fmt.Errorf("lookup conversation: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]models.Message, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	raws, err := s.client.LRange(ctx, s.messagesKey(id), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	msgs := make([]models.Message, 0, len(raws))
	for _, raw := range raws {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg models.Message) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.client.RPush(ctx, s.messagesKey(id), raw); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.SRem(ctx, s.idsKey(), id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return s.client.Del(ctx, s.messagesKey(id))
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey())
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return ids, nil
}
