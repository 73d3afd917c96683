package registry

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"wapair/internal/constants"
)

const redisKeyPrefix = "wapair:session:"

// RedisStore keeps sessions in Redis so several processes can share one
// registry. Entries carry a safety TTL; the orchestrator removes them
// explicitly long before that.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
	cancel func()
}

func NewRedisStore(host, port, username, password string) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{client: client, ctx: ctx, cancel: cancel}

	if err := store.client.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, err
	}

	return store, nil
}

func (st *RedisStore) Put(sessionID, instanceName, status string) {
	sess := &Session{
		SessionID:    sessionID,
		InstanceName: instanceName,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	st.save(sess, constants.RegistryTTL)
	log.Printf("💾 Session registered (Redis): %s -> %s (%s)", sessionID, instanceName, status)
}

func (st *RedisStore) save(sess *Session, ttl time.Duration) {
	data, err := json.Marshal(sess)
	if err != nil {
		log.Printf("Failed to marshal session: %v", err)
		return
	}
	key := redisKeyPrefix + sess.SessionID
	if err := st.client.Set(st.ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Failed to save session to Redis: %v", err)
	}
}

func (st *RedisStore) Get(sessionID string) (*Session, bool) {
	data, err := st.client.Get(st.ctx, redisKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("Failed to get session from Redis: %v", err)
		return nil, false
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		log.Printf("Failed to unmarshal session: %v", err)
		return nil, false
	}
	return &sess, true
}

func (st *RedisStore) FindInstanceName(sessionID string) (string, bool) {
	sess, ok := st.Get(sessionID)
	if !ok {
		return "", false
	}
	return sess.InstanceName, true
}

func (st *RedisStore) UpdateStatus(instanceName, status string) {
	iter := st.client.Scan(st.ctx, 0, redisKeyPrefix+"*", 100).Iterator()

	for iter.Next(st.ctx) {
		key := iter.Val()
		data, err := st.client.Get(st.ctx, key).Result()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			continue
		}
		if sess.InstanceName != instanceName {
			continue
		}
		sess.Status = status
		st.save(&sess, redis.KeepTTL)
		return
	}

	if err := iter.Err(); err != nil {
		log.Printf("Redis scan error: %v", err)
		return
	}
	log.Printf("⚠️ Status update for unknown instance: %s (%s)", instanceName, status)
}

func (st *RedisStore) Remove(sessionID string) {
	if err := st.client.Del(st.ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		log.Printf("Failed to delete session from Redis: %v", err)
		return
	}
	log.Printf("🗑 Session removed (Redis): %s", sessionID)
}

func (st *RedisStore) List() []*Session {
	var out []*Session
	iter := st.client.Scan(st.ctx, 0, redisKeyPrefix+"*", 100).Iterator()

	for iter.Next(st.ctx) {
		data, err := st.client.Get(st.ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			continue
		}
		out = append(out, &sess)
	}

	if err := iter.Err(); err != nil {
		log.Printf("Redis scan error: %v", err)
	}
	return out
}

func (st *RedisStore) Close() error {
	st.cancel()
	return st.client.Close()
}
