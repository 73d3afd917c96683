package registry

import (
	"log"

	"wapair/internal/config"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
)

// NewStore picks Redis when REDIS_HOST is set and falls back to the in-memory
// store when Redis is absent or unreachable.
func NewStore() (StoreInterface, error) {
	redisHost := config.GetEnv(EnvRedisHost, "")

	if redisHost != "" {
		redisPort := config.GetEnv(EnvRedisPort, "6379")
		redisUser := config.GetEnv(EnvRedisUser, "")
		redisPassword := config.GetEnv(EnvRedisPassword, "")

		store, err := NewRedisStore(redisHost, redisPort, redisUser, redisPassword)
		if err != nil {
			log.Printf("⚠️ Redis connection failed: %v", err)
			log.Println("💾 Falling back to in-memory session registry")
			return NewMemoryStore(), nil
		}
		log.Printf("💾 Using Redis session registry: %s:%s", redisHost, redisPort)
		return store, nil
	}

	log.Println("💾 Using in-memory session registry")
	return NewMemoryStore(), nil
}
