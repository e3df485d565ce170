package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AppError type with appropriate
// status codes. A missing key becomes ErrNotFound; anything else is treated
// as the upstream store being unavailable.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, ErrNotFound, http.StatusNotFound, RedisNotFoundMessage)
	}

	return New(err, ErrUpstreamUnavailable, http.StatusBadGateway, RedisErrorMessage)
}
