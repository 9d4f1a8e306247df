package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	rplatform "github.com/open-builders/giveaway-draw/internal/platform/redis"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache caches successful GET responses for ttl, keyed by the
// original URL. It is meant for public listings that tolerate short
// staleness; a nil client disables it.
func ResponseCache(rdb *rplatform.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		key := "httpcache:" + c.OriginalURL()

		if bs, err := rdb.Get(c.UserContext(), key).Bytes(); err == nil && len(bs) > 0 {
			var entry cachedResponse
			if json.Unmarshal(bs, &entry) == nil {
				if entry.ContentType != "" {
					c.Set(fiber.HeaderContentType, entry.ContentType)
				}
				c.Set("X-Cache", "HIT")
				c.Status(entry.Status)
				return c.Send(entry.Body)
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			entry := cachedResponse{
				Status:      status,
				ContentType: string(c.Response().Header.ContentType()),
				Body:        append([]byte(nil), c.Response().Body()...),
			}
			if payload, err := json.Marshal(entry); err == nil {
				if err := rdb.SetEx(context.Background(), key, payload, ttl).Err(); err != nil {
					log.Debug().Err(err).Str("key", key).Msg("response cache write failed")
				}
			}
		}
		c.Set("X-Cache", "MISS")
		return nil
	}
}
