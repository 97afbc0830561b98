package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/logger"
)

// AnswerCache stores model answers per PDF and question.
type AnswerCache interface {
	Get(ctx context.Context, pdfID, question string) (*ai.Answer, bool)
	Set(ctx context.Context, pdfID, question string, answer *ai.Answer)
}

// RedisAnswerCache keeps answers in Redis with a fixed TTL. Errors are
// logged and treated as misses.
type RedisAnswerCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAnswerCache(rdb *redis.Client, ttl time.Duration) *RedisAnswerCache {
	return &RedisAnswerCache{rdb: rdb, ttl: ttl}
}

// answerKey hashes the normalized question so equivalent phrasings share an entry.
func answerKey(pdfID, question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "answer:" + pdfID + ":" + hex.EncodeToString(sum[:16])
}

func (c *RedisAnswerCache) Get(ctx context.Context, pdfID, question string) (*ai.Answer, bool) {
	raw, err := c.rdb.Get(ctx, answerKey(pdfID, question)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("answer cache read failed", "pdf_id", pdfID, "error", err)
		return nil, false
	}

	var answer ai.Answer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, false
	}
	return &answer, true
}

func (c *RedisAnswerCache) Set(ctx context.Context, pdfID, question string, answer *ai.Answer) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, answerKey(pdfID, question), raw, c.ttl).Err(); err != nil {
		logger.Warn("answer cache write failed", "pdf_id", pdfID, "error", err)
	}
}
