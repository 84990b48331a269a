package evaluation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-intent/internal/model"
)

const (
	// 评估结果在 Redis 中的默认过期时间
	defaultResultTTL = 24 * time.Hour
	// Redis key 前缀
	resultKeyPrefix = "next-intent:evaluation:"
	// 内存中最多保留的结果数，超出时淘汰最早写入的
	defaultMaxEntries = 1000
)

type cacheEntry struct {
	result   *model.EvaluationResult
	storedAt time.Time
}

// ResultCache 评估结果缓存
// 结果创建后不可变，内存命中直接返回，未命中时回源 Redis
// 内存条目与 Redis 使用相同的有效期，并受 maxEntries 限制；淘汰后由调用方回源数据库
type ResultCache struct {
	mu         sync.RWMutex
	memory     map[string]cacheEntry
	redis      *redis.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
}

// NewResultCache 创建结果缓存，redisClient 可为 nil
func NewResultCache(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &ResultCache{
		memory:     make(map[string]cacheEntry),
		redis:      redisClient,
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		now:        time.Now,
		logger:     logger,
	}
}

// Get 获取缓存的结果
func (c *ResultCache) Get(ctx context.Context, id string) (*model.EvaluationResult, bool) {
	c.mu.RLock()
	e, ok := c.memory[id]
	c.mu.RUnlock()
	if ok && !c.expired(e) {
		return e.result, true
	}
	if ok {
		c.mu.Lock()
		if cur, still := c.memory[id]; still && c.expired(cur) {
			delete(c.memory, id)
		}
		c.mu.Unlock()
	}

	if c.redis == nil {
		return nil, false
	}
	r := c.loadFromRedis(ctx, id)
	if r == nil {
		return nil, false
	}

	c.store(r)
	return r, true
}

// Put 写入内存并同步到 Redis
func (c *ResultCache) Put(ctx context.Context, r *model.EvaluationResult) {
	c.store(r)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("failed to encode evaluation result", zap.String("evaluation_id", r.ID), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, resultKeyPrefix+r.ID, data, c.ttl).Err(); err != nil {
		// 记录错误但不影响主流程
		c.logger.Warn("failed to save evaluation result to redis", zap.String("evaluation_id", r.ID), zap.Error(err))
	}
}

// Len 内存中的结果数
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

func (c *ResultCache) store(r *model.EvaluationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memory[r.ID] = cacheEntry{result: r, storedAt: c.now()}
	if len(c.memory) <= c.maxEntries {
		return
	}

	for id, e := range c.memory {
		if c.expired(e) {
			delete(c.memory, id)
		}
	}
	for len(c.memory) > c.maxEntries {
		oldest, oldestAt := "", time.Time{}
		for id, e := range c.memory {
			if oldest == "" || e.storedAt.Before(oldestAt) {
				oldest, oldestAt = id, e.storedAt
			}
		}
		delete(c.memory, oldest)
	}
}

func (c *ResultCache) expired(e cacheEntry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

func (c *ResultCache) loadFromRedis(ctx context.Context, id string) *model.EvaluationResult {
	data, err := c.redis.Get(ctx, resultKeyPrefix+id).Bytes()
	if err != nil {
		return nil
	}
	var r model.EvaluationResult
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Warn("discarding corrupt cached evaluation", zap.String("evaluation_id", id), zap.Error(err))
		return nil
	}
	return &r
}
