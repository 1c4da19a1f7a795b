package middleware

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// 缓存条目
type cacheEntry struct {
	Content     []byte
	ContentType string
	Expiration  time.Time
}

// ResponseCache 内存响应缓存，只缓存成功的GET响应
type ResponseCache struct {
	mu         sync.RWMutex
	name       string
	items      map[string]cacheEntry
	expiration time.Duration
	maxItems   int
	keyFunc    func(*gin.Context) string
	hits       int64
	misses     int64
}

// 已注册的缓存，供健康检查统计
var (
	cachesMu sync.Mutex
	caches   []*ResponseCache
)

// NewResponseCache 创建响应缓存；params 为空时使用全部查询参数生成键
func NewResponseCache(name string, expiration time.Duration, params ...string) *ResponseCache {
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	rc := &ResponseCache{
		name:       name,
		items:      make(map[string]cacheEntry),
		expiration: expiration,
		maxItems:   1024,
		keyFunc:    defaultKeyFunc,
	}
	if len(params) > 0 {
		rc.keyFunc = paramsKeyFunc(params)
	}

	cachesMu.Lock()
	caches = append(caches, rc)
	cachesMu.Unlock()
	return rc
}

// 默认缓存键：路径加排序后的全部查询参数
func defaultKeyFunc(c *gin.Context) string {
	queryParams := c.Request.URL.Query()
	queryKeys := make([]string, 0, len(queryParams))
	for key := range queryParams {
		queryKeys = append(queryKeys, key)
	}
	sort.Strings(queryKeys)

	var b strings.Builder
	b.WriteString(c.Request.URL.Path)
	b.WriteString("?")
	for _, key := range queryKeys {
		values := queryParams[key]
		sort.Strings(values)
		for _, value := range values {
			b.WriteString(key + "=" + strings.ToLower(strings.TrimSpace(value)) + "&")
		}
	}
	return hashKey(b.String())
}

// 只使用指定的查询参数生成缓存键
func paramsKeyFunc(params []string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		keyParts := []string{c.Request.URL.Path}
		for _, param := range params {
			if value := strings.ToLower(strings.TrimSpace(c.Query(param))); value != "" {
				keyParts = append(keyParts, param+"="+value)
			}
		}
		return hashKey(strings.Join(keyParts, "&"))
	}
}

func hashKey(key string) string {
	hasher := md5.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Handler 返回缓存中间件
func (rc *ResponseCache) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := rc.keyFunc(c)
		now := time.Now()

		// 尝试从缓存获取响应
		rc.mu.RLock()
		entry, found := rc.items[key]
		rc.mu.RUnlock()

		if found && entry.Expiration.After(now) {
			rc.mu.Lock()
			rc.hits++
			rc.mu.Unlock()
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, entry.ContentType, entry.Content)
			c.Abort()
			return
		}

		rc.mu.Lock()
		rc.misses++
		rc.mu.Unlock()

		// 缓存未命中，捕获响应
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		rc.mu.Lock()
		defer rc.mu.Unlock()
		if len(rc.items) >= rc.maxItems {
			rc.evictExpired(now)
		}
		if len(rc.items) < rc.maxItems {
			rc.items[key] = cacheEntry{
				Content:     writer.body.Bytes(),
				ContentType: writer.Header().Get("Content-Type"),
				Expiration:  now.Add(rc.expiration),
			}
		}
	}
}

// 调用方持有写锁
func (rc *ResponseCache) evictExpired(now time.Time) {
	for key, entry := range rc.items {
		if entry.Expiration.Before(now) {
			delete(rc.items, key)
		}
	}
}

// Purge 清除所有缓存
func (rc *ResponseCache) Purge() {
	rc.mu.Lock()
	rc.items = make(map[string]cacheEntry)
	rc.mu.Unlock()
}

// Stats 缓存统计信息
func (rc *ResponseCache) Stats() map[string]interface{} {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	now := time.Now()
	expired := 0
	size := 0
	for _, entry := range rc.items {
		size += len(entry.Content)
		if entry.Expiration.Before(now) {
			expired++
		}
	}
	return map[string]interface{}{
		"name":        rc.name,
		"total_items": len(rc.items),
		"expired":     expired,
		"bytes":       size,
		"hits":        rc.hits,
		"misses":      rc.misses,
		"ttl_seconds": int(rc.expiration.Seconds()),
	}
}

// CacheStats 所有已注册缓存的统计信息
func CacheStats() []map[string]interface{} {
	cachesMu.Lock()
	defer cachesMu.Unlock()

	stats := make([]map[string]interface{}, 0, len(caches))
	for _, rc := range caches {
		stats = append(stats, rc.Stats())
	}
	return stats
}

// 自定义响应写入器，用于捕获响应内容
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 重写Write方法，同时写入原始响应和缓冲区
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// WriteString 重写WriteString方法，同时写入原始响应和缓冲区
func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
