package utils_test

import (
	"testing"
	"time"

	"github.com/user/reelist/internal/utils"
)

func TestSearchCacheExpiry(t *testing.T) {
	c := utils.NewSearchCache[string](10, 20*time.Millisecond)

	c.Set("k", "v")
	if got, ok := c.Get("k"); !ok || got != "v" {
		t.Fatalf("未过期的条目应命中: %q %v", got, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("过期条目不应命中")
	}
	if c.Len() != 0 {
		t.Fatalf("过期条目应被顺手删除，剩 %d", c.Len())
	}
}

func TestSearchCacheEvictsOldest(t *testing.T) {
	c := utils.NewSearchCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("超出容量应淘汰最旧条目，实际 %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("最旧的条目应被淘汰")
	}
}

func TestGlobalCacheNilSafe(t *testing.T) {
	// 缓存未初始化时读写都不应崩溃
	utils.Cache = nil
	if _, ok := utils.CacheGet("k"); ok {
		t.Fatalf("未初始化的缓存不应命中")
	}
	utils.CacheSet("k", "v", time.Minute)
	utils.CacheDelete("k")

	utils.InitCache()
	utils.CacheSet("k", "v", time.Minute)
	if got, ok := utils.CacheGet("k"); !ok || got != "v" {
		t.Fatalf("初始化后的缓存应命中: %v %v", got, ok)
	}
}
