package services

import (
	"time"

	"reina/internal/cache"
	"reina/internal/core"
)

// Cache key prefixes. Mutations drop whole prefixes.
const (
	prefixExpenses      = "expenses:"
	prefixTotals        = "totals:"
	prefixNotifications = "notifications:"
)

// Caches groups the per-type query caches shared by the services.
type Caches struct {
	Pages         cache.Cache[core.ExpensePage]
	Totals        cache.Cache[core.Money]
	Notifications cache.Cache[[]core.Notification]
}

// NewCaches builds LRU caches of the given size and TTL and registers them
// with manager for periodic expiry when manager is non-nil.
func NewCaches(size int, ttl time.Duration, manager *cache.Manager) *Caches {
	pages := cache.NewLRUCache[core.ExpensePage](size, ttl)
	totals := cache.NewLRUCache[core.Money](size, ttl)
	notifications := cache.NewLRUCache[[]core.Notification](size, ttl)
	if manager != nil {
		manager.Register(pages)
		manager.Register(totals)
		manager.Register(notifications)
	}
	return &Caches{Pages: pages, Totals: totals, Notifications: notifications}
}

func (c *Caches) invalidateExpenses() {
	if c == nil {
		return
	}
	c.Pages.InvalidatePrefix(prefixExpenses)
	c.Totals.InvalidatePrefix(prefixTotals)
}

func (c *Caches) invalidateNotifications() {
	if c == nil {
		return
	}
	c.Notifications.InvalidatePrefix(prefixNotifications)
}
