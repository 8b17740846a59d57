// Package cache provides in-process and shared caches: feature flags kept
// fresh through PostgreSQL LISTEN/NOTIFY and branch metadata in Redis.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/jackc/pgx/v5/pgxpool"

	"lms/internal/core/security"
	"lms/internal/domain/settings"
	"lms/pkg/logger"
)

// FlagsChannel is the NOTIFY channel raised by the feature_flags trigger.
const FlagsChannel = "feature_flags_changed"

// FlagSource loads every active flag row.
type FlagSource interface {
	ListAll(ctx context.Context) ([]*settings.FeatureFlag, error)
}

type flagEntry struct {
	enabled bool
	rule    cel.Program
}

// FlagCache evaluates feature flags from memory. The table is reloaded on
// start, after local writes (Reload) and whenever another node changes a
// flag (NOTIFY feature_flags_changed).
type FlagCache struct {
	source FlagSource
	rules  *RuleEngine
	pool   *pgxpool.Pool

	mu    sync.RWMutex
	flags map[string]flagEntry // lookup key -> entry

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewFlagCache creates the cache. pool may be nil, in which case changes
// made by other nodes are only seen after the next Reload.
func NewFlagCache(source FlagSource, rules *RuleEngine, pool *pgxpool.Pool) *FlagCache {
	return &FlagCache{
		source: source,
		rules:  rules,
		pool:   pool,
		flags:  make(map[string]flagEntry),
	}
}

// Start loads the flags and begins listening for changes.
func (c *FlagCache) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.Reload(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load feature flags: %w", err)
	}
	if c.pool != nil {
		c.wg.Add(1)
		go c.listenLoop()
	}
	logger.Info(c.ctx, "flag cache started")
	return nil
}

// Stop ends the listener and waits for it.
func (c *FlagCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "flag cache stopped")
}

// Reload replaces the table with the current rows. A row whose rule no
// longer compiles is loaded as disabled.
func (c *FlagCache) Reload(ctx context.Context) error {
	rows, err := c.source.ListAll(ctx)
	if err != nil {
		return err
	}

	flags := make(map[string]flagEntry, len(rows))
	for _, f := range rows {
		entry := flagEntry{enabled: f.Enabled}
		if rule := strings.TrimSpace(f.Rule); rule != "" && c.rules != nil {
			prg, err := c.rules.Compile(rule)
			if err != nil {
				logger.Warn(ctx, "feature flag rule does not compile, flag disabled", "key", f.Key, "scope", f.Scope, "error", err)
				entry.enabled = false
			}
			entry.rule = prg
		}
		flags[security.FlagKey(f.Key, f.Scope, f.OwnerID())] = entry
	}

	c.mu.Lock()
	c.flags = flags
	c.mu.Unlock()

	logger.Debug(ctx, "loaded feature flags", "count", len(flags))
	return nil
}

// IsEnabled implements security.FeatureFlagProvider. The most specific
// row wins; a matching row with a rule must also satisfy the rule.
func (c *FlagCache) IsEnabled(ctx context.Context, flag string) bool {
	scope := security.GetScope(ctx)

	c.mu.RLock()
	var (
		entry flagEntry
		found bool
	)
	for _, key := range security.LookupKeys(flag, scope) {
		if entry, found = c.flags[key]; found {
			break
		}
	}
	c.mu.RUnlock()

	if !found || !entry.enabled {
		return false
	}
	if entry.rule == nil {
		return true
	}
	return c.rules.Eval(ctx, entry.rule)
}

// Len returns the number of cached rows.
func (c *FlagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}

func (c *FlagCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+FlagsChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "channel", FlagsChannel, "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}
		logger.Info(c.ctx, "listening for flag changes", "channel", FlagsChannel)

		// Changes made while we were not listening are picked up here.
		if err := c.Reload(c.ctx); err != nil {
			logger.Error(c.ctx, "failed to reload feature flags", "error", err)
		}

		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *FlagCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue // idle timeout
			}
			logger.Warn(c.ctx, "LISTEN connection lost", "error", err)
			return
		}

		logger.Debug(c.ctx, "feature flag changed", "key", n.Payload)
		if err := c.Reload(c.ctx); err != nil {
			logger.Error(c.ctx, "failed to reload feature flags", "error", err)
		}
	}
}

var (
	_ security.FeatureFlagProvider = (*FlagCache)(nil)
	_ settings.FlagInvalidator     = (*FlagCache)(nil)
	_ settings.RuleChecker         = (*RuleEngine)(nil)
)
