// Package logging provides config-driven categorized logging for cartsync.
// Every subsystem logs through its own named zap logger. Until Initialize (or Install)
// is called, every category is a no-op, so library code can log unconditionally.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config and wiring
	CategoryStorage  Category = "storage"  // Local key/value persistence
	CategoryGuest    Category = "guest"    // Anonymous cart/wishlist store
	CategoryRemote   Category = "remote"   // Backend REST calls
	CategoryCoalesce Category = "coalesce" // Fetch freshness/cooldown decisions
	CategoryState    Category = "state"    // Reducer, effects, optimistic mutations
	CategorySession  Category = "session"  // Login-time guest merge
	CategoryCLI      Category = "cli"      // Command line front end
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level       string          // debug, info, warn, error
	JSON        bool            // json encoder instead of console
	OutputPaths []string        // zap sink URLs; empty means stderr
	Categories  map[string]bool // nil enables every category
}

// Logger is a category-scoped sugared zap logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	loggers    = make(map[Category]*Logger)
	categories map[string]bool
)

// Initialize builds the root zap logger from opts and installs it.
func Initialize(opts Options) error {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || opts.Level == "" {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if !opts.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	Install(l, opts.Categories)

	Boot("logging initialized (level=%s json=%v)", level, opts.JSON)
	return nil
}

// Install replaces the root logger. Tests use it with zaptest/observer cores.
func Install(l *zap.Logger, enabled map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	categories = enabled
	loggers = make(map[Category]*Logger)
}

// Reset restores the no-op logger.
func Reset() {
	Install(nil, nil)
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return root.Sync()
}

// IsCategoryEnabled returns whether a category is allowed by the installed filter.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	base := root
	if !categoryEnabledLocked(category) {
		base = zap.NewNop()
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// With returns a child logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

func Storage(format string, args ...interface{})      { Get(CategoryStorage).Info(format, args...) }
func StorageDebug(format string, args ...interface{}) { Get(CategoryStorage).Debug(format, args...) }
func StorageWarn(format string, args ...interface{})  { Get(CategoryStorage).Warn(format, args...) }

func Guest(format string, args ...interface{})      { Get(CategoryGuest).Info(format, args...) }
func GuestDebug(format string, args ...interface{}) { Get(CategoryGuest).Debug(format, args...) }
func GuestWarn(format string, args ...interface{})  { Get(CategoryGuest).Warn(format, args...) }

func Remote(format string, args ...interface{})      { Get(CategoryRemote).Info(format, args...) }
func RemoteDebug(format string, args ...interface{}) { Get(CategoryRemote).Debug(format, args...) }
func RemoteWarn(format string, args ...interface{})  { Get(CategoryRemote).Warn(format, args...) }

func CoalesceDebug(format string, args ...interface{}) { Get(CategoryCoalesce).Debug(format, args...) }

func State(format string, args ...interface{})      { Get(CategoryState).Info(format, args...) }
func StateDebug(format string, args ...interface{}) { Get(CategoryState).Debug(format, args...) }
func StateWarn(format string, args ...interface{})  { Get(CategoryState).Warn(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionWarn(format string, args ...interface{})  { Get(CategorySession).Warn(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer measures operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
