package pattern

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/diffkemp/diffpat/internal/config"
	"github.com/diffkemp/diffpat/internal/errors"
	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/metadata"
)

// Option configures a Comparator
type Option func(*Comparator)

// WithLogger sets the logger used to report load failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Comparator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records load outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Comparator) { c.metrics = m }
}

// WithSettings sets the settings used for files that have no configuration
// entry. Settings from a configuration file take precedence.
func WithSettings(s config.Settings) Option {
	return func(c *Comparator) { c.settings = s }
}

// WithParallelism bounds the number of pattern files parsed at once.
func WithParallelism(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// ownedModule is a parsed pattern file kept alive by the registry.
type ownedModule struct {
	path   string
	hash   string
	ctx    *ir.Context
	module *ir.Module
}

// Comparator is the registry of loaded patterns. It owns the module and
// context of every pattern file that contributed at least one pattern.
//
// Loading and Close are serialized; patterns are immutable once registered,
// so any number of sessions may query them concurrently.
type Comparator struct {
	// NewFun and OldFun are the function pair of the current session.
	NewFun *ir.Function
	OldFun *ir.Function

	logger      *zap.Logger
	metrics     *Metrics
	settings    config.Settings
	parallelism int
	config      *config.PatternConfiguration

	mu           sync.RWMutex
	patterns     []*Pattern
	byName       map[string]*Pattern
	owned        []ownedModule
	loadedFiles  map[string]bool
	loadErrors   []error
	session      *Session
	closed       bool
}

// New creates an empty registry.
func New(opts ...Option) *Comparator {
	c := &Comparator{
		logger:       zap.NewNop(),
		parallelism:  runtime.NumCPU(),
		byName:       make(map[string]*Pattern),
		loadedFiles:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig reads the configuration at path and loads every pattern file
// it lists. Only a configuration error is returned; failures of individual
// pattern files are logged and available from LoadErrors.
func NewFromConfig(path string, opts ...Option) (*Comparator, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfiguration(cfg, opts...), nil
}

// NewFromConfiguration loads the pattern files of an already parsed
// configuration.
func NewFromConfiguration(cfg *config.PatternConfiguration, opts ...Option) *Comparator {
	c := New(opts...)
	c.config = cfg
	c.loadConfig(cfg)
	return c
}

// settingsFor returns the effective settings of one pattern file.
func (c *Comparator) settingsFor(path string) config.Settings {
	if c.config == nil {
		return c.settings
	}
	return c.settings.Merge(c.config.SettingsFor(path))
}

// loadConfig parses the listed pattern files concurrently and registers
// their patterns in listed order.
func (c *Comparator) loadConfig(cfg *config.PatternConfiguration) {
	files := make([]*parsedFile, len(cfg.PatternFiles))

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, path := range cfg.PatternFiles {
		i, path := i, path
		g.Go(func() error {
			files[i] = c.parsePatternFile(path)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, pf := range files {
		if err := c.load(pf); err != nil {
			failed++
		}
	}

	c.logger.Info("loaded difference patterns",
		zap.String("config", cfg.Path),
		zap.Int("files", len(files)),
		zap.Int("failed_files", failed),
		zap.Int("patterns", len(c.Patterns())))
}

// AddPattern loads the patterns defined in the file at path. The returned
// error joins every failure found in the file; patterns from the file that
// loaded correctly are registered regardless.
func (c *Comparator) AddPattern(path string) error {
	if c.isClosed() {
		return errors.ErrClosed
	}
	return c.load(c.parsePatternFile(path))
}

func (c *Comparator) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// load registers a parsed file and reports its failures according to the
// file's parse-failure policy.
func (c *Comparator) load(pf *parsedFile) error {
	settings := c.settingsFor(pf.path)
	errs := c.register(pf, settings)
	if len(errs) == 0 {
		return nil
	}

	policy := settings.Policy()
	for _, err := range errs {
		c.metrics.loadFailed(err)
		c.report(policy, err)
	}

	joined := errors.Join(errs...)
	c.mu.Lock()
	c.loadErrors = append(c.loadErrors, errs...)
	c.mu.Unlock()
	return joined
}

func (c *Comparator) report(policy config.ParseFailurePolicy, err error) {
	fields := []zap.Field{
		zap.String("code", string(errors.CodeOf(err))),
		zap.Error(err),
	}
	var loadErr *errors.PatternLoadError
	if errors.As(err, &loadErr) {
		fields = append(fields, zap.String("file", loadErr.Path))
		if loadErr.Pattern != "" {
			fields = append(fields, zap.String("pattern", loadErr.Pattern))
		}
	}

	switch policy {
	case config.PolicyError:
		c.logger.Error("failed to load pattern", fields...)
	case config.PolicyWarn:
		c.logger.Warn("skipping pattern", fields...)
	case config.PolicyIgnore:
	}
}

// register inserts the patterns of a parsed file. The registry takes
// ownership of the file's context if at least one pattern was kept and
// disposes it otherwise.
func (c *Comparator) register(pf *parsedFile, settings config.Settings) []error {
	if pf.err != nil {
		return []error{pf.err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		pf.release()
		return []error{errors.ErrClosed}
	}
	key := loadKey(pf.hash, settings)
	if c.loadedFiles[key] {
		c.logger.Info("pattern file already loaded", zap.String("file", pf.path))
		pf.release()
		return nil
	}

	patterns, errs := c.buildPatterns(pf.module, pf.path, settings)
	kept := 0
	for _, p := range patterns {
		if existing, ok := c.byName[p.name]; ok {
			errs = append(errs, errors.NewPatternLoadError(errors.ErrPatternDuplicate, pf.path, p.name,
				fmt.Sprintf("pattern already loaded from %s", existing.path), nil))
			continue
		}
		c.byName[p.name] = p
		c.patterns = append(c.patterns, p)
		if c.session != nil {
			c.session.add(p)
		}
		c.metrics.patternLoaded()
		kept++
		c.logger.Debug("registered pattern",
			zap.String("pattern", p.name),
			zap.String("file", pf.path),
			zap.Int("annotations", p.NumAnnotated()))
	}

	if kept == 0 {
		pf.release()
		return errs
	}
	c.loadedFiles[key] = true
	c.owned = append(c.owned, ownedModule{path: pf.path, hash: pf.hash, ctx: pf.ctx, module: pf.module})
	return errs
}

// loadKey identifies file content loaded under particular settings. The same
// content loaded with different settings is not skipped, so its patterns
// are reported as duplicates instead of silently keeping the first settings.
func loadKey(hash string, settings config.Settings) string {
	var sb strings.Builder
	sb.WriteString(hash)
	for _, k := range settings.Keys() {
		v, _ := settings.Get(k)
		fmt.Fprintf(&sb, ";%s=%s", k, v)
	}
	return sb.String()
}

// HasPatterns reports whether at least one pattern is registered.
func (c *Comparator) HasPatterns() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns) > 0
}

// Patterns returns the registered patterns in load order.
func (c *Comparator) Patterns() []*Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Pattern, len(c.patterns))
	copy(out, c.patterns)
	return out
}

// Pattern returns the pattern called name, or nil.
func (c *Comparator) Pattern(name string) *Pattern {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[name]
}

// LoadErrors returns every failure recorded while loading pattern files.
func (c *Comparator) LoadErrors() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]error, len(c.loadErrors))
	copy(out, c.loadErrors)
	return out
}

// Files returns the pattern files the registry holds modules for.
func (c *Comparator) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.owned))
	for _, o := range c.owned {
		files = append(files, o.path)
	}
	return files
}

// Initialize starts a new session comparing newFun with oldFun, resetting
// every cursor to its pattern's start positions.
func (c *Comparator) Initialize(newFun, oldFun *ir.Function) *Comparator {
	s := c.NewSession(newFun, oldFun)

	c.mu.Lock()
	c.session = s
	c.NewFun = newFun
	c.OldFun = oldFun
	c.mu.Unlock()
	return c
}

// NewSession creates a session independent of the registry's current one.
func (c *Comparator) NewSession(newFun, oldFun *ir.Function) *Session {
	s := newSession(newFun, oldFun, c.Patterns())
	c.metrics.sessionStarted()
	c.logger.Debug("started comparison session",
		zap.String("session", s.ID.String()),
		zap.String("new", functionName(newFun)),
		zap.String("old", functionName(oldFun)))
	return s
}

// Session returns the current session, or nil before Initialize.
func (c *Comparator) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Cursor returns the cursor of p in the current session.
func (c *Comparator) Cursor(p *Pattern) (*Cursor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.closed:
		return nil, errors.ErrClosed
	case c.session == nil:
		return nil, errors.ErrNotInitialized
	}
	cur := c.session.Cursor(p)
	if cur == nil {
		return nil, fmt.Errorf("pattern is not part of session %s", c.session.ID)
	}
	return cur, nil
}

// GetPatternMetadata copies the annotation of inst into out and reports
// whether one exists. Before Initialize every registered pattern is
// searched. On a miss out is left untouched.
func (c *Comparator) GetPatternMetadata(out *metadata.PatternMetadata, inst *ir.Instruction) bool {
	md, ok := c.Lookup(inst)
	if !ok {
		return false
	}
	if out != nil {
		*out = md
	}
	return true
}

// Lookup returns the annotation of inst.
func (c *Comparator) Lookup(inst *ir.Instruction) (metadata.PatternMetadata, bool) {
	if inst == nil {
		return metadata.PatternMetadata{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil {
		return c.session.Lookup(inst)
	}
	for _, p := range c.patterns {
		if md, ok := p.Metadata(inst); ok {
			return md, true
		}
	}
	return metadata.PatternMetadata{}, false
}

// Close disposes every owned module and context and forgets all patterns.
// Functions and instructions obtained from the registry must not be used
// afterwards. Close is idempotent.
func (c *Comparator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, o := range c.owned {
		o.ctx.Dispose()
	}
	c.logger.Debug("released pattern modules", zap.Int("modules", len(c.owned)))

	c.owned = nil
	c.patterns = nil
	c.byName = make(map[string]*Pattern)
	c.loadedFiles = make(map[string]bool)
	c.session = nil
	c.NewFun = nil
	c.OldFun = nil
	return nil
}

func functionName(fn *ir.Function) string {
	if fn == nil {
		return ""
	}
	return fn.Name
}
