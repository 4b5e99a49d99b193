// Package extension provides the Forge extension adapter for Till.
//
// It implements the forge.Extension interface to integrate Till
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.till" or "till" keys.
package extension

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/till"
	"github.com/xraph/till/api"
	"github.com/xraph/till/loyalty"
	"github.com/xraph/till/store"
	"github.com/xraph/till/store/memory"
	"github.com/xraph/till/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "till"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Point-of-sale billing for snooker and pool clubs"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Till as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config   Config
	engine   *till.Till
	store    store.Store
	tillOpts []till.Option
}

// New creates a new Till Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Till instance.
// This is nil until Register is called.
func (e *Extension) Engine() *till.Till { return e.engine }

// ResolvedConfig returns the configuration after file and defaults merging.
func (e *Extension) ResolvedConfig() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the till engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		mem := memory.New()
		e.store = mem
		e.tillOpts = append([]till.Option{till.WithSnapshotStore(mem)}, e.tillOpts...)
	}

	e.engine = till.New(e.store, e.buildTillOpts()...)

	return vessel.Provide(fapp.Container(), func() (*till.Till, error) {
		return e.engine, nil
	})
}

// Handler returns the till HTTP API mounted under the configured base
// path, or nil when routes are disabled.
func (e *Extension) Handler() http.Handler {
	if e.engine == nil || e.config.DisableRoutes {
		return nil
	}
	routes := api.NewHandler(e.engine, nil).Routes()
	prefix := strings.TrimRight(e.config.BasePath, "/")
	if prefix == "" {
		return routes
	}
	return http.StripPrefix(prefix, routes)
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("till: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("till: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildTillOpts constructs till.Option values from the resolved config.
func (e *Extension) buildTillOpts() []till.Option {
	opts := make([]till.Option, 0, len(e.tillOpts)+4)

	opts = append(opts,
		till.WithAutoMigrate(!e.config.DisableMigrate),
		till.WithNotifyBuffer(e.config.NotifyBuffer),
	)

	if e.config.EarnPoints > 0 && e.config.EarnPer > 0 {
		opts = append(opts, till.WithEarnPolicy(loyalty.Rate{
			Points: e.config.EarnPoints,
			Per:    types.Money(e.config.EarnPer),
		}))
	}

	if e.config.MembershipRatio > 0 {
		opts = append(opts, till.WithMembershipPolicy(loyalty.Proportional{
			Ratio: decimal.NewFromFloat(e.config.MembershipRatio),
		}))
	}

	// Append any pass-through till options.
	opts = append(opts, e.tillOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("till: configuration is required but not found in config files; " +
				"ensure 'extensions.till' or 'till' key exists in your config")
		}
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("till: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("notify_buffer", e.config.NotifyBuffer),
		forge.F("earn_points", e.config.EarnPoints),
		forge.F("earn_per", e.config.EarnPer),
		forge.F("membership_ratio", e.config.MembershipRatio),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.till", "till"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("till: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("till: failed to bind config", forge.F("key", key))
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.NotifyBuffer == 0 {
		cfg.NotifyBuffer = defaults.NotifyBuffer
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and true
// bool flags always win.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.NotifyBuffer == 0 {
		yamlConfig.NotifyBuffer = programmaticConfig.NotifyBuffer
	}
	if yamlConfig.EarnPoints == 0 && yamlConfig.EarnPer == 0 {
		yamlConfig.EarnPoints = programmaticConfig.EarnPoints
		yamlConfig.EarnPer = programmaticConfig.EarnPer
	}
	if yamlConfig.MembershipRatio == 0 {
		yamlConfig.MembershipRatio = programmaticConfig.MembershipRatio
	}

	return e.mergeWithDefaults(yamlConfig)
}
