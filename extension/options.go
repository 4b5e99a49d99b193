package extension

import (
	"github.com/xraph/till"
	"github.com/xraph/till/plugin"
	"github.com/xraph/till/store"
)

// Option configures the Till Forge extension.
type Option func(*Extension)

// WithStore sets the store for the till engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTillOption passes a till.Option through to the underlying engine.
func WithTillOption(opt till.Option) Option {
	return func(e *Extension) {
		e.tillOpts = append(e.tillOpts, opt)
	}
}

// WithPlugin registers a till plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.tillOpts = append(e.tillOpts, till.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for till routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithEarnRate awards points for every per minor units spent.
func WithEarnRate(points, per int64) Option {
	return func(e *Extension) {
		e.config.EarnPoints = points
		e.config.EarnPer = per
	}
}

// WithMembershipRatio sets the membership hours charged per hour played.
func WithMembershipRatio(ratio float64) Option {
	return func(e *Extension) { e.config.MembershipRatio = ratio }
}
