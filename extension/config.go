package extension

// Config holds the Till extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.till" or "till" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for till routes (default: "/till").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// NotifyBuffer is how many cart events may queue for plugins
	// (default: 1024).
	NotifyBuffer int `json:"notify_buffer" mapstructure:"notify_buffer" yaml:"notify_buffer"`

	// EarnPoints loyalty points are awarded for every EarnPer minor units
	// spent. Either being zero disables earning.
	EarnPoints int64 `json:"earn_points" mapstructure:"earn_points" yaml:"earn_points"`
	EarnPer    int64 `json:"earn_per" mapstructure:"earn_per" yaml:"earn_per"`

	// MembershipRatio is the membership hours charged per hour played by an
	// active member. Zero disables deduction.
	MembershipRatio float64 `json:"membership_ratio" mapstructure:"membership_ratio" yaml:"membership_ratio"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:     "/till",
		NotifyBuffer: 1024,
	}
}
