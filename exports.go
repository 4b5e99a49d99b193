package till

import "github.com/xraph/till/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money helpers
var (
	Sum         = types.Sum
	FromDecimal = types.FromDecimal
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
