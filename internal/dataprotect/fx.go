package dataprotect

import "go.uber.org/fx"

var Module = fx.Module("dataprotect",
	fx.Provide(NewProviderFromConfig),
)
