package server

import "github.com/google/wire"

// ProviderSet is the Wire provider set for the HTTP serving layer. The
// concrete API server is built in the application Start path, where the
// fully-routed handler exists, so only the manager is wired here.
var ProviderSet = wire.NewSet(
	NewServerManager,
)
