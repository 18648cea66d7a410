package closurekit

import "go.uber.org/zap"

// NewLogger builds the zap.Logger a Serializer logs through. development
// selects zap's human-readable console encoder and debug level, matching
// the same encoder/level split the CLI's -dev flag toggles; the default
// (development=false) is zap's JSON production config.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
