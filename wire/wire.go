//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/blackscorpionster/rubits/config"
	"github.com/google/wire"
)

// InitializeRuntime builds the serve runtime from config
func InitializeRuntime(cfg *config.Config) (*Runtime, func(), error) {
	wire.Build(FullSet)
	return nil, nil, nil
}
