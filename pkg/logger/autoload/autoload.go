// Package autoload initializes the global logger from LOG_* environment
// variables when imported.
package autoload

import (
	configx "github.com/tanpawarit/claims-responder-agent/pkg/config"
	logx "github.com/tanpawarit/claims-responder-agent/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
