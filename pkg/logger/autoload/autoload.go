// Package autoload configures the global zerolog logger from the LOG_*
// environment on import.
package autoload

import (
	configx "github.com/arvidstrom/storeagent/pkg/config"
	logx "github.com/arvidstrom/storeagent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
