//go:build tools

// Package callrelay tracks tool dependencies used by go generate (mockgen).
package callrelay

import (
	_ "go.uber.org/mock/mockgen"
)
