//go:build tools
// +build tools

// Package tools pins the code generators run by go generate (mockgen),
// so they are versioned in go.mod like any other dependency.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
