//go:build tools

package tools

// Tool dependencies pinned in go.mod. Run: mockery (from the repo root)
// to regenerate the mocks configured in .mockery.yaml.
import (
	_ "github.com/vektra/mockery/v2"
)
