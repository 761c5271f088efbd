//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds the testbed, then runs it with anima.toml from the repository root.
func (Run) Engine() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run engine...")
	_, err := executeCmd("bin/anima", withArgs("-config", "anima.toml"), withStream())
	return err
}
