//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed AR session on the headless device.
func (Run) Testbed() error {
	fmt.Println("Run testbed...")
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "config/renderer.toml", "-assets", "assets/models"), withStream()); err != nil {
		return err
	}
	return nil
}
