//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the tests of one package directory, e.g. mage test:package engine/renderer.
func (Test) Package(dir string) error {
	_, err := executeCmd("go", withArgs("test", "-race", "."), withDir(dir), withStream())
	return err
}
