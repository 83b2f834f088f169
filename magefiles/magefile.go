// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

// Package main contains Mage build targets for rotor-bridge developer tooling.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

const (
	binDir     = "bin"
	binName    = "rotor-bridge"
	cmdPkg     = "./cmd/rotor-bridge"
	configFile = "rotor-bridge.yaml"
	designFile = "design.example.yaml"
)

// Default is the target run by a bare `mage`.
var Default = Build

// Build compiles the CLI binary into bin/. The SQLite archive needs cgo.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	env := map[string]string{"CGO_ENABLED": "1"}
	if err := sh.RunWithV(env, "go", "build", "-ldflags", "-X main.version="+version, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", out, version)
	return nil
}

// Test runs vet and the unit tests.
func Test() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "test", "-race", "./...")
}

// Check builds and tests.
func Check() {
	mg.SerialDeps(Test, Build)
}

// Init writes a starter configuration and an example design vector into the
// current directory. Existing files are left alone.
func Init() error {
	cfg := types.DefaultBridgeConfig()
	if err := writeYAML(configFile, cfg); err != nil {
		return err
	}

	dv := types.DesignVector{
		types.VarTwist:     10,
		types.VarAnhedral:  0,
		types.VarZDistance: 0,
	}
	for i := 1; i <= types.SegmentCount; i++ {
		dv[types.SegmentTwist(i)] = 0
	}
	if err := writeYAML(designFile, dv); err != nil {
		return err
	}
	fmt.Println("Project initialized. Edit", configFile, "to point at the solver.")
	return nil
}

func writeYAML(path string, v any) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Println("   kept", path)
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Println("  wrote", path)
	return nil
}

// Clean removes build output and the solver input files of the last run.
func Clean() error {
	if err := sh.Rm(binDir); err != nil {
		return err
	}
	base := types.DefaultBasename
	for _, suffix := range []string{"bg.inp", "rw.inp", "name.inp"} {
		if err := os.Remove(base + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Stats prints project metrics: Go production and test lines.
func Stats() error {
	prod, test := 0, 0
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, "_") || (strings.HasPrefix(name, ".") && name != ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", test)
	return nil
}
