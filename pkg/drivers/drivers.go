// Package drivers assembles the built-in driver registry.
package drivers

import (
	"sort"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/generic"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/keysight"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers/rigol"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/scpi"
)

// Options tunes the built-in drivers.
type Options struct {
	// ChunkSize is the waveform read size in points; zero uses each
	// instrument's maximum.
	ChunkSize int

	// Generic registers the raw SCPI fallback, so any well-formed identity
	// resolves to a driver.
	Generic bool
}

// Descriptors lists the built-in drivers in registration order.
func Descriptors(opts Options) []driver.Descriptor {
	var out []driver.Descriptor
	out = append(out, rigol.Descriptors(opts.ChunkSize)...)
	out = append(out, keysight.Descriptors()...)
	if opts.Generic {
		out = append(out, generic.Descriptor())
	}
	return out
}

// Register adds the built-in drivers to reg.
func Register(reg *driver.Registry, opts Options) error {
	for _, d := range Descriptors(opts) {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in drivers.
func NewRegistry(opts Options) *driver.Registry {
	reg := driver.NewRegistry()
	if err := Register(reg, opts); err != nil {
		panic(err)
	}
	return reg
}

// CommandTrees returns the command table of every built-in family.
func CommandTrees() map[string]*scpi.Tree {
	return map[string]*scpi.Tree{
		"ds1000z":       rigol.DS1000ZCommands(4),
		"dp800":         rigol.DP800Commands(),
		"infiniivision": keysight.InfiniiVisionCommands(4),
		"truevolt":      keysight.TruevoltCommands(),
	}
}

// Families lists the CommandTrees keys in sorted order.
func Families() []string {
	trees := CommandTrees()
	out := make([]string, 0, len(trees))
	for name := range trees {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
