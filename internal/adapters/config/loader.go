// Package config loads CORE A's YAML target descriptor (a stand-in
// declarative surface feeding the toolchain-adapter boundary) and CORE
// B's graph script, both adapted from a YAML DTO-to-domain translation.
package config

import (
	"os"
	"path/filepath"
	"slices"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// TargetFileLoader implements ports.TargetConfigLoader using a YAML
// target descriptor file.
type TargetFileLoader struct {
	Filename string
}

// NewTargetFileLoader creates a TargetFileLoader reading filename (e.g.
// "forge-target.yaml") relative to the working directory passed to Load.
func NewTargetFileLoader(filename string) *TargetFileLoader {
	return &TargetFileLoader{Filename: filename}
}

// targetDescriptor is the on-disk YAML shape of a target descriptor.
type targetDescriptor struct {
	Version           string               `yaml:"version"`
	Project           string               `yaml:"project"`
	Platform          string               `yaml:"platform"`
	Configuration     string               `yaml:"configuration"`
	Modules           map[string]moduleDTO `yaml:"modules"`
	AdaptiveFiles     []string             `yaml:"adaptiveFiles"`
	GeneratedCodeDirs map[string][]string  `yaml:"generatedCodeDirs"`
}

type moduleDTO struct {
	Sources []string `yaml:"sources"`
}

// Load reads the target descriptor at cwd/Filename.
func (l *TargetFileLoader) Load(cwd string) (project, platform, configuration string, ws domain.WorkingSet, err error) {
	path := filepath.Join(cwd, l.Filename)

	data, err := os.ReadFile(path) //nolint:gosec // path is composed from a caller-supplied working directory and a configured filename
	if err != nil {
		return "", "", "", domain.WorkingSet{}, zerr.With(zerr.Wrap(err, "failed to read target descriptor"), "path", path)
	}

	var desc targetDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return "", "", "", domain.WorkingSet{}, zerr.With(zerr.Wrap(err, "failed to parse target descriptor"), "path", path)
	}

	ws = domain.WorkingSet{
		ModuleSourceFiles: make(map[string][]string, len(desc.Modules)),
		AdaptiveFiles:     make(map[string]bool, len(desc.AdaptiveFiles)),
		GeneratedCodeDirs: make(map[string][]string, len(desc.GeneratedCodeDirs)),
	}
	for module, dto := range desc.Modules {
		sources := append([]string{}, dto.Sources...)
		slices.Sort(sources)
		ws.ModuleSourceFiles[module] = sources
	}
	for _, f := range desc.AdaptiveFiles {
		ws.AdaptiveFiles[f] = true
	}
	for module, dirs := range desc.GeneratedCodeDirs {
		sorted := append([]string{}, dirs...)
		slices.Sort(sorted)
		ws.GeneratedCodeDirs[module] = sorted
	}

	return desc.Project, desc.Platform, desc.Configuration, ws, nil
}
