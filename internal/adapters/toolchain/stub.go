// Package toolchain provides a deterministic stand-in for the real,
// out-of-scope toolchain collaborator: something that knows a specific
// compiler's module graph and produces real Action command lines. This
// stub instead plans one synthetic Compile action per source file and
// one Link action per module, so cmd/ignite has a working default path
// and tests have a ports.ToolchainAdapter that behaves predictably.
package toolchain

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
)

// Stub implements ports.ToolchainAdapter deterministically: given a
// working set, it plans a Compile action per source file feeding a
// single Link action per module, with no external process dependency.
type Stub struct {
	OutputRoot string
}

// NewStub creates a Stub that writes planned outputs under outputRoot.
func NewStub(outputRoot string) *Stub {
	return &Stub{OutputRoot: outputRoot}
}

// PlanActions returns a deterministic Makefile for the given target
// descriptor and working set.
func (s *Stub) PlanActions(project, platform, configuration string, ws domain.WorkingSet) (*domain.Makefile, error) {
	mf := &domain.Makefile{
		Version:             domain.MakefileVersion,
		Project:             project,
		Platform:            platform,
		Configuration:       configuration,
		ModuleOutputs:       make(map[string]string),
		ModuleSourceFiles:   make(map[string][]string),
		AdaptiveFiles:       make(map[string]bool),
		Environment:         make(map[string]string),
		GeneratedCodeDirs:   ws.GeneratedCodeDirs,
		AdditionalArguments: ws.AdditionalArguments,
	}

	modules := make([]string, 0, len(ws.ModuleSourceFiles))
	for module := range ws.ModuleSourceFiles {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	for _, module := range modules {
		sources := append([]string{}, ws.ModuleSourceFiles[module]...)
		sort.Strings(sources)
		mf.ModuleSourceFiles[module] = sources

		var objects []*domain.FileItem
		for _, src := range sources {
			obj := s.objectPath(project, platform, configuration, module, src)
			mf.Actions = append(mf.Actions, &domain.Action{
				Type:              domain.ActionCompile,
				WorkingDirectory:  filepath.Dir(src),
				CommandPath:       "cc",
				CommandArguments:  fmt.Sprintf("-c %s -o %s", src, obj),
				CommandVersion:    "stub-1",
				PrerequisiteItems: []*domain.FileItem{{AbsPath: src}},
				ProducedItems:     []*domain.FileItem{{AbsPath: obj}},
				UseActionHistory:  true,
				StatusDescription: fmt.Sprintf("Compile %s", filepath.Base(src)),
			})
			objects = append(objects, &domain.FileItem{AbsPath: obj})
		}

		libPath := s.modulePath(project, platform, configuration, module)
		mf.ModuleOutputs[module] = libPath
		mf.Actions = append(mf.Actions, &domain.Action{
			Type:                  domain.ActionLink,
			WorkingDirectory:      s.OutputRoot,
			CommandPath:           "cc",
			CommandArguments:      fmt.Sprintf("-o %s %s", libPath, strings.Join(sources, " ")),
			CommandVersion:        "stub-1",
			PrerequisiteItems:     objects,
			ProducedItems:         []*domain.FileItem{{AbsPath: libPath}},
			ProducesImportLibrary: false,
			UseActionHistory:      true,
			StatusDescription:     fmt.Sprintf("Link %s", module),
		})
	}

	for file := range ws.AdaptiveFiles {
		mf.AdaptiveFiles[file] = true
	}

	return mf, nil
}

func (s *Stub) objectPath(project, platform, configuration, module, src string) string {
	return filepath.Join(s.OutputRoot, project, platform, configuration, module, filepath.Base(src)+".o")
}

func (s *Stub) modulePath(project, platform, configuration, module string) string {
	return filepath.Join(s.OutputRoot, project, platform, configuration, module+".a")
}
