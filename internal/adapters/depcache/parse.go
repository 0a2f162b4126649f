// Package depcache implements ports.DependencyCache: partitioned,
// base-directory-routed parsing and caching of compiler-emitted
// dependency documents (.d, .txt, .json/.md.json).
package depcache

import (
	"encoding/json"
	"os"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// ParseFile dispatches to the parser keyed by path's extension and
// returns the resulting DependencyInfo, stamped with path's current
// mtime.
func ParseFile(path string) (domain.DependencyInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyListMissing, "path", path)
	}

	var info domain.DependencyInfo
	switch {
	case strings.HasSuffix(path, ".md.json"), strings.HasSuffix(path, ".json"):
		info, err = parseJSON(path)
	case strings.HasSuffix(path, ".d"):
		info, err = parseMakeRule(path)
	case strings.HasSuffix(path, ".txt"):
		info, err = parseLineList(path)
	default:
		return domain.DependencyInfo{}, zerr.With(domain.ErrUnsupportedDependencyVersion, "path", path)
	}
	if err != nil {
		return domain.DependencyInfo{}, err
	}

	info.ParsedAt = fi.ModTime()
	return info, nil
}

// --- .d Make-style rule parser ---

type dTokenKind int

const (
	dTokenFilename dTokenKind = iota
	dTokenColon
	dTokenNewline
)

type dToken struct {
	kind dTokenKind
	text string
}

func tokenizeMakeRule(data []byte) ([]dToken, error) {
	var tokens []dToken
	i := 0
	n := len(data)

	for i < n {
		c := data[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '\\' && i+1 < n && data[i+1] == '\n':
			i += 2
		case c == '\n':
			tokens = append(tokens, dToken{kind: dTokenNewline})
			i++
		case c == ':':
			tokens = append(tokens, dToken{kind: dTokenColon})
			i++
		default:
			start := i
			var b strings.Builder
			for i < n && data[i] != ' ' && data[i] != '\t' && data[i] != '\n' && data[i] != ':' {
				if data[i] == '\\' && i+1 < n && data[i+1] == ' ' {
					b.WriteByte(' ')
					i += 2
					continue
				}
				b.WriteByte(data[i])
				i++
			}
			if i == start {
				return nil, zerr.New("failed to advance while tokenizing dependency file")
			}
			tokens = append(tokens, dToken{kind: dTokenFilename, text: b.String()})
		}
	}
	return tokens, nil
}

// parseMakeRule parses a .d Make-style rule: optional leading
// newline(s), one target token (discarded), a colon, zero or more
// filename tokens, trailing newline(s). Any deviation is a hard error.
func parseMakeRule(path string) (domain.DependencyInfo, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a compiler-emitted dependency file resolved by the build
	if err != nil {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyListMissing, "path", path)
	}

	tokens, err := tokenizeMakeRule(data)
	if err != nil {
		return domain.DependencyInfo{}, zerr.With(zerr.Wrap(err, "failed to parse .d dependency file"), "path", path)
	}

	pos := 0
	for pos < len(tokens) && tokens[pos].kind == dTokenNewline {
		pos++
	}
	if pos >= len(tokens) || tokens[pos].kind != dTokenFilename {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
	}
	pos++ // discard target

	if pos >= len(tokens) || tokens[pos].kind != dTokenColon {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
	}
	pos++

	var includes []*domain.FileItem
	for pos < len(tokens) {
		switch tokens[pos].kind {
		case dTokenFilename:
			includes = append(includes, &domain.FileItem{AbsPath: tokens[pos].text})
			pos++
		case dTokenNewline:
			pos++
		default:
			return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
		}
	}

	return domain.DependencyInfo{Includes: includes}, nil
}

// parseLineList parses a .txt dependency list: one path per line,
// ignoring empty lines, dropping trailing .tlh/.tli COM-artifact lines,
// and collapsing doubled backslashes (the compiler's JSON-escaping
// leftover in this plain-text sibling format) into single ones.
func parseLineList(path string) (domain.DependencyInfo, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a compiler-emitted dependency file resolved by the build
	if err != nil {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyListMissing, "path", path)
	}

	var includes []*domain.FileItem
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ".tlh") || strings.HasSuffix(line, ".tli") {
			continue
		}
		includes = append(includes, &domain.FileItem{AbsPath: strings.ReplaceAll(line, `\\`, `\`)})
	}

	return domain.DependencyInfo{Includes: includes}, nil
}

// --- .json / .md.json source-dependencies document parser ---

type jsonDocument struct {
	Version string `json:"Version"`
	Data    *struct {
		ProvidedModule  string      `json:"ProvidedModule"`
		ImportedModules interface{} `json:"ImportedModules"`
		Includes        []string    `json:"Includes"`
	} `json:"Data"`
}

func parseJSON(path string) (domain.DependencyInfo, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a compiler-emitted dependency file resolved by the build
	if err != nil {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyListMissing, "path", path)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.DependencyInfo{}, zerr.With(zerr.Wrap(err, "failed to parse dependency document"), "path", path)
	}

	if doc.Version != "1.0" && doc.Version != "1.1" {
		return domain.DependencyInfo{}, zerr.With(domain.ErrUnsupportedDependencyVersion, "version", doc.Version)
	}
	if doc.Data == nil {
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
	}

	isMetadataOnly := strings.HasSuffix(path, ".md.json")

	info := domain.DependencyInfo{}
	if doc.Data.ProvidedModule != "" {
		info.ProducedModule = domain.NewInternedString(doc.Data.ProvidedModule)
		info.HasProducedModule = true
	}

	switch v := doc.Data.ImportedModules.(type) {
	case nil:
	case []interface{}:
		for _, raw := range v {
			switch entry := raw.(type) {
			case string:
				info.ImportedModules = append(info.ImportedModules, domain.ImportedModule{
					Name: domain.NewInternedString(entry),
				})
			case map[string]interface{}:
				if doc.Version != "1.1" || isMetadataOnly {
					return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
				}
				name, _ := entry["Name"].(string)
				bmi, _ := entry["BMI"].(string)
				info.ImportedModules = append(info.ImportedModules, domain.ImportedModule{
					Name:    domain.NewInternedString(name),
					BMIPath: domain.NewInternedString(bmi),
				})
			default:
				return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
			}
		}
	default:
		return domain.DependencyInfo{}, zerr.With(domain.ErrDependencyParse, "path", path)
	}

	for _, inc := range doc.Data.Includes {
		info.Includes = append(info.Includes, &domain.FileItem{AbsPath: inc})
	}

	return info, nil
}
