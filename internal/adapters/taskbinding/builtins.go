package taskbinding

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// registerBuiltins wires the small set of task types a graph script can
// invoke out of the box: copying tag-routed files into a node's local
// working directory, and running an external command against them.
func registerBuiltins(b *Binder) {
	b.Register(domain.TaskSchema{
		TaskType: "copy",
		Parameters: []domain.TaskParameterSpec{
			{Name: "from", Type: cty.String, Required: true},
			{Name: "to", Type: cty.String, Required: false, Default: cty.StringVal(".")},
		},
	}, runCopy)

	b.Register(domain.TaskSchema{
		TaskType: "command",
		Parameters: []domain.TaskParameterSpec{
			{Name: "path", Type: cty.String, Required: true},
			{Name: "arguments", Type: cty.String, Required: false, Default: cty.StringVal("")},
			{Name: "output_tag", Type: cty.String, Required: false, Default: cty.StringVal("")},
		},
	}, runCommand)
}

func runCopy(workDir string, params map[string]cty.Value, fileSets map[string]domain.FileSet) (domain.FileSet, string, error) {
	fromTag := params["from"].AsString()
	toDir := params["to"].AsString()

	fs, ok := fileSets[fromTag]
	if !ok {
		return nil, "", zerr.With(domain.ErrTagNotFound, "tag", fromTag)
	}

	destRoot := filepath.Join(workDir, toDir)
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, "", zerr.Wrap(err, "failed to create copy destination")
	}

	written := make([]string, 0, len(fs))
	for _, rel := range fs.Slice() {
		src := filepath.Join(workDir, rel)
		dst := filepath.Join(destRoot, filepath.Base(rel))
		if err := copyFile(src, dst); err != nil {
			return nil, "", zerr.With(zerr.Wrap(err, "failed to copy file"), "path", rel)
		}
		relToWorkDir, err := filepath.Rel(workDir, dst)
		if err != nil {
			relToWorkDir = dst
		}
		written = append(written, relToWorkDir)
	}
	return domain.NewFileSet(written), "", nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // src is composed from a node's local working directory and a routed tag member path
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // dst is composed from a node's local working directory and a declared destination
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func runCommand(workDir string, params map[string]cty.Value, fileSets map[string]domain.FileSet) (domain.FileSet, string, error) {
	path := params["path"].AsString()
	args := params["arguments"].AsString()
	outputTag := params["output_tag"].AsString()

	cmd := exec.Command(path, splitArguments(args)...) //nolint:gosec // path/arguments are sourced from a bound task parameter, not untrusted input
	cmd.Dir = workDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, "", zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "path", path), "output", string(output))
	}

	if outputTag == "" {
		return nil, "", nil
	}
	return fileSets[outputTag], outputTag, nil
}

func splitArguments(args string) []string {
	if args == "" {
		return nil
	}
	var out []string
	var cur []rune
	inQuotes := false
	for _, r := range args {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
