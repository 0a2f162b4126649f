package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.forgebuild.dev/forge/internal/adapters/hasher"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/adapters/telemetry"
	"go.forgebuild.dev/forge/internal/adapters/tempstorage"
	"go.forgebuild.dev/forge/internal/adapters/token"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.forgebuild.dev/forge/internal/engine/pipeline"
)

// fakeBinder drives each node's single task by name: "write" creates a
// file in the node's working directory and reports it as produced,
// "clobber" mutates an already-staged input file in place, and "noop"
// does nothing.
type fakeBinder struct{}

func (fakeBinder) Schema(taskType string) (domain.TaskSchema, bool) {
	return domain.TaskSchema{}, false
}

func (fakeBinder) Bind(task domain.TaskInfo) (domain.TaskInfo, error) { return task, nil }

func (fakeBinder) EvalCondition(ctx context.Context, task domain.TaskInfo, fileSets map[string]domain.FileSet) (bool, error) {
	return true, nil
}

func (fakeBinder) Run(ctx context.Context, task domain.TaskInfo, workDir string, fileSets map[string]domain.FileSet) (domain.FileSet, string, error) {
	switch task.TaskType {
	case "write":
		rel := task.Parameters["path"].AsString()
		if err := os.WriteFile(filepath.Join(workDir, rel), []byte("hello"), 0o644); err != nil {
			return nil, "", err
		}
		return domain.NewFileSet([]string{rel}), "", nil
	case "clobber":
		rel := task.Parameters["path"].AsString()
		f, err := os.OpenFile(filepath.Join(workDir, rel), os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		if _, err := f.WriteString("tampered"); err != nil {
			return nil, "", err
		}
		return nil, "", nil
	case "clobber-same-length":
		rel := task.Parameters["path"].AsString()
		path := filepath.Join(workDir, rel)
		info, err := os.Stat(path)
		if err != nil {
			return nil, "", err
		}
		if err := os.WriteFile(path, []byte(strings.Repeat("x", int(info.Size()))), 0o644); err != nil {
			return nil, "", err
		}
		return nil, "", nil
	default:
		return nil, "", nil
	}
}

type fakeVertexRecorder struct{}

func (fakeVertexRecorder) Record(ctx context.Context, name string) ports.Vertex { return fakeVertex{} }
func (fakeVertexRecorder) Close() error                                         { return nil }

type fakeVertex struct{}

func (fakeVertex) Log(line string) {}
func (fakeVertex) Cached()         {}
func (fakeVertex) Done(err error)  {}

func newTestRuntime(t *testing.T, graph *domain.PipelineGraph) *pipeline.Runtime {
	t.Helper()
	storage := tempstorage.NewStore(filepath.Join(t.TempDir(), "storage"), hasher.New())
	tokens := token.NewStore(filepath.Join(t.TempDir(), "tokens"))
	return &pipeline.Runtime{
		Graph:       graph,
		Binder:      fakeBinder{},
		Storage:     storage,
		Tokens:      tokens,
		Hasher:      hasher.New(),
		Logger:      logger.New(),
		Tracer:      telemetry.NewNoOpTracer(),
		Vertices:    fakeVertexRecorder{},
		WorkRoot:    t.TempDir(),
		HolderID:    "test-run",
		TokenPolicy: domain.TokenPolicyFailFast,
		Parallelism: 2,
	}
}

func writeTask(path string) domain.TaskInfo {
	return domain.TaskInfo{
		TaskType:   "write",
		Parameters: map[string]cty.Value{"path": cty.StringVal(path)},
	}
}

func clobberTask(path string) domain.TaskInfo {
	return domain.TaskInfo{
		TaskType:   "clobber",
		Parameters: map[string]cty.Value{"path": cty.StringVal(path)},
	}
}

func clobberSameLengthTask(path string) domain.TaskInfo {
	return domain.TaskInfo{
		TaskType:   "clobber-same-length",
		Parameters: map[string]cty.Value{"path": cty.StringVal(path)},
	}
}

// TestRun_TagFlow exercises S5: node X produces #artifacts = {foo.bin},
// node Y consumes #artifacts. After the run, the stored manifest for the
// tag lists foo.bin as its only file and names build as its writer.
func TestRun_TagFlow(t *testing.T) {
	nodeX := &domain.Node{Name: "build", Agent: "a1", Outputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{writeTask("foo.bin")}}
	nodeY := &domain.Node{Name: "consume", Agent: "a1", Inputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{{TaskType: "noop"}}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{nodeX, nodeY}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)

	err = rt.Run(context.Background(), []*domain.Node{nodeY})
	require.NoError(t, err)

	manifest, ok, err := rt.Storage.Manifest("#artifacts")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, manifest.Files, 1)
	require.Equal(t, "foo.bin", manifest.Files[0].RelativePath)
	require.Equal(t, "build", manifest.NodeName)
}

// TestRun_ClobberDetected exercises S5's second half: a node that
// modifies one of its staged input files fails loudly.
func TestRun_ClobberDetected(t *testing.T) {
	nodeX := &domain.Node{Name: "build", Agent: "a1", Outputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{writeTask("foo.bin")}}
	nodeY := &domain.Node{Name: "consume", Agent: "a1", Inputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{clobberTask("foo.bin")}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{nodeX, nodeY}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)

	err = rt.Run(context.Background(), []*domain.Node{nodeY})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrClobbered)
}

// TestRun_ClobberDetected_SameLength exercises the content-hash half of
// S5's clobber check: an input file rewritten to different bytes of the
// exact same length is still caught, since checkClobber compares content
// hashes, not sizes.
func TestRun_ClobberDetected_SameLength(t *testing.T) {
	nodeX := &domain.Node{Name: "build", Agent: "a1", Outputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{writeTask("foo.bin")}}
	nodeY := &domain.Node{Name: "consume", Agent: "a1", Inputs: []string{"#artifacts"}, Tasks: []domain.TaskInfo{clobberSameLengthTask("foo.bin")}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{nodeX, nodeY}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)

	err = rt.Run(context.Background(), []*domain.Node{nodeY})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrClobbered)
}

// TestRun_TokenContention exercises S6 through the runtime: a node
// requiring a token already held by another signature fails under
// fail-fast policy.
func TestRun_TokenContention(t *testing.T) {
	node := &domain.Node{Name: "deploy", Agent: "a1", RequiredTokens: []string{"deploy-slot"}, Tasks: []domain.TaskInfo{{TaskType: "noop"}}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{node}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)
	ok, err := rt.Tokens.Acquire(domain.Token{Name: "deploy-slot", HolderID: "other-owner"})
	require.NoError(t, err)
	require.True(t, ok)

	err = rt.Run(context.Background(), []*domain.Node{node})
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrTokenHeld)
}

// TestRun_TokenContention_SkipMissing exercises the skip-missing policy:
// the blocked node is dropped rather than failing the whole run.
func TestRun_TokenContention_SkipMissing(t *testing.T) {
	node := &domain.Node{Name: "deploy", Agent: "a1", RequiredTokens: []string{"deploy-slot"}, Tasks: []domain.TaskInfo{{TaskType: "noop"}}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{node}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)
	rt.TokenPolicy = domain.TokenPolicySkipMissing
	ok, err := rt.Tokens.Acquire(domain.Token{Name: "deploy-slot", HolderID: "other-owner"})
	require.NoError(t, err)
	require.True(t, ok)

	err = rt.Run(context.Background(), []*domain.Node{node})
	require.NoError(t, err)
}

// TestRun_TokenHeldAfterNormalCompletion exercises §4.7's token lifetime
// rule directly: a token a node required is still held by this run's
// HolderID once the run finishes successfully. Only an explicit Release
// call frees it, never a node or run finishing normally.
func TestRun_TokenHeldAfterNormalCompletion(t *testing.T) {
	node := &domain.Node{Name: "deploy", Agent: "a1", RequiredTokens: []string{"deploy-slot"}, Tasks: []domain.TaskInfo{{TaskType: "noop"}}}

	graph, err := domain.NewPipelineGraph([]*domain.Agent{{Name: "a1", Nodes: []*domain.Node{node}}}, nil, nil)
	require.NoError(t, err)

	rt := newTestRuntime(t, graph)
	err = rt.Run(context.Background(), []*domain.Node{node})
	require.NoError(t, err)

	holder, ok, err := rt.Tokens.Holder("deploy-slot")
	require.NoError(t, err)
	require.True(t, ok, "token must remain held after the node that required it finishes")
	require.Equal(t, "test-run", holder)
}
