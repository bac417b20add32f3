package engine

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/rules"
)

// importScan lists the file named by the first static dependency plus every
// "import X" line inside it, the shape of a jsonnet dependency scanner.
func (f *fixture) importScan(_ context.Context, job rules.Job) ([]string, error) {
	f.count("scan")
	src := job.Deps()[0]
	data, err := job.Workspace().ReadFile(src)
	if err != nil {
		return nil, err
	}
	deps := []string{src}
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if name, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "import "); ok {
			deps = append(deps, name)
		}
	}
	return deps, nil
}

func dynamicBuilder(t *testing.T, f *fixture, opts ...rules.Option) *rules.Builder {
	b := rules.NewBuilder()
	require.NoError(t, b.AddPattern(`(.*)\.yaml`,
		[]rules.Template{rules.Concat(rules.Capture(1), rules.Literal(".jsonnet"))},
		f.concat,
		append([]rules.Option{rules.WithScan(f.importScan)}, opts...)...))
	return b
}

func TestBuild_DynamicDependenciesConverge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write("m.jsonnet", "import a.lib\n")
	f.write("a.lib", "A1;")
	e := f.engine(dynamicBuilder(t, f), Options{})

	build := func() map[string]int {
		t.Helper()
		_, err := e.Build(ctx, "m.yaml")
		require.NoError(t, err)
		return f.takeRuns()
	}

	assert.Equal(t, map[string]int{"scan": 1, "m.yaml": 1}, build(), "first build scans and builds")
	disc, ok, err := f.store.Get(ctx, "deps_of:m.yaml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a.lib", "m.jsonnet"}, disc.Discovered)

	assert.Empty(t, build(), "nothing changed")

	f.write("a.lib", "A2;")
	assert.Equal(t, map[string]int{"scan": 1, "m.yaml": 1}, build(), "a discovered input changed")
	assert.Contains(t, f.read("m.yaml"), "A2;")

	f.write("m.jsonnet", "import a.lib\nimport b.lib\n")
	f.write("b.lib", "B1;")
	assert.Equal(t, map[string]int{"scan": 1, "m.yaml": 1}, build(), "a new import is discovered")
	assert.Contains(t, f.read("m.yaml"), "B1;")

	f.write("b.lib", "B2;")
	assert.Equal(t, map[string]int{"scan": 1, "m.yaml": 1}, build(), "the new import is tracked")
	assert.Contains(t, f.read("m.yaml"), "B2;")

	assert.Empty(t, build())

	f.write("m.jsonnet", "import a.lib\n")
	require.NoError(t, f.ws.Remove("b.lib"))
	assert.Equal(t, map[string]int{"scan": 1, "m.yaml": 1}, build(), "a removed import is forgotten")
	disc, _, err = f.store.Get(ctx, "deps_of:m.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.lib", "m.jsonnet"}, disc.Discovered)
}

func TestBuild_DynamicRefreshRunsBeforeScan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write("m.jsonnet", "import gen.lib\n")
	b := dynamicBuilder(t, f, rules.WithScan(func(ctx context.Context, job rules.Job) ([]string, error) {
		if !job.Workspace().Exists("gen.lib") {
			return nil, fmt.Errorf("gen.lib was not refreshed before the scan")
		}
		return f.importScan(ctx, job)
	}, "gen.lib"))
	require.NoError(t, b.AddTarget("gen.lib", nil, func(_ context.Context, job rules.Job) error {
		f.count(job.Target())
		return job.WriteFile(job.Target(), []byte("G;"))
	}))
	e := f.engine(b, Options{})

	_, err := e.Build(ctx, "m.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"gen.lib": 1, "scan": 1, "m.yaml": 1}, f.takeRuns())
	assert.Equal(t, "G;import gen.lib\n", f.read("m.yaml"))

	_, err = e.Build(ctx, "m.yaml")
	require.NoError(t, err)
	assert.Empty(t, f.takeRuns())
}

func TestBuild_DynamicScanFailure(t *testing.T) {
	f := newFixture(t)
	// m.jsonnet is missing, so the scan cannot read it.
	f.write("placeholder", "")
	report, err := f.engine(dynamicBuilder(t, f), Options{}).Build(context.Background(), "m.yaml")
	require.Error(t, err)
	assert.ErrorContains(t, err, `discovering dependencies of "m.yaml"`)
	assert.Zero(t, f.takeRuns()["m.yaml"])
	require.NotNil(t, report)
	assert.Equal(t, []string{"m.yaml"}, report.Failed())
}

func TestBuild_ScanFailureLeavesIndependentRootsBuilding(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.write("in.txt", "independent")
	b := dynamicBuilder(t, f)
	require.NoError(t, b.AddTarget("out.txt", rules.Literals("in.txt"), f.concat))
	require.NoError(t, b.AddVirtual("publish", rules.Literals("bad.yaml"), f.touch))
	e := f.engine(b, Options{})

	// Act: bad.jsonnet does not exist, so scanning bad.yaml fails.
	report, err := e.Build(context.Background(), "publish", "out.txt")

	// Assert
	require.Error(t, err)
	require.NotNil(t, report, "a failed scan is a build outcome, not a resolution error")
	assert.Equal(t, []string{"bad.yaml"}, report.Failed())
	assert.Equal(t, []string{"publish"}, report.Skipped())
	assert.Equal(t, []string{"out.txt"}, report.Rebuilt())
	assert.Equal(t, "independent", f.read("out.txt"))
	assert.ErrorContains(t, report.Outcomes["bad.yaml"].Err, `discovering dependencies of "bad.yaml"`)
}

func TestBuild_IndependentScansRunConcurrently(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.write("a.jsonnet", "")
	f.write("b.jsonnet", "")
	var running, peak atomic.Int32
	b := dynamicBuilder(t, f, rules.WithScan(func(ctx context.Context, job rules.Job) ([]string, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		return f.importScan(ctx, job)
	}))
	e := f.engine(b, Options{Workers: 4})

	// Act
	_, err := e.Build(context.Background(), "a.yaml", "b.yaml")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int32(2), peak.Load(), "both scans should overlap")
	assert.Equal(t, map[string]int{"scan": 2, "a.yaml": 1, "b.yaml": 1}, f.takeRuns())
}

func TestPlan_UsesRecordedDiscovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.write("m.jsonnet", "import a.lib\n")
	f.write("a.lib", "A;")
	e := f.engine(dynamicBuilder(t, f), Options{})
	_, err := e.Build(ctx, "m.yaml")
	require.NoError(t, err)
	f.takeRuns()

	g, err := e.Plan(ctx, "m.yaml")
	require.NoError(t, err)
	n, ok := g.Node("m.yaml")
	require.True(t, ok)
	assert.Equal(t, []string{"a.lib", "m.jsonnet"}, n.Deps)
	assert.Empty(t, f.takeRuns(), "planning never builds")
}
