package requirement

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))
}

func requirementStrings(reqs []*entity.FileRequirement) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.String())
	}

	return out
}

func TestSetRequirementsPerConsumer(t *testing.T) {
	r1 := []*entity.FileRequirement{
		entity.NewFileRequirement(entity.FileGRIQuery("X"), "name", "size"),
	}
	r2 := []*entity.FileRequirement{
		entity.NewFileRequirement(entity.ParentIDQuery("Y"), "mtime"),
		entity.NewFileRequirement(entity.FileGRIQuery("Z"), "ctime"),
	}

	for _, reversed := range []bool{false, true} {
		reg := newTestRegistry()
		if reversed {
			reg.SetRequirements("c2", r2...)
			reg.SetRequirements("c1", r1...)
		} else {
			reg.SetRequirements("c1", r1...)
			reg.SetRequirements("c2", r2...)
		}

		got := reg.GetRequirements()
		require.Len(t, got, 2)
		require.Equal(t, requirementStrings(r1), requirementStrings(got["c1"]))
		require.Equal(t, requirementStrings(r2), requirementStrings(got["c2"]))
	}
}

func TestSetRequirementsReplaces(t *testing.T) {
	reg := newTestRegistry()

	reg.SetRequirements("c", entity.NewFileRequirement(entity.FileGRIQuery("A"), "atime"))
	reg.SetRequirements("c", entity.NewFileRequirement(entity.FileGRIQuery("B"), "mtime"))

	got := reg.GetRequirements()
	require.Equal(t, []string{"<FileRequirement:<FileQuery:fileGri-B>|properties:mtime>"}, requirementStrings(got["c"]))
	require.Empty(t, reg.FindAttrsRequirement(entity.FileGRIQuery("A")))
}

func TestSetEmptyRequirementsDeregisters(t *testing.T) {
	reg := newTestRegistry()

	reg.SetRequirements("c", entity.NewFileRequirement(entity.FileGRIQuery("A"), "atime"))
	reg.SetRequirements("c")
	require.Empty(t, reg.GetRequirements())

	reg.SetRequirements("c", entity.NewFileRequirement(entity.FileGRIQuery("A"), "atime"))
	reg.SetRequirements("c", nil)
	require.Empty(t, reg.GetRequirements())
}

func TestDeregisterIdempotent(t *testing.T) {
	reg := newTestRegistry()
	reg.SetRequirements("c1", entity.NewFileRequirement(entity.FileGRIQuery("A"), "atime"))
	reg.SetRequirements("c2", entity.NewFileRequirement(entity.FileGRIQuery("B"), "ctime"))

	reg.DeregisterRequirements("c1")
	once := reg.GetRequirements()
	reg.DeregisterRequirements("c1")
	twice := reg.GetRequirements()

	require.Equal(t, once, twice)
	require.Len(t, twice, 1)
	require.Contains(t, twice, entity.ConsumerID("c2"))

	reg.DeregisterRequirements("unknown")
}

func TestFindAttrsRequirementUnion(t *testing.T) {
	reg := newTestRegistry()
	reg.SetRequirements("c1", entity.NewFileRequirement(entity.FileGRIQuery("X"), "p1", "p2"))
	reg.SetRequirements("c2", entity.NewFileRequirement(entity.ParentIDQuery("Y"), "p2", "p3"))

	testCases := []struct {
		name    string
		queries []*entity.FileQuery
		want    []string
	}{
		{name: "fileGri", queries: []*entity.FileQuery{entity.FileGRIQuery("X")}, want: []string{"p1", "p2"}},
		{name: "parentId", queries: []*entity.FileQuery{entity.ParentIDQuery("Y")}, want: []string{"p2", "p3"}},
		{name: "both", queries: []*entity.FileQuery{entity.FileGRIQuery("X"), entity.ParentIDQuery("Y")}, want: []string{"p1", "p2", "p3"}},
		{name: "no match", queries: []*entity.FileQuery{entity.FileGRIQuery("Y")}, want: []string{}},
		{name: "none query matches all", queries: []*entity.FileQuery{entity.MustFileQuery("", "")}, want: []string{"p1", "p2", "p3"}},
		{name: "no queries", want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, reg.FindAttrsRequirement(tc.queries...))
		})
	}
}

func TestFindAttrsRequirementBaseRequirement(t *testing.T) {
	reg := newTestRegistry()
	reg.SetRequirements("base", entity.NewFileRequirement(nil, "name", "type"))

	require.Equal(t, []string{"name", "type"}, reg.FindAttrsRequirement(entity.FileGRIQuery("anything")))
}

func TestGetRequirementsIsSnapshot(t *testing.T) {
	reg := newTestRegistry()
	reg.SetRequirements("c", entity.NewFileRequirement(entity.FileGRIQuery("A"), "atime"))

	snapshot := reg.GetRequirements()
	snapshot["c"] = nil
	delete(snapshot, "c")

	require.Len(t, reg.GetRequirements()["c"], 1)
}

func TestConsumersGaugeMatchesRegistry(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			consumer := entity.ConsumerID(fmt.Sprintf("c%d", i))
			reg.SetRequirements(consumer, entity.NewFileRequirement(entity.FileGRIQuery("X"), "name"))
			if i%2 == 0 {
				reg.DeregisterRequirements(consumer)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, reg.GetRequirements(), 10)

	expected := `
# HELP browsersync_requirement_consumers Number of consumers with registered file requirements
# TYPE browsersync_requirement_consumers gauge
browsersync_requirement_consumers 10
`
	require.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer,
		strings.NewReader(expected), "browsersync_requirement_consumers"))
}
