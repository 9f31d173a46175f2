package grouping

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

func testEngine() *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(logger, Options{})
}

// countingFile records how often its handle was requested.
type countingFile struct {
	path  string
	calls *int
}

func (f countingFile) RelativePath() string { return f.path }

func (f countingFile) Handle() string {
	*f.calls++
	return "blob:" + f.path
}

func files(paths ...string) []RawFile {
	out := make([]RawFile, len(paths))
	for i, p := range paths {
		out[i] = File{Path: p, Ref: "ref:" + p}
	}
	return out
}

func TestIngest_ExtensionAndSegmentFilter(t *testing.T) {
	e := testEngine()

	stats := e.Ingest(files("a/b/c.mp4", "a/b/c.txt", "x"))

	assert.Equal(t, IngestStats{
		Admitted:         1,
		SkippedShortPath: 1,
		SkippedExtension: 1,
		Groups:           1,
		Subjects:         1,
	}, stats)

	records, ok := e.Files("a / b")
	require.True(t, ok)
	assert.Equal(t, []domain.FileRecord{
		{FileName: "c.mp4", Path: "ref:a/b/c.mp4", FullPath: "a/b/c.mp4"},
	}, records)

	assert.Equal(t, []domain.GroupKey{"a / b"}, e.GroupKeys())
}

func TestIngest_UsesLastThreeSegments(t *testing.T) {
	e := testEngine()
	e.Ingest(files("root/study/S01/V2/clip.png"))

	records, ok := e.Files(domain.NewGroupKey("S01", "V2"))
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "clip.png", records[0].FileName)
	assert.Equal(t, "root/study/S01/V2/clip.png", records[0].FullPath)
}

func TestIngest_ExtensionIsCaseSensitive(t *testing.T) {
	e := testEngine()
	stats := e.Ingest(files("a/b/c.MP4", "a/b/d.Png", "a/b/e.jpg", "a/b/f.jpeg"))

	assert.Equal(t, 1, stats.Admitted)
	assert.Equal(t, 3, stats.SkippedExtension)
}

func TestIngest_HandleOnlyForAdmittedFiles(t *testing.T) {
	e := testEngine()
	calls := 0
	e.Ingest([]RawFile{
		countingFile{path: "a/b/c.mp4", calls: &calls},
		countingFile{path: "a/b/c.txt", calls: &calls},
		countingFile{path: "short.mp4", calls: &calls},
	})

	assert.Equal(t, 1, calls)
}

func TestIngest_ReplacesPreviousState(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/a.mp4"))
	e.Ingest(files("S2/V1/b.mp4"))

	_, ok := e.Files("S1 / V1")
	assert.False(t, ok)
	assert.Equal(t, []string{"b.mp4"}, e.UniqueFileNames())
}

func TestIngest_KeepsIngestionOrderWithinGroup(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/z.mp4", "S1/V1/a.mp4", "S1/V1/m.png"))

	records, ok := e.Files("S1 / V1")
	require.True(t, ok)
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.FileName
	}
	assert.Equal(t, []string{"z.mp4", "a.mp4", "m.png"}, names)
}

func TestSortedView(t *testing.T) {
	e := testEngine()
	e.Ingest(files(
		"S2/a/x.mp4",
		"S1/b/x.mp4",
		"S1/a/x.mp4",
		"S1/b/y.mp4",
	))

	want := []domain.SubjectSessions{
		{Subject: "S1", Sessions: []string{"a", "b"}},
		{Subject: "S2", Sessions: []string{"a"}},
	}
	if diff := cmp.Diff(want, e.SortedView()); diff != "" {
		t.Errorf("SortedView() mismatch (-want +got):\n%s", diff)
	}
}

func TestSortedView_Empty(t *testing.T) {
	e := testEngine()
	assert.Empty(t, e.SortedView())
	assert.Empty(t, e.GroupedVideos())
	assert.Empty(t, e.UniqueFileNames())
}

func TestUniqueFileNames_Deduplicates(t *testing.T) {
	e := testEngine()
	e.Ingest(files(
		"S2/V1/front.mp4",
		"S1/V1/front.mp4",
		"S1/V2/side.mp4",
		"S1/V2/front.mp4",
	))

	assert.Equal(t, []string{"front.mp4", "side.mp4"}, e.UniqueFileNames())
}

func TestGroupedVideos_SubjectSessionMode(t *testing.T) {
	e := testEngine()
	e.Ingest(files(
		"S1/V1/front.mp4",
		"S1/V1/side.mp4",
		"S1/V2/side.mp4",
		"S2/V1/front.mp4",
	))
	e.SetSelection([]string{"front.mp4"})

	want := []domain.VideoGroup{
		{Key: "S1 / V1", Files: []domain.GroupedFile{{
			FileRecord: domain.FileRecord{FileName: "front.mp4", Path: "ref:S1/V1/front.mp4", FullPath: "S1/V1/front.mp4"},
			Subject:    "S1", Session: "V1",
		}}},
		{Key: "S2 / V1", Files: []domain.GroupedFile{{
			FileRecord: domain.FileRecord{FileName: "front.mp4", Path: "ref:S2/V1/front.mp4", FullPath: "S2/V1/front.mp4"},
			Subject:    "S2", Session: "V1",
		}}},
	}
	if diff := cmp.Diff(want, e.GroupedVideos()); diff != "" {
		t.Errorf("GroupedVideos() mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupedVideos_SubjectMode(t *testing.T) {
	e := testEngine()
	e.Ingest(files(
		"S1/V2/side.mp4",
		"S1/V1/side.mp4",
		"S2/V1/front.mp4",
	))
	e.SetSelection([]string{"side.mp4"})
	e.SetGroupMode(domain.GroupBySubject)

	groups := e.GroupedVideos()
	require.Len(t, groups, 1)
	assert.Equal(t, "S1", groups[0].Key)
	require.Len(t, groups[0].Files, 2)
	assert.Equal(t, "V1", groups[0].Files[0].Session)
	assert.Equal(t, "V2", groups[0].Files[1].Session)
}

func TestGroupedVideos_OmitsGroupsWithoutSelectedFiles(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/a.mp4", "S2/V1/b.mp4"))
	e.SetSelection([]string{"a.mp4"})

	for _, mode := range []domain.GroupMode{domain.GroupBySubject, domain.GroupBySubjectSession} {
		e.SetGroupMode(mode)
		for _, g := range e.GroupedVideos() {
			assert.NotContains(t, g.Key, "S2", "mode %s", mode)
			assert.NotEmpty(t, g.Files)
		}
	}

	e.SetSelection(nil)
	assert.Empty(t, e.GroupedVideos())
}

func TestSetGroupMode_Idempotent(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S2/V1/a.mp4", "S1/V2/a.mp4", "S1/V1/a.mp4", "S1/V1/b.png"))
	e.SetSelection([]string{"a.mp4", "b.png"})

	e.SetGroupMode(domain.GroupBySubject)
	first := e.GroupedVideos()
	e.SetGroupMode(domain.GroupBySubject)
	second := e.GroupedVideos()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated SetGroupMode changed output (-first +second):\n%s", diff)
	}
}

func TestSetGroupMode_UnknownModeYieldsEmptyProjection(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/a.mp4"))
	e.SetSelection([]string{"a.mp4"})

	e.SetGroupMode("by-camera")

	assert.Equal(t, domain.GroupMode("by-camera"), e.GroupMode())
	assert.Empty(t, e.GroupedVideos())
}

func TestGroup(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/a.mp4"))
	e.SetSelection([]string{"a.mp4"})

	got, ok := e.Group("S1 / V1")
	require.True(t, ok)
	assert.Len(t, got, 1)

	_, ok = e.Group("S9 / V9")
	assert.False(t, ok)
}

func TestSelection_Sorted(t *testing.T) {
	e := testEngine()
	e.SetSelection([]string{"b.mp4", "a.mp4", "b.mp4"})
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, e.Selection())
}

func TestGroupedVideos_ReturnsCopy(t *testing.T) {
	e := testEngine()
	e.Ingest(files("S1/V1/a.mp4"))
	e.SetSelection([]string{"a.mp4"})

	groups := e.GroupedVideos()
	groups[0].Files[0].FileName = "mutated"

	assert.Equal(t, "a.mp4", e.GroupedVideos()[0].Files[0].FileName)
}

func TestIsAllowedFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"clip.mp4", true},
		{"shot.jpeg", true},
		{"shot.png", true},
		{"shot.jpg", false},
		{"clip.MP4", false},
		{"mp4", false},
		{"clip.mp4.bak", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedFile(tt.name))
		})
	}
}
