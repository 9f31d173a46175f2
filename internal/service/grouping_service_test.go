package service

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/mediaqc-server/internal/domain"
	domainerrors "github.com/listenupapp/mediaqc-server/internal/errors"
	"github.com/listenupapp/mediaqc-server/internal/grouping"
	"github.com/listenupapp/mediaqc-server/internal/sse"
)

func sampleUpload() IngestRequest {
	return IngestRequest{Files: []IngestFile{
		{RelativePath: "study/S2/V1/front.mp4", Handle: "blob:1"},
		{RelativePath: "study/S1/V2/front.mp4", Handle: "blob:2"},
		{RelativePath: "study/S1/V1/side.png", Handle: "blob:3"},
		{RelativePath: "study/S1/V1/notes.txt", Handle: "blob:4"},
		{RelativePath: "S1/clip.mp4", Handle: "blob:5"},
	}}
}

func TestGroupingService_Ingest(t *testing.T) {
	d := setupServices(t)

	stats, err := d.grouping.Ingest(context.Background(), sampleUpload())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Admitted)
	assert.Equal(t, 1, stats.SkippedExtension)
	assert.Equal(t, 1, stats.SkippedShortPath)

	got := d.collect(t, sse.EventFilesIngested, sse.EventGroupingUpdated)
	ingested, ok := got[sse.EventFilesIngested].Data.(sse.FilesIngestedData)
	require.True(t, ok)
	assert.Equal(t, SourceUpload, ingested.Source)

	assert.Equal(t, []string{"front.mp4", "side.png"}, d.grouping.FileNames())
	assert.Equal(t, []domain.SubjectSessions{
		{Subject: "S1", Sessions: []string{"V1", "V2"}},
		{Subject: "S2", Sessions: []string{"V1"}},
	}, d.grouping.Subjects())
	assert.Len(t, d.grouping.GroupKeys(), 3)
}

func TestGroupingService_IngestRejectsEmptyPath(t *testing.T) {
	d := setupServices(t)

	_, err := d.grouping.Ingest(context.Background(), IngestRequest{Files: []IngestFile{{Handle: "blob:1"}}})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestGroupingService_IngestFilesFromScan(t *testing.T) {
	d := setupServices(t)

	stats := d.grouping.IngestFiles([]grouping.RawFile{
		grouping.File{Path: "root/S1/V1/a.mp4", Ref: "/media/x"},
	})
	assert.Equal(t, 1, stats.Admitted)

	e := d.nextOfType(t, sse.EventFilesIngested)
	ingested, ok := e.Data.(sse.FilesIngestedData)
	require.True(t, ok)
	assert.Equal(t, SourceScan, ingested.Source)
}

func TestGroupingService_SelectionAndMode(t *testing.T) {
	d := setupServices(t)
	ctx := context.Background()

	_, err := d.grouping.Ingest(ctx, sampleUpload())
	require.NoError(t, err)

	require.NoError(t, d.grouping.SetSelection(ctx, []string{"side.png", "front.mp4"}))
	assert.Equal(t, []string{"front.mp4", "side.png"}, d.grouping.Selection())

	err = testutil.GatherAndCompare(d.metrics.Registry(), strings.NewReader(`
# HELP mediaqc_selected_file_names File names currently selected for display.
# TYPE mediaqc_selected_file_names gauge
mediaqc_selected_file_names 2
`), "mediaqc_selected_file_names")
	require.NoError(t, err)

	assert.Equal(t, domain.GroupBySubjectSession, d.grouping.Mode())
	keys := make([]string, 0)
	for _, g := range d.grouping.Groups() {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"S1 / V1", "S1 / V2", "S2 / V1"}, keys)

	require.NoError(t, d.grouping.SetMode(ctx, string(domain.GroupBySubject)))
	keys = keys[:0]
	for _, g := range d.grouping.Groups() {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"S1", "S2"}, keys)

	files, err := d.grouping.Group("S1")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = d.grouping.Group("S1 / V1")
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestGroupingService_Validation(t *testing.T) {
	d := setupServices(t)
	ctx := context.Background()

	requireCode(t, d.grouping.SetMode(ctx, "by-day"), domainerrors.CodeValidation)
	requireCode(t, d.grouping.SetMode(ctx, ""), domainerrors.CodeValidation)
	requireCode(t, d.grouping.SetSelection(ctx, []string{"a.mp4", ""}), domainerrors.CodeValidation)

	assert.Equal(t, domain.GroupBySubjectSession, d.grouping.Mode())

	// An empty selection is valid and clears it.
	require.NoError(t, d.grouping.SetSelection(ctx, nil))
	assert.Empty(t, d.grouping.Selection())
}
