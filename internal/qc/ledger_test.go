package qc

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/listenupapp/mediaqc-server/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLedger(opts Options) *Ledger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLedger(logger, opts)
}

func wait(t *testing.T, r *Recompute) RecomputeStats {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats, err := r.Wait(ctx)
	require.NoError(t, err)
	return stats
}

var painVar = domain.QCVariable{Name: "Pain", Type: domain.VariableTypePassFail}

func TestLedger_RoundTrip(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,Y\n"))
	wait(t, l.AddVariable(painVar))

	out := l.ExportCSV()
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "Subject,Session,Pain", lines[0])
	assert.Equal(t, `"S1","V1","pass"`, lines[1])
	// The trailing newline in the import is kept as an empty row.
	assert.Equal(t, `"","",""`, lines[2])
}

func TestLedger_ImportParsesRows(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain,Note\nS1,V1,y\nS2,V1,n,loud,extra"))

	assert.Equal(t, []string{"Subject", "Session", "Pain", "Note"}, l.Headers())

	rows := l.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "y", rows[0].Get("Pain"))
	assert.Equal(t, "", rows[0].Get("Note"))
	_, present := rows[0]["Note"]
	assert.False(t, present)
	assert.Equal(t, "loud", rows[1].Get("Note"))
}

func TestLedger_ImportKeepsCarriageReturn(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\r\nS1,V1,Y\r\n"))

	assert.Equal(t, []string{"Subject", "Session", "Pain\r"}, l.Headers())
	assert.Equal(t, "Y\r", l.Rows()[0].Get("Pain\r"))

	// The header is "Pain\r", so a variable named Pain finds no cells.
	wait(t, l.AddVariable(domain.QCVariable{Name: "Pain", Type: domain.VariableTypePassFail}))
	assert.Equal(t, map[string]string{"Pain": ""}, l.EntriesFor("S1 / V1"))
	assert.Equal(t, "Subject,Session,Pain\r\n\"S1\",\"V1\",\"Y\r\"\n\"\",\"\",\"\"", l.ExportCSV())
}

func TestLedger_ImportShortRowDuplicateHeaders(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("A,A\nx"))

	assert.Equal(t, []string{"A", "A"}, l.Headers())
	require.Len(t, l.Rows(), 1)
	assert.Equal(t, domain.QCRow{"A": ""}, l.Rows()[0])

	wait(t, l.ImportCSV("Subject,Session,Pain\nS1"))
	assert.Equal(t, domain.QCRow{"Subject": "S1", "Session": "", "Pain": ""}, l.Rows()[0])
}

func TestLedger_ImportKeepsQuotesLiteral(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Note\nS1,V1,\"a,b\""))

	row := l.Rows()[0]
	assert.Equal(t, `"a`, row.Get("Note"))
}

func TestLedger_PassFailNormalization(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV(strings.Join([]string{
		"Subject,Session,Pain",
		"S1,V1,Y",
		"S1,V2, yes ",
		"S1,V3,P",
		"S2,V1,N",
		"S2,V2,fail",
		"S2,V3,f",
		"S3,V1,maybe",
		"S3,V2,",
		"S3,V3",
	}, "\n")))
	wait(t, l.AddVariable(painVar))

	tests := map[domain.GroupKey]string{
		"S1 / V1": "pass",
		"S1 / V2": "pass",
		"S1 / V3": "pass",
		"S2 / V1": "fail",
		"S2 / V2": "fail",
		"S2 / V3": "fail",
		"S3 / V1": "",
		"S3 / V2": "",
		"S3 / V3": "",
	}
	for key, want := range tests {
		got, ok := l.EntriesFor(key)["Pain"]
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestLedger_NonPassFailKeptRaw(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Note\nS1,V1, Y "))
	wait(t, l.AddVariable(domain.QCVariable{Name: "Note", Type: "text"}))

	assert.Equal(t, map[string]string{"Note": " Y "}, l.EntriesFor("S1 / V1"))
}

func TestLedger_RowsWithoutSubjectOrSessionSkipped(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\n,V1,y\nS1,,y\nS2,V1,y"))
	stats := wait(t, l.AddVariable(painVar))

	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 2, stats.SkippedRows)
	assert.Len(t, l.Snapshot(), 1)
}

func TestLedger_InactiveVariablesIgnored(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,y"))
	stats := wait(t, l.ReplaceVariables([]domain.QCVariable{
		{Name: "Pain"},
		{Type: domain.VariableTypePassFail},
	}))

	assert.Zero(t, stats.Variables)
	assert.Empty(t, l.EntriesFor("S1 / V1"))
	assert.Len(t, l.Variables(), 2)
}

func TestLedger_SetVariable(t *testing.T) {
	l := testLedger(Options{})
	other := domain.QCVariable{Name: "Note", Type: "text"}

	wait(t, l.SetVariable(5, painVar))
	assert.Equal(t, []domain.QCVariable{painVar}, l.Variables())

	wait(t, l.SetVariable(0, other))
	assert.Equal(t, []domain.QCVariable{other}, l.Variables())

	wait(t, l.SetVariable(-1, painVar))
	assert.Equal(t, []domain.QCVariable{other}, l.Variables())
}

func TestLedger_RemoveVariableCleansEntries(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain,Note\nS1,V1,y,ok"))
	wait(t, l.ReplaceVariables([]domain.QCVariable{painVar, {Name: "Note", Type: "text"}}))
	require.Contains(t, l.EntriesFor("S1 / V1"), "Pain")

	wait(t, l.RemoveVariable(0))

	entries := l.EntriesFor("S1 / V1")
	assert.NotContains(t, entries, "Pain")
	assert.Equal(t, "ok", entries["Note"])
	assert.Equal(t, []domain.QCVariable{{Name: "Note", Type: "text"}}, l.Variables())
}

func TestLedger_RemoveVariableOutOfRange(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.AddVariable(painVar))

	wait(t, l.RemoveVariable(3))
	wait(t, l.RemoveVariable(-1))

	assert.Equal(t, []domain.QCVariable{painVar}, l.Variables())
}

func TestLedger_SetEntry(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,y"))
	wait(t, l.AddVariable(painVar))

	got := l.SetEntry("S1 / V1", "Pain", "N")

	assert.Equal(t, "fail", got)
	assert.Equal(t, map[string]string{"Pain": "fail"}, l.EntriesFor("S1 / V1"))
}

func TestLedger_SetEntryUnregisteredVariableStoredVerbatim(t *testing.T) {
	l := testLedger(Options{})

	l.SetEntry("S9 / V9", "Comment", " N ")

	assert.Equal(t, map[string]string{"Comment": " N "}, l.EntriesFor("S9 / V9"))
}

func TestLedger_EntriesForUnknownGroup(t *testing.T) {
	l := testLedger(Options{})

	entries := l.EntriesFor("nope / nope")
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLedger_EntriesForReturnsCopy(t *testing.T) {
	l := testLedger(Options{})
	l.SetEntry("S1 / V1", "Note", "a")

	l.EntriesFor("S1 / V1")["Note"] = "b"

	assert.Equal(t, "a", l.EntriesFor("S1 / V1")["Note"])
}

func TestLedger_BulkRecomputeOverwritesDirectEdits(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,y"))
	wait(t, l.AddVariable(painVar))
	l.SetEntry("S1 / V1", "Pain", "fail")

	wait(t, l.AddVariable(domain.QCVariable{Name: "Note", Type: "text"}))

	assert.Equal(t, "pass", l.EntriesFor("S1 / V1")["Pain"])
}

func TestLedger_ExportUsesEditedValues(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain,Site\nS1,V1,y,A\nS2,V1,,B"))
	wait(t, l.AddVariable(painVar))
	l.SetEntry("S1 / V1", "Pain", "no")

	assert.Equal(t, strings.Join([]string{
		"Subject,Session,Pain,Site",
		`"S1","V1","fail","A"`,
		`"S2","V1","","B"`,
	}, "\n"), l.ExportCSV())
}

func TestLedger_ExportFallsBackToImportedCell(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,maybe"))
	wait(t, l.AddVariable(painVar))

	// "maybe" normalizes to "", so the imported cell is kept.
	assert.Equal(t, "Subject,Session,Pain\n\"S1\",\"V1\",\"maybe\"", l.ExportCSV())
}

func TestLedger_ExportIgnoresVariablesOutsideHeaders(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session\nS1,V1"))
	wait(t, l.AddVariable(painVar))
	l.SetEntry("S1 / V1", "Pain", "y")

	assert.Equal(t, "Subject,Session\n\"S1\",\"V1\"", l.ExportCSV())
}

func TestLedger_ToggleQualityControl(t *testing.T) {
	l := testLedger(Options{})
	wait(t, l.ImportCSV("Subject,Session,Pain\nS1,V1,y"))
	wait(t, l.AddVariable(painVar))
	l.SetEntry("S1 / V1", "Pain", "fail")

	on, run := l.ToggleQualityControl()
	require.True(t, on)
	require.NotNil(t, run)
	wait(t, run)
	assert.True(t, l.Enabled())
	assert.Equal(t, "pass", l.EntriesFor("S1 / V1")["Pain"])

	l.SetEntry("S1 / V1", "Pain", "fail")
	on, run = l.ToggleQualityControl()
	assert.False(t, on)
	assert.Nil(t, run)
	assert.Equal(t, "fail", l.EntriesFor("S1 / V1")["Pain"])
}

func TestRecompute_NilHandle(t *testing.T) {
	var r *Recompute

	assert.Empty(t, r.ID())
	stats, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RecomputeStats{}, stats)
}

func TestRecompute_WaitHonorsContext(t *testing.T) {
	r := newRecompute(ReasonImport, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []RecomputeInfo
	progress []int
	finished []RecomputeStats
}

func (o *recordingObserver) RecomputeStarted(info RecomputeInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, info)
}

func (o *recordingObserver) RecomputeProgress(_ RecomputeInfo, processed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, processed)
}

func (o *recordingObserver) RecomputeFinished(_ RecomputeInfo, stats RecomputeStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, stats)
}

func TestLedger_ObserverNotified(t *testing.T) {
	obs := &recordingObserver{}
	l := testLedger(Options{ProgressEvery: 2, Observer: obs})

	var b strings.Builder
	b.WriteString("Subject,Session,Pain")
	for i := range 5 {
		b.WriteString("\nS" + string(rune('A'+i)) + ",V1,y")
	}
	wait(t, l.ImportCSV(b.String()))
	run := l.AddVariable(painVar)
	wait(t, run)

	obs.mu.Lock()
	defer obs.mu.Unlock()

	require.Len(t, obs.started, 2)
	assert.Equal(t, ReasonVariableSet, obs.started[1].Reason)
	assert.Equal(t, 5, obs.started[1].Total)
	assert.Equal(t, run.ID(), obs.started[1].ID)
	assert.Equal(t, []int{2, 4}, obs.progress)
	require.Len(t, obs.finished, 2)
	assert.Equal(t, 5, obs.finished[1].Written)
}

func TestLedger_Idle(t *testing.T) {
	l := testLedger(Options{})

	var b strings.Builder
	b.WriteString("Subject,Session,Pain")
	for i := range 2000 {
		b.WriteString("\nS")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(",V1,y")
	}
	l.ImportCSV(b.String())
	l.AddVariable(painVar)
	l.AddVariable(domain.QCVariable{Name: "Note", Type: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, l.Idle(ctx))
	assert.Zero(t, l.Running())

	entries := l.EntriesFor("S / V1")
	assert.Equal(t, "pass", entries["Pain"])
}
