package controller

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/dataset"
	"github.com/leapstack-labs/leapboard/internal/layout"
	"github.com/leapstack-labs/leapboard/internal/testutil"
)

var testColumns = []string{"date", "machine", "thickness", "defects", "product"}

type fixture struct {
	ctrl  *Controller
	store *layout.Store
	root  string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	store := layout.NewStore(root, layout.WithLogger(testutil.NewTestLogger(t)))
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return &fixture{
		ctrl:  New(store, root, testColumns, opts...),
		store: store,
		root:  root,
	}
}

func (f *fixture) apply(t *testing.T, cmd string) Result {
	t.Helper()
	return f.ctrl.Apply(context.Background(), json.RawMessage(cmd))
}

func (f *fixture) mustApply(t *testing.T, cmd string) Result {
	t.Helper()
	res := f.apply(t, cmd)
	require.True(t, res.OK, "command %s failed: %s", cmd, res.Error)
	return res
}

func TestApply_MalformedCommands(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{"not an object", `"list_tabs"`, "command must be a JSON object"},
		{"number", `42`, "command must be a JSON object"},
		{"empty", ``, "command must be a JSON object"},
		{"missing action", `{"name":"X"}`, "missing action"},
		{"non-string action", `{"action": 7}`, "command must be a JSON object"},
		{"unknown action", `{"action":"explode"}`, "unknown action: explode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.apply(t, tt.cmd)
			assert.False(t, res.OK)
			assert.Equal(t, tt.want, res.Error)
		})
	}
}

func TestApply_ListTabsDefaultDocument(t *testing.T) {
	f := newFixture(t)
	res := f.mustApply(t, `{"action":"list_tabs"}`)
	tabs, _ := res.Get("tabs")
	assert.Equal(t, []string{layout.DefaultTabName}, tabs)
}

func TestApply_AddTabIsIdempotentByName(t *testing.T) {
	f := newFixture(t)
	first := f.mustApply(t, `{"action":"add_tab","name":"Quality"}`)
	added, _ := first.Get("added_tab")
	assert.Equal(t, "Quality", added)

	second := f.mustApply(t, `{"action":"add_tab","name":"Quality"}`)
	msg, _ := second.Get("message")
	assert.Equal(t, "Tab already exists.", msg)

	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{layout.DefaultTabName, "Quality"}, doc.TabNames())
}

func TestApply_AddTabTrimsAndRejectsBlank(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"add_tab","name":"   "}`)
	assert.False(t, res.OK)

	f.mustApply(t, `{"action":"add_tab","name":"  Output  "}`)
	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.NotNil(t, doc.FindTab("Output"))
}

func TestApply_DeleteTabMissingNameSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_tab","name":"Quality"}`)

	res := f.mustApply(t, `{"action":"delete_tab","name":"Ghost"}`)
	deleted, _ := res.Get("deleted_tab")
	assert.Equal(t, "Ghost", deleted)

	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{layout.DefaultTabName, "Quality"}, doc.TabNames())
}

func TestApply_DeleteTabRemovesEveryMatch(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_tab","name":"Quality"}`)
	f.mustApply(t, `{"action":"delete_tab","name":"Quality"}`)

	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.FindTab("Quality"))
}

func TestApply_KeepOnlyTab(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_tab","name":"A"}`)
	f.mustApply(t, `{"action":"add_tab","name":"B"}`)

	res := f.mustApply(t, `{"action":"keep_only_tab","name":"B"}`)
	kept, _ := res.Get("kept_only")
	assert.Equal(t, "B", kept)

	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, doc.TabNames())
}

func TestApply_KeepOnlyTabNotFound(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"keep_only_tab","name":"Ghost"}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "tab not found")
}

func TestApply_ClearPanels(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_panel","tab_name":"Trends","panel":{"type":"line","x":"date","y":"thickness"}}`)

	f.mustApply(t, `{"action":"clear_panels","tab_name":"Trends"}`)
	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.FindTab("Trends").Panels)

	res := f.apply(t, `{"action":"clear_panels","tab_name":"Ghost"}`)
	assert.False(t, res.OK)
}

func TestApply_AddPanelCreatesTabWhenAbsent(t *testing.T) {
	f := newFixture(t)
	res := f.mustApply(t, `{"action":"add_panel","tab_name":"Fresh","panel":{"type":"hist","col":"defects","title":"Defect spread"}}`)

	title, _ := res.Get("added_panel")
	assert.Equal(t, "Defect spread", title)
	tab, _ := res.Get("tab")
	assert.Equal(t, "Fresh", tab)

	doc, err := f.store.Load()
	require.NoError(t, err)
	require.NotNil(t, doc.FindTab("Fresh"))
	assert.Len(t, doc.FindTab("Fresh").Panels, 1)
}

func TestApply_AddPanelRequiresType(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"add_panel","tab_name":"A","panel":{"x":"date"}}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "panel.type is required")
}

func TestApply_AddPanelUnknownColumnLeavesDiskUntouched(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_tab","name":"Trends"}`)
	before, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)

	res := f.apply(t, `{"action":"add_panel","tab_name":"Trends","panel":{"type":"line","x":"date","y":"pressure"}}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "unknown column for y: pressure")

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed add_panel must not mutate the document")
}

func TestApply_AddPanelValidatesMetrics(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"add_panel","tab_name":"A","panel":{"type":"kpi","metrics":["thickness","pressure","humidity"]}}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "unknown metrics columns: pressure, humidity")
}

func TestApply_AddPanelValidatesColsField(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"add_panel","tab_name":"A","panel":{"type":"table","cols":["machine","serial_no"]}}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "unknown cols columns: serial_no")

	// Known columns in cols pass.
	f.mustApply(t, `{"action":"add_panel","tab_name":"A","panel":{"type":"table","cols":["machine","product"]}}`)
}

func TestApply_MutatingActionsBackupFirst(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"add_tab","name":"A"}`)

	// First edit on a fresh project has nothing to back up yet.
	backups, err := f.store.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)

	// The no-op re-add still snapshots the now-existing document.
	f.mustApply(t, `{"action":"add_tab","name":"A"}`)
	backups, err = f.store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	// Read-only actions never back up.
	f.mustApply(t, `{"action":"list_tabs"}`)
	backups, err = f.store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestApply_RollbackLayout(t *testing.T) {
	f := newFixture(t)

	// No backups yet: success with a null payload, live document untouched.
	res := f.mustApply(t, `{"action":"rollback_layout"}`)
	used, ok := res.Get("rollback")
	require.True(t, ok)
	assert.Nil(t, used)

	f.mustApply(t, `{"action":"add_tab","name":"A"}`)
	f.mustApply(t, `{"action":"add_tab","name":"B"}`)

	res = f.mustApply(t, `{"action":"rollback_layout"}`)
	used, _ = res.Get("rollback")
	require.NotNil(t, used)

	doc, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{layout.DefaultTabName, "A"}, doc.TabNames())
}

func TestApply_CreateFile(t *testing.T) {
	f := newFixture(t)
	res := f.mustApply(t, `{"action":"create_file","relative_path":"ok/nested/file.md","content":"# notes\n"}`)
	written, _ := res.Get("written")
	assert.Equal(t, "ok/nested/file.md", written)

	data, err := os.ReadFile(filepath.Join(f.root, "ok", "nested", "file.md"))
	require.NoError(t, err)
	assert.Equal(t, "# notes\n", string(data))
}

func TestApply_CreateFileAppendMode(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"create_file","relative_path":"log.txt","content":"one\n"}`)
	f.mustApply(t, `{"action":"create_file","relative_path":"log.txt","content":"two\n","mode":"append"}`)

	data, err := os.ReadFile(filepath.Join(f.root, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	res := f.apply(t, `{"action":"create_file","relative_path":"log.txt","content":"x","mode":"truncate"}`)
	assert.False(t, res.OK)
}

func TestApply_CreateFileRejectsUnsafePaths(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		path string
	}{
		{"traversal", "../secrets.py"},
		{"absolute", "/etc/passwd.txt"},
		{"home", "~/notes.md"},
		{"backslash traversal", `..\secrets.py`},
		{"inner traversal", "ok/../../escape.md"},
		{"disallowed extension", "run.sh"},
		{"no extension", "Makefile"},
		{"blank", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.apply(t, `{"action":"create_file","relative_path":"`+tt.path+`","content":"x"}`)
			assert.False(t, res.OK, "path %q must be rejected", tt.path)
		})
	}
	_, err := os.Stat(filepath.Join(filepath.Dir(f.root), "secrets.py"))
	assert.True(t, os.IsNotExist(err))
}

func TestApply_CreateFileRequiresContent(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"create_file","relative_path":"a.md"}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "content")
}

func TestApply_PatchFileDotMatchesNewline(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"create_file","relative_path":"doc.md","content":"start\nmiddle\nend\n"}`)

	res := f.mustApply(t, `{"action":"patch_file","relative_path":"doc.md","pattern":"start.*end","replacement":"replaced"}`)
	patched, _ := res.Get("patched")
	assert.Equal(t, "doc.md", patched)

	data, err := os.ReadFile(filepath.Join(f.root, "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "replaced\n", string(data))
}

func TestApply_PatchFileReplacesAllMatches(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"create_file","relative_path":"cfg.yml","content":"a: old\nb: old\n"}`)
	f.mustApply(t, `{"action":"patch_file","relative_path":"cfg.yml","pattern":"old","replacement":"new"}`)

	data, err := os.ReadFile(filepath.Join(f.root, "cfg.yml"))
	require.NoError(t, err)
	assert.Equal(t, "a: new\nb: new\n", string(data))
}

func TestApply_PatchFileMissingFile(t *testing.T) {
	f := newFixture(t)
	res := f.apply(t, `{"action":"patch_file","relative_path":"ghost.md","pattern":"x","replacement":"y"}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "file not found")
}

func TestApply_PatchFileBadPattern(t *testing.T) {
	f := newFixture(t)
	f.mustApply(t, `{"action":"create_file","relative_path":"a.txt","content":"x"}`)
	res := f.apply(t, `{"action":"patch_file","relative_path":"a.txt","pattern":"([unclosed","replacement":"y"}`)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "invalid pattern")
}

type stubInspector struct {
	report *dataset.ColumnReport
	err    error
	gotCol string
}

func (s *stubInspector) Inspect(_ context.Context, col string, _ dataset.InspectOptions) (*dataset.ColumnReport, error) {
	s.gotCol = col
	return s.report, s.err
}

func TestApply_InspectColumnMergesReport(t *testing.T) {
	stub := &stubInspector{report: &dataset.ColumnReport{
		Column:      "thickness",
		DType:       "DOUBLE",
		RowsSampled: 5,
		MissingPct:  0.2,
		Samples:     []string{"1.5"},
	}}
	f := newFixture(t, WithInspector(stub))

	res := f.mustApply(t, `{"action":"inspect_column","name":"thickness"}`)
	assert.Equal(t, "thickness", stub.gotCol)
	col, _ := res.Get("column")
	assert.Equal(t, "thickness", col)
	pct, _ := res.Get("missing_pct")
	assert.Equal(t, 0.2, pct)
}

func TestApply_InspectColumnAcceptsColumnAlias(t *testing.T) {
	stub := &stubInspector{report: &dataset.ColumnReport{Column: "product", DType: "VARCHAR"}}
	f := newFixture(t, WithInspector(stub))

	res := f.mustApply(t, `{"action":"inspect_column","column":"product"}`)
	assert.Equal(t, "product", stub.gotCol)
	col, _ := res.Get("column")
	assert.Equal(t, "product", col)

	// "name" wins when both are present.
	f.mustApply(t, `{"action":"inspect_column","name":"date","column":"product"}`)
	assert.Equal(t, "date", stub.gotCol)
}

func TestApply_InspectColumnNotFound(t *testing.T) {
	stub := &stubInspector{err: dataset.ErrColumnNotFound}
	f := newFixture(t, WithInspector(stub))

	res := f.apply(t, `{"action":"inspect_column","name":"ghost"}`)
	assert.False(t, res.OK)
	assert.Equal(t, "column not found: ghost", res.Error)
}

func TestApply_InspectColumnRequiresName(t *testing.T) {
	f := newFixture(t, WithInspector(&stubInspector{}))
	res := f.apply(t, `{"action":"inspect_column","name":"  "}`)
	assert.False(t, res.OK)
}

func TestResult_MarshalJSON(t *testing.T) {
	ok := succeed("added_tab", "Quality")
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"added_tab":"Quality"}`, string(data))

	fail := failf("boom: %d", 7)
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"boom: 7"}`, string(data))
}

func TestSafeRelPath_AcceptsNormalPaths(t *testing.T) {
	root := t.TempDir()
	rel, abs, err := safeRelPath(root, " notes/today.md ")
	require.NoError(t, err)
	assert.Equal(t, "notes/today.md", rel)
	assert.Equal(t, filepath.Join(root, "notes", "today.md"), abs)
}
