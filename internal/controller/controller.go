// Package controller applies structured dashboard commands to the layout
// store. It is the validating state machine between model output and the
// persisted layout: heterogeneous JSON commands come in, and the document is
// guaranteed to stay renderable on the way out.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapboard/internal/dataset"
	"github.com/leapstack-labs/leapboard/internal/layout"
)

// Inspector computes on-demand column statistics for inspect_column.
type Inspector interface {
	Inspect(ctx context.Context, column string, opts dataset.InspectOptions) (*dataset.ColumnReport, error)
}

// Panel fields validated against the dataset schema before a panel is added.
var (
	singleColumnFields = []string{"x", "y", "col", "date", "group", "facet_row", "facet_col", "color"}
	multiColumnFields  = []string{"metrics", "cols"}
)

const maxReportedBadColumns = 8

// Controller applies one command at a time against a layout store and a
// dataset schema snapshot. It assumes exclusive access to the project
// directory; callers serialize their own command batches.
type Controller struct {
	store     *layout.Store
	root      string
	columns   map[string]struct{}
	inspector Inspector
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithInspector wires the column inspector backing inspect_column.
func WithInspector(in Inspector) Option {
	return func(c *Controller) { c.inspector = in }
}

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a controller over the given store and project root. columns is
// the session's schema snapshot; panel column references are validated
// against it for the session's lifetime.
func New(store *layout.Store, root string, columns []string, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		root:    root,
		columns: make(map[string]struct{}, len(columns)),
		logger:  slog.Default(),
	}
	for _, col := range columns {
		c.columns[col] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) hasColumn(name string) bool {
	_, ok := c.columns[name]
	return ok
}

// Apply runs one command and returns its Result. Malformed commands and all
// internal failures surface as failure results; Apply never panics, and a
// failed command leaves no partial mutation. Every mutating action snapshots
// the current document before loading it, even when the edit turns out to be
// a no-op.
func (c *Controller) Apply(ctx context.Context, raw json.RawMessage) Result {
	var envelope struct {
		Action string `json:"action"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &envelope) != nil {
		return failf("command must be a JSON object")
	}
	action := envelope.Action
	if action == "" {
		return failf("missing action")
	}
	c.logger.Debug("applying command", "action", action)

	switch action {
	case "list_tabs":
		return c.listTabs()
	case "inspect_column":
		return c.inspectColumn(ctx, raw)
	case "rollback_layout":
		return c.rollbackLayout()
	case "create_file", "patch_file",
		"add_tab", "delete_tab", "keep_only_tab", "clear_panels", "add_panel":
		if _, err := c.store.Backup(); err != nil {
			return failf("backup failed: %v", err)
		}
		switch action {
		case "create_file":
			return c.createFile(raw)
		case "patch_file":
			return c.patchFile(raw)
		default:
			return c.applyLayoutEdit(action, raw)
		}
	default:
		return failf("unknown action: %s", action)
	}
}

// applyLayoutEdit runs the load/mutate/save cycle shared by all tab and panel
// edits. The document is saved only after the edit reports success and an
// actual change.
func (c *Controller) applyLayoutEdit(action string, raw json.RawMessage) Result {
	doc, err := c.store.Load()
	if err != nil {
		return failf("load layout: %v", err)
	}

	var res Result
	var dirty bool
	switch action {
	case "add_tab":
		res, dirty = c.addTab(doc, raw)
	case "delete_tab":
		res, dirty = c.deleteTab(doc, raw)
	case "keep_only_tab":
		res, dirty = c.keepOnlyTab(doc, raw)
	case "clear_panels":
		res, dirty = c.clearPanels(doc, raw)
	case "add_panel":
		res, dirty = c.addPanel(doc, raw)
	}

	if !res.OK || !dirty {
		return res
	}
	if err := c.store.Save(doc); err != nil {
		return failf("save layout: %v", err)
	}
	return res
}

func (c *Controller) listTabs() Result {
	doc, err := c.store.Load()
	if err != nil {
		return failf("load layout: %v", err)
	}
	return succeed("tabs", doc.TabNames())
}

func (c *Controller) rollbackLayout() Result {
	used, err := c.store.RollbackLast()
	if errors.Is(err, layout.ErrNoBackups) {
		return succeed("rollback", nil)
	}
	if err != nil {
		return failf("rollback failed: %v", err)
	}
	return succeed("rollback", used)
}

func (c *Controller) inspectColumn(ctx context.Context, raw json.RawMessage) Result {
	var cmd struct {
		Name       string `json:"name"`
		Column     string `json:"column"`
		RowLimit   int    `json:"row_limit"`
		SampleMode string `json:"sample_mode"`
		Top        int    `json:"top"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failf("inspect_column requires name (string)")
	}
	// "column" is an accepted alias for "name"; models emit both.
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		name = strings.TrimSpace(cmd.Column)
	}
	if name == "" {
		return failf("inspect_column requires name")
	}
	if c.inspector == nil {
		return failf("no dataset configured")
	}

	report, err := c.inspector.Inspect(ctx, name, dataset.InspectOptions{
		RowLimit:   cmd.RowLimit,
		SampleMode: cmd.SampleMode,
		TopN:       cmd.Top,
	})
	if errors.Is(err, dataset.ErrColumnNotFound) {
		return failf("column not found: %s", name)
	}
	if err != nil {
		return failf("inspect %s: %v", name, err)
	}

	extra, err := asFields(report)
	if err != nil {
		return failf("encode report: %v", err)
	}
	return Result{OK: true, Extra: extra}
}

// asFields flattens a report into payload keys via its JSON form.
func asFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Controller) addTab(doc *layout.Document, raw json.RawMessage) (Result, bool) {
	name, res := requireName(raw, "add_tab")
	if !res.OK {
		return res, false
	}
	if doc.FindTab(name) != nil {
		// Idempotent by name: re-adding reports success without duplicating.
		return succeed("message", "Tab already exists.", "tab", name), false
	}
	doc.Tabs = append(doc.Tabs, layout.NewTab(name))
	return succeed("added_tab", name), true
}

func (c *Controller) deleteTab(doc *layout.Document, raw json.RawMessage) (Result, bool) {
	name, res := requireName(raw, "delete_tab")
	if !res.OK {
		return res, false
	}
	// Deleting a nonexistent tab succeeds with zero removed.
	kept := doc.Tabs[:0]
	for _, t := range doc.Tabs {
		if t.Name != name {
			kept = append(kept, t)
		}
	}
	doc.Tabs = kept
	return succeed("deleted_tab", name), true
}

func (c *Controller) keepOnlyTab(doc *layout.Document, raw json.RawMessage) (Result, bool) {
	name, res := requireName(raw, "keep_only_tab")
	if !res.OK {
		return res, false
	}
	tab := doc.FindTab(name)
	if tab == nil {
		return failf("tab not found: %s", name), false
	}
	doc.Tabs = []layout.Tab{*tab}
	return succeed("kept_only", name), true
}

func (c *Controller) clearPanels(doc *layout.Document, raw json.RawMessage) (Result, bool) {
	var cmd struct {
		TabName string `json:"tab_name"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failf("clear_panels requires tab_name (string)"), false
	}
	name := strings.TrimSpace(cmd.TabName)
	if name == "" {
		return failf("clear_panels requires tab_name"), false
	}
	tab := doc.FindTab(name)
	if tab == nil {
		return failf("tab not found: %s", name), false
	}
	tab.Panels = []layout.Panel{}
	return succeed("cleared_panels", name), true
}

func (c *Controller) addPanel(doc *layout.Document, raw json.RawMessage) (Result, bool) {
	var cmd struct {
		TabName string       `json:"tab_name"`
		Panel   layout.Panel `json:"panel"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failf("add_panel requires tab_name (string) and panel (object)"), false
	}
	name := strings.TrimSpace(cmd.TabName)
	if name == "" {
		return failf("add_panel requires tab_name"), false
	}
	if cmd.Panel == nil {
		return failf("add_panel requires panel object"), false
	}

	ptype, _ := cmd.Panel["type"].(string)
	ptype = strings.TrimSpace(ptype)
	if ptype == "" {
		return failf("panel.type is required"), false
	}
	cmd.Panel["type"] = ptype

	// Column validation happens before any mutation: a violation aborts the
	// whole command with the document untouched.
	if err := c.checkPanelColumns(cmd.Panel); err != nil {
		return failf("%v", err), false
	}

	tab := doc.FindTab(name)
	if tab == nil {
		doc.Tabs = append(doc.Tabs, layout.NewTab(name))
		tab = &doc.Tabs[len(doc.Tabs)-1]
	}
	tab.Panels = append(tab.Panels, cmd.Panel)

	title := ptype
	if t, ok := cmd.Panel["title"].(string); ok && t != "" {
		title = t
	}
	return succeed("added_panel", title, "tab", name), true
}

// checkPanelColumns validates every column-referencing panel field against
// the schema snapshot. Non-string values in single-column fields and
// non-string entries in multi-column lists are left to the rendering layer.
func (c *Controller) checkPanelColumns(p layout.Panel) error {
	for _, key := range singleColumnFields {
		s, ok := p[key].(string)
		if !ok || s == "" {
			continue
		}
		if !c.hasColumn(s) {
			return fmt.Errorf("unknown column for %s: %s", key, s)
		}
	}
	for _, key := range multiColumnFields {
		list, ok := p[key].([]any)
		if !ok {
			continue
		}
		var bad []string
		for _, item := range list {
			if s, ok := item.(string); ok && !c.hasColumn(s) {
				bad = append(bad, s)
			}
		}
		if len(bad) > 0 {
			if len(bad) > maxReportedBadColumns {
				bad = append(bad[:maxReportedBadColumns], "...")
			}
			return fmt.Errorf("unknown %s columns: %s", key, strings.Join(bad, ", "))
		}
	}
	return nil
}

func (c *Controller) createFile(raw json.RawMessage) Result {
	var cmd struct {
		RelativePath string  `json:"relative_path"`
		Content      *string `json:"content"`
		Mode         string  `json:"mode"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failf("create_file requires relative_path (string) and content (string)")
	}
	if cmd.Content == nil {
		return failf("create_file requires content (string)")
	}
	mode := cmd.Mode
	if mode == "" {
		mode = "write"
	}
	if mode != "write" && mode != "append" {
		return failf("create_file mode must be write or append")
	}

	rel, abs, err := safeRelPath(c.root, cmd.RelativePath)
	if err != nil {
		return failf("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return failf("create directories: %v", err)
	}

	if mode == "append" {
		f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return failf("open file: %v", err)
		}
		_, werr := f.WriteString(*cmd.Content)
		cerr := f.Close()
		if werr != nil {
			return failf("append file: %v", werr)
		}
		if cerr != nil {
			return failf("close file: %v", cerr)
		}
	} else {
		if err := os.WriteFile(abs, []byte(*cmd.Content), 0o644); err != nil {
			return failf("write file: %v", err)
		}
	}
	c.logger.Info("file written", "path", rel, "mode", mode)
	return succeed("written", rel, "mode", mode)
}

// patchFile replaces all matches of an RE2 pattern across the whole file.
// Patterns are compiled with (?s) so . matches newlines; replacements use
// Go's $1/${name} expansion. Pattern and replacement are untrusted input.
func (c *Controller) patchFile(raw json.RawMessage) Result {
	var cmd struct {
		RelativePath string  `json:"relative_path"`
		Pattern      *string `json:"pattern"`
		Replacement  *string `json:"replacement"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failf("patch_file requires relative_path, pattern, replacement (strings)")
	}
	if cmd.Pattern == nil || cmd.Replacement == nil {
		return failf("patch_file requires pattern and replacement (strings)")
	}

	rel, abs, err := safeRelPath(c.root, cmd.RelativePath)
	if err != nil {
		return failf("%v", err)
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return failf("file not found: %s", rel)
	}
	if err != nil {
		return failf("read file: %v", err)
	}

	re, err := regexp.Compile("(?s)" + *cmd.Pattern)
	if err != nil {
		return failf("invalid pattern: %v", err)
	}
	patched := re.ReplaceAll(data, []byte(*cmd.Replacement))
	if err := os.WriteFile(abs, patched, 0o644); err != nil {
		return failf("write file: %v", err)
	}
	c.logger.Info("file patched", "path", rel)
	return succeed("patched", rel)
}

// requireName decodes and trims the shared name field of tab commands.
func requireName(raw json.RawMessage, action string) (string, Result) {
	var cmd struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return "", failf("%s requires name (string)", action)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return "", failf("%s requires name", action)
	}
	return name, Result{OK: true}
}
