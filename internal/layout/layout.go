// Package layout holds the persisted dashboard layout document and its store.
//
// The layout is the single mutable document of a project: an ordered list of
// tabs, each carrying filter tags and panel specifications, plus a free-form
// sidebar section that only the rendering layer interprets.
package layout

import (
	"encoding/json"
	"strings"
)

// DefaultTabName is the tab synthesized when a document has no valid tabs.
const DefaultTabName = "Overview"

// Panel is a panel specification. The controller treats it as opaque apart
// from its type and column-referencing fields; unknown keys round-trip
// unchanged so the rendering layer can evolve independently.
type Panel map[string]any

// Tab groups panels under a named dashboard tab. Name is the identity key;
// there is no separate id.
type Tab struct {
	Name    string   `json:"name"`
	Filters []string `json:"filters"`
	Panels  []Panel  `json:"panels"`
}

// Document is the sole persisted state: ordered tabs plus sidebar options
// consumed only by the rendering layer.
type Document struct {
	Tabs    []Tab          `json:"tabs"`
	Sidebar map[string]any `json:"sidebar"`
}

// DefaultDocument returns the single-tab document used when nothing has been
// persisted yet.
func DefaultDocument() *Document {
	return &Document{
		Tabs:    []Tab{NewTab(DefaultTabName)},
		Sidebar: map[string]any{},
	}
}

// NewTab returns an empty tab with the given name.
func NewTab(name string) Tab {
	return Tab{Name: name, Filters: []string{}, Panels: []Panel{}}
}

// FindTab returns a pointer to the first tab with the given name, or nil.
// The pointer stays valid until Tabs is reallocated.
func (d *Document) FindTab(name string) *Tab {
	for i := range d.Tabs {
		if d.Tabs[i].Name == name {
			return &d.Tabs[i]
		}
	}
	return nil
}

// TabNames returns the tab names in display order.
func (d *Document) TabNames() []string {
	names := make([]string, 0, len(d.Tabs))
	for _, t := range d.Tabs {
		names = append(names, t.Name)
	}
	return names
}

// Normalize enforces the document invariants in place: trimmed non-empty tab
// names, non-nil filters/panels/sidebar, and at least one tab. Normalize is
// idempotent, so save/load round-trips documents that already satisfy the
// invariants.
func (d *Document) Normalize() *Document {
	tabs := make([]Tab, 0, len(d.Tabs))
	for _, t := range d.Tabs {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		t.Name = name
		if t.Filters == nil {
			t.Filters = []string{}
		}
		if t.Panels == nil {
			t.Panels = []Panel{}
		}
		tabs = append(tabs, t)
	}
	if len(tabs) == 0 {
		tabs = []Tab{NewTab(DefaultTabName)}
	}
	d.Tabs = tabs
	if d.Sidebar == nil {
		d.Sidebar = map[string]any{}
	}
	return d
}

// Decode parses a persisted document tolerantly and normalizes it. Malformed
// tab entries are dropped, malformed filters/panels lists coerce to empty, and
// a missing or malformed tabs list coerces to the default single tab. Only a
// top-level value that is not a JSON object is an error.
func Decode(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &Document{Tabs: []Tab{}, Sidebar: map[string]any{}}

	var tabsRaw []json.RawMessage
	if r, ok := raw["tabs"]; ok {
		// A non-list tabs value is treated the same as a missing one.
		_ = json.Unmarshal(r, &tabsRaw)
	}
	for _, tr := range tabsRaw {
		if t, ok := decodeTab(tr); ok {
			doc.Tabs = append(doc.Tabs, t)
		}
	}

	if r, ok := raw["sidebar"]; ok {
		var sidebar map[string]any
		if err := json.Unmarshal(r, &sidebar); err == nil && sidebar != nil {
			doc.Sidebar = sidebar
		}
	}

	return doc.Normalize(), nil
}

// decodeTab decodes one tab entry field by field so that a bad filters or
// panels value degrades to empty instead of discarding the tab. Entries that
// are not objects or lack a string name are dropped entirely.
func decodeTab(data json.RawMessage) (Tab, bool) {
	var fields struct {
		Name    json.RawMessage `json:"name"`
		Filters json.RawMessage `json:"filters"`
		Panels  json.RawMessage `json:"panels"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Tab{}, false
	}

	var name string
	if err := json.Unmarshal(fields.Name, &name); err != nil {
		return Tab{}, false
	}

	t := NewTab(name)
	if fields.Filters != nil {
		var filters []string
		if err := json.Unmarshal(fields.Filters, &filters); err == nil && filters != nil {
			t.Filters = filters
		}
	}
	if fields.Panels != nil {
		var panels []Panel
		if err := json.Unmarshal(fields.Panels, &panels); err == nil && panels != nil {
			t.Panels = panels
		}
	}
	return t, true
}

// Encode renders the document as indented JSON, the on-disk format shared by
// the live layout and its backups.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
