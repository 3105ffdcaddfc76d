package artifact

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const entityArtifact = `{
  "noi_quy_lao_dong": {
    "source_file": "noi_quy_lao_dong.md",
    "entity_count": 2,
    "entities": [
      {"class": "LeavePolicy", "text": "12 ngày phép/năm",
       "attributes": {"rule_type": "annual_leave_entitlement", "days": "12"}},
      {"class": "Probation", "text": "thử việc 2 tháng",
       "attributes": {"rule_type": "probation_duration"}, "start_pos": 10, "end_pos": 40}
    ]
  },
  "quy_che_luong": {"source_file": "quy_che_luong.md", "entity_count": 0, "entities": []}
}`

func TestEntityStoreLoadsArtifact(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "entities.json", entityArtifact)

	store, err := NewEntityStore(path)
	if err != nil {
		t.Fatalf("new entity store: %v", err)
	}
	if store.Empty() {
		t.Fatal("store must not be empty")
	}
	records := store.Entities()["noi_quy_lao_dong"]
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Class != "LeavePolicy" {
		t.Errorf("class = %q", records[0].Class)
	}
	if rt, _ := records[0].Attributes.Get("rule_type"); rt != "annual_leave_entitlement" {
		t.Errorf("rule_type = %q", rt)
	}
	if records[1].StartPos == nil || *records[1].StartPos != 10 {
		t.Errorf("start_pos = %v", records[1].StartPos)
	}
	// Documents without entities are dropped rather than indexed empty.
	if _, ok := store.Entities()["quy_che_luong"]; ok {
		t.Error("empty document must not be indexed")
	}
	if store.EntityCount() != 2 {
		t.Errorf("entity count = %d", store.EntityCount())
	}
}

func TestEntityStoreMissingArtifactIsEmpty(t *testing.T) {
	store, err := NewEntityStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing artifact must not fail: %v", err)
	}
	if !store.Empty() {
		t.Error("store must be empty")
	}
}

func TestEntityStoreMalformedArtifactFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "entities.json", "{not json")
	if _, err := NewEntityStore(path); err == nil {
		t.Fatal("expected decode error")
	}
}

const treeArtifact = `{
  "doc_name": "Nội quy lao động",
  "doc_description": "Quy định nội bộ về lao động",
  "structure": [
    {"title": "Chương II", "node_id": "0002", "prefix_summary": "Thời giờ làm việc",
     "nodes": [
       {"title": "Điều 5. Nghỉ phép năm", "node_id": "0005",
        "summary": "Quy định ngày phép", "text": "Người lao động được nghỉ 12 ngày phép/năm."}
     ]}
  ]
}`

func TestTreeStoreLoadsForest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "noi_quy_tree.json", treeArtifact)

	store, err := NewTreeStore(dir, discardLogger())
	if err != nil {
		t.Fatalf("new tree store: %v", err)
	}
	tree, ok := store.Trees()["noi_quy"]
	if !ok {
		t.Fatal("doc id must come from the file name")
	}
	if tree.Name != "Nội quy lao động" {
		t.Errorf("name = %q", tree.Name)
	}
	// prefix_summary backfills a missing summary.
	if tree.Structure[0].Summary != "Thời giờ làm việc" {
		t.Errorf("summary = %q", tree.Structure[0].Summary)
	}

	node, ok := store.Node("noi_quy", "0005")
	if !ok {
		t.Fatal("flat node lookup failed")
	}
	if node.Text == "" {
		t.Error("node text missing")
	}
	if _, ok := store.Node("noi_quy", "9999"); ok {
		t.Error("unknown node must not resolve")
	}
	if store.NodeCount() != 2 {
		t.Errorf("node count = %d", store.NodeCount())
	}
}

func TestTreeStoreSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good_tree.json", treeArtifact)
	writeFile(t, dir, "bad_tree.json", "{broken")
	writeFile(t, dir, "dup_tree.json", `{
  "doc_name": "d", "structure": [
    {"title": "a", "node_id": "0001"},
    {"title": "b", "node_id": "0001"}
  ]}`)

	store, err := NewTreeStore(dir, discardLogger())
	if err != nil {
		t.Fatalf("new tree store: %v", err)
	}
	if len(store.Trees()) != 1 {
		t.Errorf("trees = %d, want only the valid file", len(store.Trees()))
	}
}

func TestTreeStoreMissingDirIsEmpty(t *testing.T) {
	store, err := NewTreeStore(filepath.Join(t.TempDir(), "absent"), discardLogger())
	if err != nil {
		t.Fatalf("missing dir must not fail: %v", err)
	}
	if !store.Empty() {
		t.Error("store must be empty")
	}
}

func TestReloadSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "entities.json", `{}`)
	store, err := NewEntityStore(path)
	if err != nil {
		t.Fatalf("new entity store: %v", err)
	}
	if !store.Empty() {
		t.Fatal("store must start empty")
	}

	writeFile(t, dir, "entities.json", entityArtifact)
	stores := NewStores(discardLogger(), store)
	stores.ReloadAll()

	if store.Empty() {
		t.Error("reload must pick up the new artifact")
	}
}

func TestLoadTriggers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "triggers.yaml", `
- trigger: "phép"
  rule_type: "annual_leave"
- trigger: "vay"
  rule_type: "loan"
`)
	rules, err := LoadTriggers(path)
	if err != nil {
		t.Fatalf("load triggers: %v", err)
	}
	if len(rules) != 2 || rules[0].Trigger != "phép" || rules[1].RuleType != "loan" {
		t.Errorf("rules = %+v", rules)
	}

	fallback, err := LoadTriggers(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("missing table must fall back: %v", err)
	}
	if len(fallback) == 0 {
		t.Error("default trigger table is empty")
	}

	if _, err := LoadTriggers(writeFile(t, dir, "bad.yaml", `- trigger: ""`)); err == nil {
		t.Error("incomplete entry must fail")
	}
}
