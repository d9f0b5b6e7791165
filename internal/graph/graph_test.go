package graph

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dagster-io/skills/internal/links"
	"github.com/dagster-io/skills/internal/models"
	"github.com/dagster-io/skills/internal/reach"
	"github.com/dagster-io/skills/internal/skill"
	"github.com/dagster-io/skills/internal/storage"
	"github.com/dagster-io/skills/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "skillindex-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	now := time.Now()
	docs := []DocumentRow{
		{Document: models.Document{Path: "SKILL.md", Checksum: "1", Reachable: true, UpdatedAt: now}},
		{Document: models.Document{Path: "references/a.md", Description: "Assets", Triggers: []string{"assets"}, Checksum: "2", Reachable: true, UpdatedAt: now}, Body: "materialize uniqueword"},
		{Document: models.Document{Path: "references/z.md", Description: "Orphan", Checksum: "3", UpdatedAt: now}, Body: "nobody links here"},
	}
	edges := []models.Link{
		{Source: "SKILL.md", Line: 3, Raw: "./references/a.md", Target: "references/a.md", Exists: true},
		{Source: "references/a.md", Line: 7, Raw: "./gone.md", Target: "references/gone.md"},
	}
	if err := db.ReplaceSkill("demo", docs, edges); err != nil {
		t.Fatalf("ReplaceSkill: %v", err)
	}
}

func TestReplaceSkillAndQueries(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	docs, err := db.Documents("demo")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 3 || docs[1].Path != "references/a.md" || docs[1].Triggers[0] != "assets" {
		t.Fatalf("documents = %+v", docs)
	}

	bl, err := db.Backlinks("demo", "references/a.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].Source != "SKILL.md" || bl[0].Line != 3 {
		t.Errorf("backlinks = %+v", bl)
	}

	broken, err := db.BrokenLinks("demo")
	if err != nil {
		t.Fatalf("BrokenLinks: %v", err)
	}
	if len(broken) != 1 || broken[0].Target != "references/gone.md" {
		t.Errorf("broken = %+v", broken)
	}

	orphans, err := db.Unreachable("demo")
	if err != nil {
		t.Fatalf("Unreachable: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != "references/z.md" {
		t.Errorf("unreachable = %v", orphans)
	}
}

func TestReplaceSkillDropsOldRows(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	if err := db.ReplaceSkill("demo", []DocumentRow{{Document: models.Document{Path: "SKILL.md", Checksum: "9"}}}, nil); err != nil {
		t.Fatalf("ReplaceSkill: %v", err)
	}
	cs, _ := db.Checksums("demo")
	if len(cs) != 1 || cs["SKILL.md"] != "9" {
		t.Errorf("checksums = %v", cs)
	}
	bl, _ := db.Backlinks("demo", "references/a.md")
	if len(bl) != 0 {
		t.Error("old links should be removed on replace")
	}
}

func TestSkillsAreIsolated(t *testing.T) {
	db := testDB(t)
	seed(t, db)
	if err := db.ReplaceSkill("other", []DocumentRow{{Document: models.Document{Path: "SKILL.md", Checksum: "x"}}}, nil); err != nil {
		t.Fatal(err)
	}
	docs, _ := db.Documents("demo")
	if len(docs) != 3 {
		t.Errorf("demo documents = %d after writing another skill", len(docs))
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	seed(t, db)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "references/a.md" || results[0].Skill != "demo" {
		t.Errorf("search results = %+v, want 1 hit for references/a.md", results)
	}
}

func TestSync(t *testing.T) {
	root := testutil.WriteTree(t, map[string]string{
		"SKILL.md":           "# Demo\n\n[a](./references/a.md)\n",
		"references/a.md":    testutil.Ref("Assets", "assets") + "\nSee [missing](./missing.md).\n",
		"references/z.md":    testutil.Ref("Orphan", "orphan"),
		"references/fig.png": "png",
	})
	s, err := skill.Open(root, skill.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	analyzer := reach.NewAnalyzer(links.New("INDEX.md", true), nil)
	logger := slog.New(slog.DiscardHandler)
	db := testDB(t)

	changed, err := Sync(db, s, store, analyzer, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !changed {
		t.Error("first sync should index the tree")
	}

	docs, _ := db.Documents(s.Name)
	if len(docs) != 4 {
		t.Fatalf("documents = %+v", docs)
	}
	for _, d := range docs {
		if d.Path == "references/a.md" && (d.Description != "Assets" || !d.Reachable) {
			t.Errorf("a.md row = %+v", d)
		}
	}
	orphans, _ := db.Unreachable(s.Name)
	if len(orphans) != 2 || orphans[0] != "references/fig.png" || orphans[1] != "references/z.md" {
		t.Errorf("unreachable = %v", orphans)
	}
	broken, _ := db.BrokenLinks(s.Name)
	if len(broken) != 1 || broken[0].Target != "references/missing.md" {
		t.Errorf("broken = %+v", broken)
	}

	changed, err = Sync(db, s, store, analyzer, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if changed {
		t.Error("second sync of an unchanged tree should be a no-op")
	}

	testutil.AddFiles(t, root, map[string]string{"SKILL.md": "# Demo\n\n[a](./references/a.md)\n[z](./references/z.md)\n"})
	changed, err = Sync(db, s, store, analyzer, logger)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !changed {
		t.Error("sync after an edit should reindex")
	}
	orphans, _ = db.Unreachable(s.Name)
	if len(orphans) != 1 || orphans[0] != "references/fig.png" {
		t.Errorf("unreachable after edit = %v", orphans)
	}
}
