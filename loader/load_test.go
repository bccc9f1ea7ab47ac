package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/cuke/core"
)

const featureSource = `Feature: Checkout

  Background:
    Given an empty cart

  @smoke
  Scenario: Cart with one item
    When I add an item costing 30
    Then the total is 30

  Scenario: Doc strings and tables
    Given the following items:
      | name   | cost |
      | widget | 30   |
    And the receipt template:
      """text/plain
      Total: {{.Total}}
      """
    Then the total is 30

  Scenario Outline: Totals
    When I add an item costing <cost>
    Then the total is <cost>

    Examples:
      | cost |
      | 10   |
      | 20   |
`

func parseTestFeature(t *testing.T) []core.Scenario {
	t.Helper()
	scenarios, err := ParseFeature("checkout.feature", strings.NewReader(featureSource))
	if err != nil {
		t.Fatalf("ParseFeature() error: %v", err)
	}
	return scenarios
}

func TestParseFeature_Scenarios(t *testing.T) {
	scenarios := parseTestFeature(t)

	// Two plain scenarios plus one pickle per outline example row.
	if len(scenarios) != 4 {
		t.Fatalf("scenarios = %d, want 4", len(scenarios))
	}

	first := scenarios[0]
	if first.Name != "Cart with one item" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.URI != "checkout.feature" {
		t.Errorf("URI = %q", first.URI)
	}
	if first.ID == "" {
		t.Error("ID is empty")
	}

	// Background steps are prepended to every scenario.
	if len(first.Steps) != 3 {
		t.Fatalf("steps = %d, want 3 (background + 2)", len(first.Steps))
	}
	if first.Steps[0].Text != "an empty cart" {
		t.Errorf("step[0] = %q, want the background step", first.Steps[0].Text)
	}
}

func TestParseFeature_TagsAlwaysPresent(t *testing.T) {
	scenarios := parseTestFeature(t)

	tagged := scenarios[0]
	if len(tagged.Tags) != 1 || tagged.Tags[0].Name != "@smoke" {
		t.Errorf("tags = %v, want [@smoke]", tagged.Tags)
	}

	// Untagged scenarios still carry a non-nil, empty slice.
	untagged := scenarios[1]
	if untagged.Tags == nil {
		t.Error("untagged scenario has nil Tags, want empty slice")
	}
	if len(untagged.Tags) != 0 {
		t.Errorf("untagged scenario tags = %v, want empty", untagged.Tags)
	}
}

func TestParseFeature_StepArguments(t *testing.T) {
	scenarios := parseTestFeature(t)
	sc := scenarios[1]

	table := sc.Steps[1].Argument
	if table == nil || table.Table == nil {
		t.Fatal("step[1] should carry a data table")
	}
	if len(table.Table.Rows) != 2 {
		t.Fatalf("table rows = %d, want 2", len(table.Table.Rows))
	}
	if got := table.Table.Rows[1].Cells; got[0] != "widget" || got[1] != "30" {
		t.Errorf("row[1] = %v", got)
	}

	doc := sc.Steps[2].Argument
	if doc == nil || doc.Doc == nil {
		t.Fatal("step[2] should carry a doc string")
	}
	if doc.Doc.MediaType != "text/plain" {
		t.Errorf("MediaType = %q", doc.Doc.MediaType)
	}
	if !strings.Contains(doc.Doc.Content, "Total:") {
		t.Errorf("Content = %q", doc.Doc.Content)
	}

	if sc.Steps[3].Argument != nil {
		t.Error("plain step should carry no argument")
	}
}

func TestParseFeature_OutlineLocations(t *testing.T) {
	scenarios := parseTestFeature(t)

	// Outline pickles point at their examples table row, so two pickles
	// from the same outline have distinct locations.
	row1 := scenarios[2]
	row2 := scenarios[3]
	if row1.Location.Line == 0 || row2.Location.Line == 0 {
		t.Fatalf("outline locations unresolved: %v, %v", row1.Location, row2.Location)
	}
	if row1.Location.Line == row2.Location.Line {
		t.Errorf("both outline pickles at line %d, want distinct rows", row1.Location.Line)
	}
	if row2.Location.Line != row1.Location.Line+1 {
		t.Errorf("rows at lines %d and %d, want adjacent", row1.Location.Line, row2.Location.Line)
	}

	// Outline placeholders are substituted in the pickled step text.
	if row1.Steps[1].Text != "I add an item costing 10" {
		t.Errorf("outline step = %q", row1.Steps[1].Text)
	}
}

func TestParseFeature_StepLocations(t *testing.T) {
	scenarios := parseTestFeature(t)
	first := scenarios[0]

	for i, st := range first.Steps {
		if st.Location.Path != "checkout.feature" {
			t.Errorf("step[%d].Location.Path = %q", i, st.Location.Path)
		}
		if st.Location.Line == 0 {
			t.Errorf("step[%d] has no line", i)
		}
	}
	// Background step location points at the background, before the
	// scenario's own steps.
	if first.Steps[0].Location.Line >= first.Steps[1].Location.Line {
		t.Errorf("background step at line %d, scenario step at %d",
			first.Steps[0].Location.Line, first.Steps[1].Location.Line)
	}
}

func TestParseFeature_Invalid(t *testing.T) {
	_, err := ParseFeature("broken.feature", strings.NewReader("@tag\nnot a feature header\n"))
	if err == nil {
		t.Error("ParseFeature() with invalid Gherkin should fail")
	}
}

func TestDiscoverFeatures(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(dir, "a.feature"),
		filepath.Join(sub, "b.feature"),
		filepath.Join(dir, "notes.txt"),
	} {
		if err := os.WriteFile(p, []byte("Feature: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := DiscoverFeatures([]string{dir})
	if err != nil {
		t.Fatalf("DiscoverFeatures() error: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("files = %v, want the two .feature entries", files)
	}

	// Explicit file paths pass through regardless of extension.
	files, err = DiscoverFeatures([]string{filepath.Join(dir, "notes.txt")})
	if err != nil {
		t.Fatalf("DiscoverFeatures() error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("files = %v, want the explicit path", files)
	}

	if _, err := DiscoverFeatures([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("DiscoverFeatures() with a missing path should fail")
	}
}
