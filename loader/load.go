// Package loader parses Gherkin feature sources and converts their
// compiled pickles into core scenarios. It is the boundary between the
// external parser's representation and the runner's data model; source
// locations are recovered by mapping pickle AST node ids back onto the
// parsed document.
package loader

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/petal-labs/cuke/core"
)

// LoadFeature parses one feature file into scenarios.
func LoadFeature(path string) ([]core.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer f.Close()
	return ParseFeature(path, f)
}

// ParseFeature parses Gherkin source into scenarios. uri is recorded as
// the scenarios' source path.
func ParseFeature(uri string, r io.Reader) ([]core.Scenario, error) {
	newID := (&messages.Incrementing{}).NewId

	doc, err := gherkin.ParseGherkinDocument(r, newID)
	if err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", uri, err)
	}

	pickles := gherkin.Pickles(*doc, uri, newID)
	locs := astLocations(uri, doc)

	scenarios := make([]core.Scenario, 0, len(pickles))
	for _, p := range pickles {
		scenarios = append(scenarios, convertPickle(p, uri, locs))
	}
	return scenarios, nil
}

// DiscoverFeatures expands the given paths into a list of feature files.
// Directories are walked recursively for "*.feature" entries; explicit
// file paths are passed through.
func DiscoverFeatures(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".feature") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("loader: walking %s: %w", p, err)
		}
	}
	return files, nil
}

// convertPickle maps one compiled pickle onto core.Scenario.
//
// Tags is populated explicitly even when the pickle carries none: the
// runner's contract is an always-present tag slice, with absence
// represented as empty rather than nil from a failed read.
func convertPickle(p *messages.Pickle, uri string, locs map[string]core.Location) core.Scenario {
	tags := make([]core.Tag, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, core.Tag{Name: t.Name})
	}

	steps := make([]core.Step, 0, len(p.Steps))
	for _, ps := range p.Steps {
		steps = append(steps, convertPickleStep(ps, uri, locs))
	}

	return core.Scenario{
		ID:       p.Id,
		Name:     p.Name,
		URI:      uri,
		Location: pickleLocation(p.AstNodeIds, uri, locs),
		Steps:    steps,
		Tags:     tags,
	}
}

func convertPickleStep(ps *messages.PickleStep, uri string, locs map[string]core.Location) core.Step {
	step := core.Step{
		Text:     ps.Text,
		Location: pickleLocation(ps.AstNodeIds, uri, locs),
	}

	if ps.Argument != nil {
		switch {
		case ps.Argument.DataTable != nil:
			rows := make([]core.DataTableRow, 0, len(ps.Argument.DataTable.Rows))
			for _, row := range ps.Argument.DataTable.Rows {
				cells := make([]string, 0, len(row.Cells))
				for _, c := range row.Cells {
					cells = append(cells, c.Value)
				}
				rows = append(rows, core.DataTableRow{Cells: cells})
			}
			step.Argument = core.NewTableArgument(rows)
		case ps.Argument.DocString != nil:
			step.Argument = core.NewDocStringArgument(
				ps.Argument.DocString.MediaType,
				ps.Argument.DocString.Content,
			)
		}
	}

	return step
}

// pickleLocation resolves an AST node id list to a source location.
// The last resolvable id wins: for scenario outlines that is the examples
// table row the pickle was derived from, not the outline itself.
func pickleLocation(astNodeIDs []string, uri string, locs map[string]core.Location) core.Location {
	loc := core.Location{Path: uri}
	for _, id := range astNodeIDs {
		if l, ok := locs[id]; ok {
			loc = l
		}
	}
	return loc
}

// astLocations indexes every location-bearing AST node of the document by
// id, so pickles can be tied back to feature file lines. The uri is taken
// from the caller: the parser leaves the document's own Uri field empty.
func astLocations(uri string, doc *messages.GherkinDocument) map[string]core.Location {
	locs := make(map[string]core.Location)
	if doc.Feature == nil {
		return locs
	}

	for _, child := range doc.Feature.Children {
		switch {
		case child.Scenario != nil:
			indexScenario(uri, child.Scenario, locs)
		case child.Background != nil:
			indexSteps(uri, child.Background.Id, child.Background.Location, child.Background.Steps, locs)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				switch {
				case rc.Scenario != nil:
					indexScenario(uri, rc.Scenario, locs)
				case rc.Background != nil:
					indexSteps(uri, rc.Background.Id, rc.Background.Location, rc.Background.Steps, locs)
				}
			}
		}
	}
	return locs
}

func indexScenario(uri string, sc *messages.Scenario, locs map[string]core.Location) {
	indexSteps(uri, sc.Id, sc.Location, sc.Steps, locs)
	for _, ex := range sc.Examples {
		if ex.TableHeader != nil {
			locs[ex.TableHeader.Id] = toLocation(uri, ex.TableHeader.Location)
		}
		for _, row := range ex.TableBody {
			locs[row.Id] = toLocation(uri, row.Location)
		}
	}
}

func indexSteps(uri, ownerID string, ownerLoc *messages.Location, steps []*messages.Step, locs map[string]core.Location) {
	locs[ownerID] = toLocation(uri, ownerLoc)
	for _, st := range steps {
		locs[st.Id] = toLocation(uri, st.Location)
	}
}

func toLocation(uri string, loc *messages.Location) core.Location {
	if loc == nil {
		return core.Location{Path: uri}
	}
	return core.Location{
		Path:   uri,
		Line:   int(loc.Line),
		Column: int(loc.Column),
	}
}
