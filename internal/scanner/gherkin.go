package scanner

import (
	"path"
	"strings"
)

// Scenario kinds
const (
	ScenarioPlain      = "SCENARIO"
	ScenarioOutline    = "SCENARIO_OUTLINE"
	ScenarioBackground = "BACKGROUND"
	ScenarioExamples   = "EXAMPLES"
)

var stepKeywords = []string{"given ", "when ", "then ", "and ", "but ", "* "}

// FeatureRecord a Gherkin .feature file.
type FeatureRecord struct {
	Path      string
	Title     string
	Scenarios []ScenarioRecord
}

type ScenarioRecord struct {
	Name  string
	Type  string
	Steps []string
}

// parseFeature reads Feature, Background, Scenario and Scenario Outline
// blocks. Steps, tables and doc string delimiters are kept verbatim. A file
// with neither a title nor a scenario yields nil.
func parseFeature(rel string, content []byte) *FeatureRecord {
	f := &FeatureRecord{Path: rel, Scenarios: []ScenarioRecord{}}
	var cur *ScenarioRecord

	flush := func() {
		if cur != nil && (cur.Name != "" || len(cur.Steps) > 0) {
			f.Scenarios = append(f.Scenarios, *cur)
		}
		cur = nil
	}
	start := func(name, typ string) {
		flush()
		cur = &ScenarioRecord{Name: name, Type: typ, Steps: []string{}}
	}

	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "feature:"):
			f.Title = afterColon(line)
		case strings.HasPrefix(lower, "background:"):
			start("Background", ScenarioBackground)
		case strings.HasPrefix(lower, "scenario outline:"), strings.HasPrefix(lower, "scenario template:"):
			start(afterColon(line), ScenarioOutline)
		case strings.HasPrefix(lower, "scenario:"), strings.HasPrefix(lower, "example:"):
			start(afterColon(line), ScenarioPlain)
		case strings.HasPrefix(lower, "examples:"), strings.HasPrefix(lower, "scenarios:"):
			if cur == nil {
				start("Examples", ScenarioExamples)
			}
			cur.Steps = append(cur.Steps, line)
		case isStep(lower), strings.HasPrefix(line, "|"):
			if cur == nil {
				start("Scenario", ScenarioPlain)
			}
			cur.Steps = append(cur.Steps, line)
		case strings.HasPrefix(line, `"""`), strings.HasPrefix(line, "```"):
			if cur != nil {
				cur.Steps = append(cur.Steps, line)
			}
		}
	}
	flush()

	if f.Title == "" && len(f.Scenarios) == 0 {
		return nil
	}
	if f.Title == "" {
		f.Title = strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	}
	return f
}

func isStep(lower string) bool {
	for _, k := range stepKeywords {
		if strings.HasPrefix(lower, k) {
			return true
		}
	}
	return false
}

func afterColon(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return ""
}
