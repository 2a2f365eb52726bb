// Package risk flags PII, PCI and secret material in scanned repositories.
package risk

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/scanner"
)

// Assessment risk flags for a piece of text
type Assessment struct {
	PII bool
	PCI bool
}

func (a Assessment) combine(o Assessment) Assessment {
	return Assessment{PII: a.PII || o.PII, PCI: a.PCI || o.PCI}
}

// LogInsight a log statement with its risk flags
type LogInsight struct {
	scanner.LogRecord
	PiiRisk bool
	PciRisk bool
}

// Finding a located match of sensitive-looking content
type Finding struct {
	Path     string
	Line     int
	Snippet  string
	Type     string
	Severity string
	RuleID   string
	Ignored  bool
}

// Result classifier output. Findings are sorted deterministically.
type Result struct {
	LogInsights []LogInsight
	Findings    []Finding
	Warnings    []string
}

// Classifier evaluates the pattern table against log statements and raw
// text content. It is safe for concurrent use.
type Classifier struct {
	rules          []compiledRule
	ignore         []*regexp.Regexp
	secretsEnabled bool
	maxFileBytes   int64
	problems       []string
	log            *zap.Logger
}

// New compiles the configured rules, falling back to DefaultRules. Invalid
// patterns are logged and dropped.
func New(cfg config.ScanConfig, log *zap.Logger) *Classifier {
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	c := &Classifier{
		secretsEnabled: cfg.Secrets.Enabled,
		maxFileBytes:   cfg.MaxFileBytes,
		log:            log,
	}
	if c.maxFileBytes <= 0 {
		c.maxFileBytes = scanner.DefaultMaxFileBytes
	}

	var ruleErrs, ignoreErrs []error
	c.rules, ruleErrs = compileRules(rules)
	c.ignore, ignoreErrs = compileIgnorePatterns(cfg.IgnorePatterns)
	for _, err := range append(ruleErrs, ignoreErrs...) {
		log.Warn("risk pattern dropped", zap.Error(err))
		c.problems = append(c.problems, err.Error())
	}
	return c
}

// Assess evaluates text against the pattern table.
func (c *Classifier) Assess(text string) Assessment {
	var a Assessment
	if strings.TrimSpace(text) == "" {
		return a
	}
	for _, r := range c.rules {
		if _, _, ok := r.locate(text); !ok {
			continue
		}
		switch r.typ {
		case model.FindingPII:
			a.PII = true
		case model.FindingPCI:
			a.PCI = true
		}
	}
	return a
}

// Classify flags log statements and scans every text file of the result.
// Unreadable files are skipped with a warning; only cancellation fails.
func (c *Classifier) Classify(ctx context.Context, scan *scanner.Result) (*Result, error) {
	out := &Result{
		LogInsights: make([]LogInsight, 0, len(scan.LogStatements)),
		Findings:    []Finding{},
		Warnings:    append([]string(nil), c.problems...),
	}

	for _, ls := range scan.LogStatements {
		a := c.Assess(ls.Message)
		for _, v := range ls.Variables {
			a = a.combine(c.Assess(v))
		}
		out.LogInsights = append(out.LogInsights, LogInsight{LogRecord: ls, PiiRisk: a.PII, PciRisk: a.PCI})
	}

	var secrets *secretDetector
	if c.secretsEnabled {
		d, err := newSecretDetector()
		if err != nil {
			c.log.Warn("secret detection disabled", zap.Error(err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("secret detection disabled: %v", err))
		} else {
			secrets = d
		}
	}

	for _, rel := range scan.TextFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		findings, err := c.scanFile(scan.Root, rel, secrets)
		if err != nil {
			c.log.Warn("risk scan skipped file", zap.String("path", rel), zap.Error(err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("risk scan skipped %s: %v", rel, err))
			continue
		}
		out.Findings = append(out.Findings, findings...)
	}

	sortFindings(out.Findings)
	return out, nil
}

func (c *Classifier) scanFile(root, rel string, secrets *secretDetector) ([]Finding, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > c.maxFileBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", c.maxFileBytes)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, nil
	}

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	secretsByLine := map[int][]secretHit{}
	if secrets != nil {
		for _, h := range secrets.detect(text, lines) {
			secretsByLine[h.Line] = append(secretsByLine[h.Line], h)
		}
	}

	var out []Finding
	for i, line := range lines {
		n := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}

		hits := secretsByLine[n]
		values := make([]string, 0, len(hits))
		for _, h := range hits {
			values = append(values, h.Secret)
		}
		cards := cardSpans(line)
		spans := append(secretSpans(line, values), cards...)
		ignored := c.ignored(rel, line)

		add := func(start, end int, typ, severity, ruleID string) {
			out = append(out, Finding{
				Path:     rel,
				Line:     n,
				Snippet:  snippet(line, start, end, spans),
				Type:     typ,
				Severity: severity,
				RuleID:   ruleID,
				Ignored:  ignored,
			})
		}

		for _, r := range c.rules {
			if start, end, ok := r.locate(line); ok {
				add(start, end, r.typ, r.severity, r.id)
			}
		}
		for _, sp := range cards {
			add(sp.start, sp.end, model.FindingPCI, model.SeverityHigh, cardRuleID)
		}
		for _, sp := range secretSpans(line, values) {
			add(sp.start, sp.end, model.FindingSecret, model.SeverityHigh, secretRuleID(hits, line[sp.start:sp.end]))
		}
	}
	return out, nil
}

func secretRuleID(hits []secretHit, secret string) string {
	for _, h := range hits {
		if h.Secret == secret {
			return h.RuleID
		}
	}
	return "secret"
}

func (c *Classifier) ignored(rel, line string) bool {
	for _, re := range c.ignore {
		if re.MatchString(rel) || re.MatchString(line) {
			return true
		}
	}
	return false
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Snippet < b.Snippet
	})
}
