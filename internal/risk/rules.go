package risk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/model"
)

const (
	defaultType     = "UNKNOWN"
	defaultSeverity = model.SeverityLow

	cardRuleID = "pci-card-number"
)

// DefaultRules pattern table used when scan.rules is empty.
func DefaultRules() []config.RiskRule {
	return []config.RiskRule{
		{ID: "pii-ssn", Regex: `\b\d{3}-\d{2}-\d{4}\b`, Type: model.FindingPII, Severity: model.SeverityHigh},
		{ID: "pii-ssn-name", Regex: nameFragment("ssn") + `|social.?security`, Type: model.FindingPII, Severity: model.SeverityMedium},
		{ID: "pii-email", Regex: `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`, Type: model.FindingPII, Severity: model.SeverityMedium},
		{ID: "pii-phone", Regex: `phone|mobile.?(?:number|no)|` + nameFragment("mobile"), Type: model.FindingPII, Severity: model.SeverityLow},
		{ID: "pii-birth-date", Regex: `date.?of.?birth|birth.?date|` + nameFragment("dob"), Type: model.FindingPII, Severity: model.SeverityMedium},
		{ID: "pii-passport", Keyword: "passport", Type: model.FindingPII, Severity: model.SeverityHigh},
		{ID: "pii-national-id", Regex: `national.?id|tax.?id`, Type: model.FindingPII, Severity: model.SeverityHigh},
		{ID: "pci-card-name", Regex: `card.?number|credit.?card|` + nameFragment("pan"), Type: model.FindingPCI, Severity: model.SeverityHigh},
		{ID: "pci-cvv", Regex: nameFragment("cvv", "cvc") + `|card.?security.?code`, Type: model.FindingPCI, Severity: model.SeverityHigh},
		{ID: "pci-card-expiry", Regex: `card.?expir|expiry.?date|expiration.?date`, Type: model.FindingPCI, Severity: model.SeverityMedium},
		{ID: "pci-iban", Keyword: "iban", Type: model.FindingPCI, Severity: model.SeverityMedium},
	}
}

// nameFragment matches short abbreviations as a whole word or as one part
// of a camelCase or snake_case name: ssn, customerSsn, ssnValue, USER_SSN.
// Lowercase runs inside a longer word (className, company) do not match.
func nameFragment(frags ...string) string {
	alts := make([]string, 0, 2*len(frags))
	for _, f := range frags {
		lower := strings.ToLower(f)
		title := strings.ToUpper(lower[:1]) + lower[1:]
		upper := strings.ToUpper(lower)
		alts = append(alts,
			`(?:^|[^A-Za-z])(?:`+lower+`|`+title+`|`+upper+`)`,
			`[a-z0-9](?:`+title+`|`+upper+`)`)
	}
	return `(?-i:(?:` + strings.Join(alts, "|") + `)(?:$|[^a-z]))`
}

// ClassificationError a rule or ignore pattern that could not be compiled.
// It never fails a run; the offending entry is dropped.
type ClassificationError struct {
	RuleID  string
	Pattern string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("rule %s: invalid pattern %q: %v", e.RuleID, e.Pattern, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

type compiledRule struct {
	id       string
	pattern  string
	keyword  *regexp.Regexp
	re       *regexp.Regexp
	typ      string
	severity string
}

func compileRules(rules []config.RiskRule) ([]compiledRule, []error) {
	var (
		out  []compiledRule
		errs []error
	)
	for i, r := range rules {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			id = fmt.Sprintf("rule-%d", i+1)
		}
		keyword := strings.TrimSpace(r.Keyword)
		expr := strings.TrimSpace(r.Regex)
		if keyword == "" && expr == "" {
			continue
		}

		cr := compiledRule{
			id:       id,
			pattern:  expr,
			typ:      strings.ToUpper(strings.TrimSpace(r.Type)),
			severity: strings.ToUpper(strings.TrimSpace(r.Severity)),
		}
		if cr.typ == "" {
			cr.typ = defaultType
		}
		if cr.severity == "" {
			cr.severity = defaultSeverity
		}
		if cr.pattern == "" {
			cr.pattern = keyword
		}
		if keyword != "" {
			cr.keyword = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword))
		}
		if expr != "" {
			re, err := regexp.Compile(`(?i)` + expr)
			if err != nil {
				errs = append(errs, &ClassificationError{RuleID: id, Pattern: expr, Err: err})
				continue
			}
			cr.re = re
		}
		out = append(out, cr)
	}
	return out, errs
}

// RuleInfo describes one active rule.
type RuleInfo struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Pattern  string `json:"pattern"`
}

// Rules lists the rules that compiled, plus the problems of those that did not.
func (c *Classifier) Rules() ([]RuleInfo, []string) {
	out := make([]RuleInfo, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, RuleInfo{ID: r.id, Type: r.typ, Severity: r.severity, Pattern: r.pattern})
	}
	return out, append([]string(nil), c.problems...)
}

// locate returns the byte span that confirms the rule on text. The regex
// span wins over the keyword span when both are configured.
func (r compiledRule) locate(text string) (int, int, bool) {
	var loc []int
	if r.keyword != nil {
		if loc = r.keyword.FindStringIndex(text); loc == nil {
			return 0, 0, false
		}
	}
	if r.re != nil {
		if loc = r.re.FindStringIndex(text); loc == nil {
			return 0, 0, false
		}
	}
	return loc[0], loc[1], true
}

func compileIgnorePatterns(patterns []string) ([]*regexp.Regexp, []error) {
	var (
		out  []*regexp.Regexp
		errs []error
	)
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			errs = append(errs, &ClassificationError{RuleID: "ignore", Pattern: p, Err: err})
			continue
		}
		out = append(out, re)
	}
	return out, errs
}
