package risk

import (
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// secretHit a credential reported by the gitleaks default rule set
type secretHit struct {
	RuleID      string
	Description string
	Line        int
	Secret      string
}

// secretDetector wraps a gitleaks detector. Detectors accumulate findings
// internally, so one is built per classification run.
type secretDetector struct {
	d *detect.Detector
}

func newSecretDetector() (*secretDetector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	return &secretDetector{d: d}, nil
}

// detect scans a whole file and maps every hit to a 1-based line of lines.
func (s *secretDetector) detect(content string, lines []string) []secretHit {
	findings := s.d.DetectString(content)
	out := make([]secretHit, 0, len(findings))
	for _, f := range findings {
		// multi-line secrets are located and redacted by their first line
		secret, _, _ := strings.Cut(f.Secret, "\n")
		if strings.TrimSpace(secret) == "" {
			continue
		}
		line := lineOf(lines, secret, f.StartLine)
		if line == 0 {
			continue
		}
		out = append(out, secretHit{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        line,
			Secret:      secret,
		})
	}
	return out
}

// lineOf finds the line holding secret, trying the reported line first.
func lineOf(lines []string, secret string, hint int) int {
	for _, n := range []int{hint + 1, hint} {
		if n >= 1 && n <= len(lines) && strings.Contains(lines[n-1], secret) {
			return n
		}
	}
	for i, l := range lines {
		if strings.Contains(l, secret) {
			return i + 1
		}
	}
	return 0
}
