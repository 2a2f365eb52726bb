package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestJobFinished(t *testing.T) {
	before := testutil.ToFloat64(jobsFinished.WithLabelValues("SUCCEEDED"))

	JobFinished("SUCCEEDED", 3*time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(jobsFinished.WithLabelValues("SUCCEEDED")))
}

func TestFindings(t *testing.T) {
	pii := testutil.ToFloat64(findings.WithLabelValues("PII"))
	pci := testutil.ToFloat64(findings.WithLabelValues("PCI"))

	Findings(map[string]int{"PII": 3, "PCI": 1})

	assert.Equal(t, pii+3, testutil.ToFloat64(findings.WithLabelValues("PII")))
	assert.Equal(t, pci+1, testutil.ToFloat64(findings.WithLabelValues("PCI")))
}

func TestWorkspacesSwept_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(workspacesSwept)

	WorkspacesSwept(0)
	WorkspacesSwept(2)

	assert.Equal(t, before+2, testutil.ToFloat64(workspacesSwept))
}
