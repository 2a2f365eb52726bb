package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringArray JSON-encoded string list column
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringArray) Scan(value interface{}) error {
	return scanJSON(value, s, func() { *s = StringArray{} })
}

// SpecArtifact ties an endpoint to a fragment of a discovered spec document.
type SpecArtifact struct {
	Name      string `json:"name"`
	Type      string `json:"type"` // OPENAPI, WSDL, XSD
	Reference string `json:"reference,omitempty"`
}

type SpecArtifacts []SpecArtifact

func (a SpecArtifacts) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *SpecArtifacts) Scan(value interface{}) error {
	return scanJSON(value, a, func() { *a = SpecArtifacts{} })
}

func scanJSON(value interface{}, dst interface{}, empty func()) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		empty()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
	if len(data) == 0 {
		empty()
		return nil
	}
	return json.Unmarshal(data, dst)
}

// Stereotypes
const (
	StereotypeController = "CONTROLLER"
	StereotypeService    = "SERVICE"
	StereotypeRepository = "REPOSITORY"
	StereotypeEntity     = "ENTITY"
	StereotypeConfig     = "CONFIG"
	StereotypeUtility    = "UTILITY"
	StereotypeTest       = "TEST"
	StereotypePlain      = "PLAIN"
)

// Source sets
const (
	SourceSetMain = "MAIN"
	SourceSetTest = "TEST"
)

// Endpoint protocols
const (
	ProtocolHTTP      = "HTTP"
	ProtocolSOAP      = "SOAP"
	ProtocolMessaging = "MESSAGING"
	ProtocolScheduled = "SCHEDULED"
)

// Finding types and severities
const (
	FindingPII    = "PII"
	FindingPCI    = "PCI"
	FindingSecret = "SECRET"

	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

type ClassMetadata struct {
	ID           int64       `gorm:"primaryKey" json:"id"`
	ProjectID    int64       `gorm:"not null;index" json:"project_id"`
	FQN          string      `gorm:"column:fqn;size:500;not null" json:"fqn"`
	PackageName  string      `gorm:"size:300" json:"package_name"`
	ClassName    string      `gorm:"size:200;not null" json:"class_name"`
	Stereotype   string      `gorm:"size:20;not null" json:"stereotype"`
	SourceSet    string      `gorm:"size:10;not null" json:"source_set"`
	RelativePath string      `gorm:"size:500" json:"relative_path"`
	UserCode     bool        `gorm:"not null" json:"user_code"`
	Annotations  StringArray `gorm:"type:text" json:"annotations"`
	Interfaces   StringArray `gorm:"type:text" json:"interfaces"`
}

func (ClassMetadata) TableName() string {
	return "class_metadata"
}

type ApiEndpoint struct {
	ID               int64         `gorm:"primaryKey" json:"id"`
	ProjectID        int64         `gorm:"not null;index" json:"project_id"`
	Protocol         string        `gorm:"size:20;not null" json:"protocol"`
	HTTPMethod       string        `gorm:"column:http_method;size:10" json:"http_method,omitempty"`
	PathOrOperation  string        `gorm:"size:500" json:"path_or_operation"`
	ControllerClass  string        `gorm:"size:500" json:"controller_class"`
	ControllerMethod string        `gorm:"size:200" json:"controller_method"`
	SpecArtifacts    SpecArtifacts `gorm:"type:text" json:"spec_artifacts,omitempty"`
}

func (ApiEndpoint) TableName() string {
	return "api_endpoints"
}

type LogStatement struct {
	ID              int64       `gorm:"primaryKey" json:"id"`
	ProjectID       int64       `gorm:"not null;index" json:"project_id"`
	ClassName       string      `gorm:"size:500" json:"class_name"`
	FilePath        string      `gorm:"size:500" json:"file_path"`
	LogLevel        string      `gorm:"size:10" json:"log_level"`
	LineNumber      *int        `json:"line_number,omitempty"`
	MessageTemplate string      `gorm:"type:text" json:"message_template"`
	Variables       StringArray `gorm:"type:text" json:"variables"`
	PiiRisk         bool        `gorm:"not null" json:"pii_risk"`
	PciRisk         bool        `gorm:"not null" json:"pci_risk"`
}

func (LogStatement) TableName() string {
	return "log_statements"
}

type PiiPciFinding struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	ProjectID  int64  `gorm:"not null;index" json:"project_id"`
	FilePath   string `gorm:"size:500" json:"file_path"`
	LineNumber int    `json:"line_number"`
	Snippet    string `gorm:"size:500" json:"snippet"`
	MatchType  string `gorm:"size:20;not null" json:"match_type"`
	Severity   string `gorm:"size:10;not null" json:"severity"`
	RuleID     string `gorm:"size:100" json:"rule_id,omitempty"`
	Ignored    bool   `gorm:"not null;default:false" json:"ignored"`
}

func (PiiPciFinding) TableName() string {
	return "pii_pci_findings"
}
