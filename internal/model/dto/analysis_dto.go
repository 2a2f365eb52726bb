package dto

import "time"

// SubmitAnalysisRequest POST /api/v1/analyses
type SubmitAnalysisRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
	// Branch empty means the remote's default branch
	Branch string `json:"branch"`
}

// SubmitAnalysisResponse returned immediately after enqueue
type SubmitAnalysisResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse GET /api/v1/analyses/jobs/:id
type JobStatusResponse struct {
	JobID          string     `json:"job_id"`
	RepoURL        string     `json:"repo_url"`
	BranchName     string     `json:"branch_name,omitempty"`
	Status         string     `json:"status"`
	StatusMessage  string     `json:"status_message,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ProjectID      *int64     `json:"project_id,omitempty"`
	CommitHash     string     `json:"commit_hash,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

// UpdateFindingRequest PATCH /api/v1/projects/:id/findings/:findingId
type UpdateFindingRequest struct {
	Ignored *bool `json:"ignored" binding:"required"`
}

// ParsedDataResponse the assembled result of one successful run.
type ParsedDataResponse struct {
	ProjectID      int64                  `json:"project_id"`
	ProjectName    string                 `json:"project_name"`
	RepoURL        string                 `json:"repo_url"`
	CommitHash     string                 `json:"commit_hash,omitempty"`
	BranchName     string                 `json:"branch_name,omitempty"`
	AnalyzedAt     time.Time              `json:"analyzed_at"`
	BuildInfo      BuildInfo              `json:"build_info"`
	Classes        []ClassMetadataSummary `json:"classes"`
	Endpoints      []ApiEndpointSummary   `json:"endpoints"`
	MetadataDump   MetadataDump           `json:"metadata_dump"`
	DBAnalysis     DBAnalysisSummary      `json:"db_analysis"`
	Assets         AssetInventory         `json:"assets"`
	Features       []GherkinFeature       `json:"gherkin_features"`
	LoggerInsights []LoggerInsight        `json:"logger_insights"`
	Findings       []FindingSummary       `json:"findings"`
	Warnings       []string               `json:"warnings"`
	Stats          ScanStats              `json:"stats"`
}

// BuildInfo empty fields mean no build descriptor provided them.
type BuildInfo struct {
	Tool        string   `json:"tool,omitempty"` // maven, gradle
	GroupID     string   `json:"group_id,omitempty"`
	ArtifactID  string   `json:"artifact_id,omitempty"`
	Version     string   `json:"version,omitempty"`
	JavaVersion string   `json:"java_version,omitempty"`
	Modules     []string `json:"modules,omitempty"`
}

type ClassMetadataSummary struct {
	FQN          string   `json:"fqn"`
	PackageName  string   `json:"package_name"`
	ClassName    string   `json:"class_name"`
	Stereotype   string   `json:"stereotype"`
	SourceSet    string   `json:"source_set"`
	RelativePath string   `json:"relative_path"`
	UserCode     bool     `json:"user_code"`
	Annotations  []string `json:"annotations"`
	Interfaces   []string `json:"interfaces"`
}

type ApiEndpointSummary struct {
	Protocol         string            `json:"protocol"`
	HTTPMethod       string            `json:"http_method,omitempty"`
	PathOrOperation  string            `json:"path_or_operation"`
	ControllerClass  string            `json:"controller_class"`
	ControllerMethod string            `json:"controller_method"`
	SpecArtifacts    []ApiSpecArtifact `json:"spec_artifacts,omitempty"`
}

type ApiSpecArtifact struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Reference string `json:"reference,omitempty"`
}

// MetadataDump spec documents discovered in the tree.
type MetadataDump struct {
	OpenAPISpecs  []SpecDocument `json:"openapi_specs"`
	WSDLDocuments []SpecDocument `json:"wsdl_documents"`
	XSDDocuments  []SpecDocument `json:"xsd_documents"`
	SOAPServices  []string       `json:"soap_services"`
}

type SpecDocument struct {
	FileName   string   `json:"file_name"`
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Version    string   `json:"version,omitempty"`
	Operations []string `json:"operations,omitempty"`
	Content    string   `json:"content,omitempty"`
}

// DBAnalysisSummary persistent entities and the repositories using them.
type DBAnalysisSummary struct {
	Entities          []DBEntitySummary         `json:"entities"`
	ClassesByEntity   map[string][]string       `json:"classes_by_entity"`
	OperationsByClass map[string][]DaoOperation `json:"operations_by_class"`
}

type DBEntitySummary struct {
	EntityName    string                `json:"entity_name"`
	FQN           string                `json:"fqn"`
	TableName     string                `json:"table_name"`
	PrimaryKeys   []string              `json:"primary_keys"`
	Fields        []EntityFieldSummary  `json:"fields"`
	Relationships []RelationshipSummary `json:"relationships"`
}

type EntityFieldSummary struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ColumnName string `json:"column_name,omitempty"`
}

type RelationshipSummary struct {
	FieldName        string `json:"field_name"`
	TargetType       string `json:"target_type"`
	RelationshipType string `json:"relationship_type"`
}

type DaoOperation struct {
	MethodName    string `json:"method_name"`
	OperationType string `json:"operation_type"`
	Target        string `json:"target,omitempty"`
	QuerySnippet  string `json:"query_snippet,omitempty"`
}

// AssetInventory image files shipped with the project.
type AssetInventory struct {
	Images []ImageAsset `json:"images"`
}

type ImageAsset struct {
	FileName     string `json:"file_name"`
	RelativePath string `json:"relative_path"`
	SizeBytes    int64  `json:"size_bytes"`
	SHA256       string `json:"sha256"`
}

type GherkinFeature struct {
	FeatureFile  string            `json:"feature_file"`
	FeatureTitle string            `json:"feature_title"`
	Scenarios    []GherkinScenario `json:"scenarios"`
}

type GherkinScenario struct {
	Name         string   `json:"name"`
	ScenarioType string   `json:"scenario_type"`
	Steps        []string `json:"steps"`
}

type LoggerInsight struct {
	ClassName       string   `json:"class_name"`
	FilePath        string   `json:"file_path"`
	LogLevel        string   `json:"log_level"`
	LineNumber      *int     `json:"line_number,omitempty"`
	MessageTemplate string   `json:"message_template"`
	Variables       []string `json:"variables"`
	PiiRisk         bool     `json:"pii_risk"`
	PciRisk         bool     `json:"pci_risk"`
}

type FindingSummary struct {
	ID         int64  `json:"id,omitempty"`
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Snippet    string `json:"snippet"`
	MatchType  string `json:"match_type"`
	Severity   string `json:"severity"`
	RuleID     string `json:"rule_id,omitempty"`
	Ignored    bool   `json:"ignored"`
}

type ScanStats struct {
	FilesScanned  int `json:"files_scanned"`
	SourceFiles   int `json:"source_files"`
	SkippedFiles  int `json:"skipped_files"`
	ClassCount    int `json:"class_count"`
	EndpointCount int `json:"endpoint_count"`
	LogCount      int `json:"log_count"`
	FindingCount  int `json:"finding_count"`
	EntityCount   int `json:"entity_count"`
	AssetCount    int `json:"asset_count"`
	FeatureCount  int `json:"feature_count"`
}
