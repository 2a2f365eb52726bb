package worker

import (
	"sort"
	"time"

	"github.com/qs3c/repo_scan_server/internal/model"
	"github.com/qs3c/repo_scan_server/internal/model/dto"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/risk"
	"github.com/qs3c/repo_scan_server/internal/scanner"
)

// OutcomeInput the pieces one run produced.
type OutcomeInput struct {
	RepoURL            string
	Clone              *CloneResult
	Scan               *scanner.Result
	Risk               *risk.Result
	AnalyzedAt         time.Time
	IncludeNonUserCode bool
}

// AssembleOutcome merges scanner and classifier output into the response
// shape. Collections are never nil.
func AssembleOutcome(in OutcomeInput) *dto.ParsedDataResponse {
	out := &dto.ParsedDataResponse{
		ProjectName:    in.Clone.ProjectName,
		RepoURL:        in.RepoURL,
		CommitHash:     in.Clone.CommitHash,
		BranchName:     in.Clone.Branch,
		AnalyzedAt:     in.AnalyzedAt,
		Classes:        []dto.ClassMetadataSummary{},
		Endpoints:      []dto.ApiEndpointSummary{},
		LoggerInsights: []dto.LoggerInsight{},
		Findings:       []dto.FindingSummary{},
		Warnings:       []string{},
		Features:       []dto.GherkinFeature{},
		Assets:         dto.AssetInventory{Images: []dto.ImageAsset{}},
		DBAnalysis: dto.DBAnalysisSummary{
			Entities:          []dto.DBEntitySummary{},
			ClassesByEntity:   map[string][]string{},
			OperationsByClass: map[string][]dto.DaoOperation{},
		},
		MetadataDump: dto.MetadataDump{
			OpenAPISpecs:  []dto.SpecDocument{},
			WSDLDocuments: []dto.SpecDocument{},
			XSDDocuments:  []dto.SpecDocument{},
			SOAPServices:  []string{},
		},
	}

	scan := in.Scan
	if scan == nil {
		scan = &scanner.Result{}
	}

	if b := scan.Build; b != nil {
		out.BuildInfo = dto.BuildInfo{
			Tool:        b.Tool,
			GroupID:     b.GroupID,
			ArtifactID:  b.ArtifactID,
			Version:     b.Version,
			JavaVersion: b.JavaVersion,
			Modules:     b.Modules,
		}
	}

	for _, c := range scan.Classes {
		if !c.UserCode && !in.IncludeNonUserCode {
			continue
		}
		out.Classes = append(out.Classes, dto.ClassMetadataSummary{
			FQN:          c.FQN,
			PackageName:  c.Package,
			ClassName:    c.Name,
			Stereotype:   c.Stereotype,
			SourceSet:    c.SourceSet,
			RelativePath: c.RelativePath,
			UserCode:     c.UserCode,
			Annotations:  nonNil(c.Annotations),
			Interfaces:   nonNil(c.Interfaces),
		})
	}

	soap := map[string]bool{}
	for _, e := range scan.Endpoints {
		if !e.UserCode && !in.IncludeNonUserCode {
			continue
		}
		ep := dto.ApiEndpointSummary{
			Protocol:         e.Protocol,
			HTTPMethod:       e.HTTPMethod,
			PathOrOperation:  e.PathOrOperation,
			ControllerClass:  e.ControllerClass,
			ControllerMethod: e.ControllerMethod,
		}
		for _, a := range e.Artifacts {
			ep.SpecArtifacts = append(ep.SpecArtifacts, dto.ApiSpecArtifact{Name: a.Name, Type: a.Type, Reference: a.Reference})
		}
		out.Endpoints = append(out.Endpoints, ep)
		if e.Protocol == model.ProtocolSOAP {
			soap[e.ControllerClass] = true
		}
	}
	for name := range soap {
		out.MetadataDump.SOAPServices = append(out.MetadataDump.SOAPServices, name)
	}
	sort.Strings(out.MetadataDump.SOAPServices)

	for _, s := range scan.Specs {
		doc := dto.SpecDocument{
			FileName:   s.FileName,
			Path:       s.Path,
			Title:      s.Title,
			Version:    s.Version,
			Operations: s.Operations,
			Content:    s.Content,
		}
		switch s.Kind {
		case scanner.SpecOpenAPI:
			out.MetadataDump.OpenAPISpecs = append(out.MetadataDump.OpenAPISpecs, doc)
		case scanner.SpecWSDL:
			out.MetadataDump.WSDLDocuments = append(out.MetadataDump.WSDLDocuments, doc)
		case scanner.SpecXSD:
			out.MetadataDump.XSDDocuments = append(out.MetadataDump.XSDDocuments, doc)
		}
	}

	if db := scan.DB; db != nil {
		for _, e := range db.Entities {
			ent := dto.DBEntitySummary{
				EntityName:    e.ClassName,
				FQN:           e.FQN,
				TableName:     e.TableName,
				PrimaryKeys:   nonNil(e.PrimaryKeys),
				Fields:        make([]dto.EntityFieldSummary, 0, len(e.Fields)),
				Relationships: make([]dto.RelationshipSummary, 0, len(e.Relationships)),
			}
			for _, f := range e.Fields {
				ent.Fields = append(ent.Fields, dto.EntityFieldSummary{Name: f.Name, Type: f.Type, ColumnName: f.ColumnName})
			}
			for _, r := range e.Relationships {
				ent.Relationships = append(ent.Relationships, dto.RelationshipSummary{
					FieldName:        r.FieldName,
					TargetType:       r.TargetType,
					RelationshipType: r.RelationshipType,
				})
			}
			out.DBAnalysis.Entities = append(out.DBAnalysis.Entities, ent)
		}
		for entity, classes := range db.ClassesByEntity {
			out.DBAnalysis.ClassesByEntity[entity] = nonNil(classes)
		}
		for class, ops := range db.OperationsByClass {
			list := make([]dto.DaoOperation, 0, len(ops))
			for _, op := range ops {
				list = append(list, dto.DaoOperation{
					MethodName:    op.MethodName,
					OperationType: op.OperationType,
					Target:        op.Target,
					QuerySnippet:  op.QuerySnippet,
				})
			}
			out.DBAnalysis.OperationsByClass[class] = list
		}
	}

	for _, a := range scan.Assets {
		out.Assets.Images = append(out.Assets.Images, dto.ImageAsset{
			FileName:     a.FileName,
			RelativePath: a.RelativePath,
			SizeBytes:    a.SizeBytes,
			SHA256:       a.SHA256,
		})
	}

	for _, f := range scan.Features {
		feature := dto.GherkinFeature{
			FeatureFile:  f.Path,
			FeatureTitle: f.Title,
			Scenarios:    make([]dto.GherkinScenario, 0, len(f.Scenarios)),
		}
		for _, sc := range f.Scenarios {
			feature.Scenarios = append(feature.Scenarios, dto.GherkinScenario{Name: sc.Name, ScenarioType: sc.Type, Steps: nonNil(sc.Steps)})
		}
		out.Features = append(out.Features, feature)
	}

	out.Warnings = append(out.Warnings, scan.Warnings...)

	if r := in.Risk; r != nil {
		for _, li := range r.LogInsights {
			if !li.UserCode && !in.IncludeNonUserCode {
				continue
			}
			out.LoggerInsights = append(out.LoggerInsights, dto.LoggerInsight{
				ClassName:       li.ClassName,
				FilePath:        li.FilePath,
				LogLevel:        li.Level,
				LineNumber:      lineNumber(li.Line),
				MessageTemplate: li.Message,
				Variables:       nonNil(li.Variables),
				PiiRisk:         li.PiiRisk,
				PciRisk:         li.PciRisk,
			})
		}
		for _, f := range r.Findings {
			out.Findings = append(out.Findings, dto.FindingSummary{
				FilePath:   f.Path,
				LineNumber: f.Line,
				Snippet:    f.Snippet,
				MatchType:  f.Type,
				Severity:   f.Severity,
				RuleID:     f.RuleID,
				Ignored:    f.Ignored,
			})
		}
		out.Warnings = append(out.Warnings, r.Warnings...)
	}

	out.Stats = dto.ScanStats{
		FilesScanned:  scan.FilesScanned,
		SourceFiles:   scan.SourceFiles,
		SkippedFiles:  scan.SkippedFiles,
		ClassCount:    len(out.Classes),
		EndpointCount: len(out.Endpoints),
		LogCount:      len(out.LoggerInsights),
		FindingCount:  len(out.Findings),
		EntityCount:   len(out.DBAnalysis.Entities),
		AssetCount:    len(out.Assets.Images),
		FeatureCount:  len(out.Features),
	}
	return out
}

// analysisRecord maps an assembled outcome onto persisted rows.
func analysisRecord(data *dto.ParsedDataResponse, reportURL, snapshot string) *repository.AnalysisRecord {
	rec := &repository.AnalysisRecord{
		RepoURL:     data.RepoURL,
		ProjectName: data.ProjectName,
		ReportURL:   reportURL,
		AnalyzedAt:  data.AnalyzedAt,
		Snapshot:    snapshot,
		Classes:     make([]model.ClassMetadata, 0, len(data.Classes)),
		Endpoints:   make([]model.ApiEndpoint, 0, len(data.Endpoints)),
		Logs:        make([]model.LogStatement, 0, len(data.LoggerInsights)),
		Findings:    make([]model.PiiPciFinding, 0, len(data.Findings)),
	}

	for _, c := range data.Classes {
		rec.Classes = append(rec.Classes, model.ClassMetadata{
			FQN:          c.FQN,
			PackageName:  c.PackageName,
			ClassName:    c.ClassName,
			Stereotype:   c.Stereotype,
			SourceSet:    c.SourceSet,
			RelativePath: c.RelativePath,
			UserCode:     c.UserCode,
			Annotations:  model.StringArray(c.Annotations),
			Interfaces:   model.StringArray(c.Interfaces),
		})
	}
	for _, e := range data.Endpoints {
		ep := model.ApiEndpoint{
			Protocol:         e.Protocol,
			HTTPMethod:       e.HTTPMethod,
			PathOrOperation:  e.PathOrOperation,
			ControllerClass:  e.ControllerClass,
			ControllerMethod: e.ControllerMethod,
		}
		for _, a := range e.SpecArtifacts {
			ep.SpecArtifacts = append(ep.SpecArtifacts, model.SpecArtifact{Name: a.Name, Type: a.Type, Reference: a.Reference})
		}
		rec.Endpoints = append(rec.Endpoints, ep)
	}
	for _, l := range data.LoggerInsights {
		rec.Logs = append(rec.Logs, model.LogStatement{
			ClassName:       l.ClassName,
			FilePath:        l.FilePath,
			LogLevel:        l.LogLevel,
			LineNumber:      l.LineNumber,
			MessageTemplate: l.MessageTemplate,
			Variables:       model.StringArray(l.Variables),
			PiiRisk:         l.PiiRisk,
			PciRisk:         l.PciRisk,
		})
	}
	for _, f := range data.Findings {
		rec.Findings = append(rec.Findings, model.PiiPciFinding{
			FilePath:   f.FilePath,
			LineNumber: f.LineNumber,
			Snippet:    f.Snippet,
			MatchType:  f.MatchType,
			Severity:   f.Severity,
			RuleID:     f.RuleID,
			Ignored:    f.Ignored,
		})
	}
	return rec
}

func lineNumber(line int) *int {
	if line <= 0 {
		return nil
	}
	return &line
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
