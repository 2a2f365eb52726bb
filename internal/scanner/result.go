package scanner

import "sort"

// Result everything extracted from one tree.
type Result struct {
	Root          string
	Classes       []ClassRecord
	Endpoints     []EndpointRecord
	LogStatements []LogRecord
	Build         *BuildInfo
	Specs         []SpecDocument
	DB            *DBAnalysis
	Features      []FeatureRecord
	Assets        []ImageAsset
	// TextFiles relative paths eligible for raw content risk scanning
	TextFiles []string
	Warnings  []string

	FilesScanned int
	SourceFiles  int
	SkippedFiles int
}

type ClassRecord struct {
	FQN          string
	Package      string
	Name         string
	Kind         string // class, interface, enum, record
	Stereotype   string
	SourceSet    string
	RelativePath string
	UserCode     bool
	Annotations  []string
	Interfaces   []string
}

type EndpointRecord struct {
	Protocol         string
	HTTPMethod       string
	PathOrOperation  string
	ControllerClass  string
	ControllerMethod string
	Artifacts        []SpecArtifact
	UserCode         bool
}

type SpecArtifact struct {
	Name      string
	Type      string
	Reference string
}

type LogRecord struct {
	ClassName string
	FilePath  string
	Level     string
	// Line 1-based, 0 when unknown
	Line      int
	Message   string
	Variables []string
	UserCode  bool
}

type BuildInfo struct {
	Tool        string
	Path        string
	GroupID     string
	ArtifactID  string
	Version     string
	JavaVersion string
	Modules     []string
}

// Spec document kinds
const (
	SpecOpenAPI = "OPENAPI"
	SpecWSDL    = "WSDL"
	SpecXSD     = "XSD"
)

type SpecDocument struct {
	Kind       string
	FileName   string
	Path       string
	Title      string
	Version    string
	Operations []string
	// Content raw document text, cut at maxSpecContent bytes
	Content string
}

func newResult(root string) *Result {
	return &Result{
		Root:          root,
		Classes:       []ClassRecord{},
		Endpoints:     []EndpointRecord{},
		LogStatements: []LogRecord{},
		Specs:         []SpecDocument{},
		DB:            buildDBAnalysis(nil, nil),
		Features:      []FeatureRecord{},
		Assets:        []ImageAsset{},
		TextFiles:     []string{},
		Warnings:      []string{},
	}
}

// finish puts every collection into a stable order.
func (r *Result) finish() {
	sort.SliceStable(r.Classes, func(i, j int) bool {
		return r.Classes[i].FQN < r.Classes[j].FQN
	})
	sort.SliceStable(r.Endpoints, func(i, j int) bool {
		a, b := r.Endpoints[i], r.Endpoints[j]
		if a.ControllerClass != b.ControllerClass {
			return a.ControllerClass < b.ControllerClass
		}
		if a.ControllerMethod != b.ControllerMethod {
			return a.ControllerMethod < b.ControllerMethod
		}
		if a.PathOrOperation != b.PathOrOperation {
			return a.PathOrOperation < b.PathOrOperation
		}
		return a.HTTPMethod < b.HTTPMethod
	})
	sort.SliceStable(r.LogStatements, func(i, j int) bool {
		a, b := r.LogStatements[i], r.LogStatements[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Line < b.Line
	})
	sort.SliceStable(r.Specs, func(i, j int) bool {
		return r.Specs[i].Path < r.Specs[j].Path
	})
	sort.SliceStable(r.Features, func(i, j int) bool {
		return r.Features[i].Path < r.Features[j].Path
	})
	sort.SliceStable(r.Assets, func(i, j int) bool {
		return r.Assets[i].RelativePath < r.Assets[j].RelativePath
	})
	sort.Strings(r.TextFiles)
}
