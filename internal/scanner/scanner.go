// Package scanner walks a checked-out repository and extracts structural
// facts from it: Java type metadata, endpoint declarations, logging call
// sites, build descriptors, API specification documents, persistence
// mappings, Gherkin features and image assets.
//
// Extraction is syntactic. Unresolvable references are kept as plain
// strings and a file that cannot be parsed is skipped with a warning.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.uber.org/zap"
)

// DefaultMaxFileBytes files above this size are not parsed.
const DefaultMaxFileBytes = 2 << 20

// maxSpecContent raw specification text kept per document
const maxSpecContent = 64 << 10

// DefaultTextExtensions files eligible for raw content risk scanning.
var DefaultTextExtensions = []string{
	".java", ".kt", ".groovy", ".yml", ".yaml", ".xml", ".properties",
	".sql", ".log", ".wsdl", ".xsd", ".feature", ".txt", ".json", ".csv",
	".md", ".env", ".conf",
}

// walkIgnoredDirs are never descended into.
var walkIgnoredDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	".idea":        true,
	".gradle":      true,
	".mvn":         true,
	"node_modules": true,
}

// ScanError the tree as a whole could not be scanned.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxFileBytes     int64
	UserCodePrefixes []string
	TextExtensions   []string
}

type Scanner struct {
	opts    Options
	textExt map[string]bool
	log     *zap.Logger
}

func New(opts Options, log *zap.Logger) *Scanner {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if len(opts.TextExtensions) == 0 {
		opts.TextExtensions = DefaultTextExtensions
	}
	if log == nil {
		log = zap.NewNop()
	}

	textExt := make(map[string]bool, len(opts.TextExtensions))
	for _, ext := range opts.TextExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		textExt[ext] = true
	}

	return &Scanner{opts: opts, textExt: textExt, log: log}
}

// fileKind structural role of a file in the tree
type fileKind int

const (
	kindOther fileKind = iota
	kindJava
	kindBuild
	kindSpec
	kindFeature
	kindImage
)

func classifyFile(rel string) fileKind {
	name := strings.ToLower(filepath.Base(rel))
	ext := filepath.Ext(name)

	switch {
	case ext == ".java":
		return kindJava
	case name == "pom.xml", name == "build.gradle", name == "build.gradle.kts",
		name == "settings.gradle", name == "settings.gradle.kts":
		return kindBuild
	case ext == ".wsdl", ext == ".xsd":
		return kindSpec
	case ext == ".feature":
		return kindFeature
	case isImage(name):
		return kindImage
	case (strings.HasPrefix(name, "openapi") || strings.HasPrefix(name, "swagger")) &&
		(ext == ".yml" || ext == ".yaml" || ext == ".json"):
		return kindSpec
	}
	return kindOther
}

// scanState per-invocation accumulator
type scanState struct {
	root     string
	result   *Result
	seen     map[string]string // fqn -> first path
	parser   *sitter.Parser
	builds   []string
	specOps  []specOperationRef
	entities []EntityRecord
	repos    []repositoryDecl
}

// Scan walks root and returns everything it could extract. It fails only
// when root is missing or unreadable; an empty tree yields an empty Result.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: errors.New("not a directory")}
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	st := &scanState{
		root:   root,
		result: newResult(root),
		seen:   make(map[string]string),
		parser: parser,
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			st.warn("skipped %s: %v", s.rel(root, path), err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && walkIgnoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		s.visitFile(ctx, st, path)
		return nil
	})
	if walkErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ScanError{Root: root, Err: walkErr}
	}

	st.result.Build = s.extractBuildInfo(st)
	st.result.DB = buildDBAnalysis(st.entities, st.repos)
	linkSpecArtifacts(st)
	st.result.finish()

	s.log.Debug("scan finished",
		zap.String("root", root),
		zap.Int("files", st.result.FilesScanned),
		zap.Int("classes", len(st.result.Classes)),
		zap.Int("endpoints", len(st.result.Endpoints)),
		zap.Int("log_statements", len(st.result.LogStatements)),
		zap.Int("entities", len(st.result.DB.Entities)),
		zap.Int("warnings", len(st.result.Warnings)))

	return st.result, nil
}

func (s *Scanner) rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) visitFile(ctx context.Context, st *scanState, path string) {
	rel := s.rel(st.root, path)
	st.result.FilesScanned++

	if s.textExt[strings.ToLower(filepath.Ext(rel))] {
		st.result.TextFiles = append(st.result.TextFiles, rel)
	}

	kind := classifyFile(rel)
	switch kind {
	case kindBuild:
		st.builds = append(st.builds, rel)
		return
	case kindOther:
		return
	case kindImage:
		if !isUserCode(rel, "", "", nil) {
			return
		}
		asset, err := imageAsset(path, rel)
		if err != nil {
			st.warn("skipped %s: %v", rel, err)
			return
		}
		st.result.Assets = append(st.result.Assets, asset)
		return
	}

	content, err := s.readFile(path)
	if err != nil {
		st.result.SkippedFiles++
		st.warn("skipped %s: %v", rel, err)
		return
	}

	switch kind {
	case kindJava:
		st.result.SourceFiles++
		if err := s.scanJavaFile(ctx, st, rel, content); err != nil {
			st.result.SkippedFiles++
			st.warn("skipped %s: %v", rel, err)
		}
	case kindSpec:
		doc, ops, err := parseSpecDocument(rel, content)
		if err != nil {
			st.result.SkippedFiles++
			st.warn("skipped %s: %v", rel, err)
			return
		}
		if doc != nil {
			doc.Content = boundedText(content, maxSpecContent)
			st.result.Specs = append(st.result.Specs, *doc)
			st.specOps = append(st.specOps, ops...)
		}
	case kindFeature:
		if f := parseFeature(rel, content); f != nil {
			st.result.Features = append(st.result.Features, *f)
		}
	}
}

// boundedText the content cut at limit bytes on a rune boundary.
func boundedText(content []byte, limit int) string {
	if len(content) <= limit {
		return string(content)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return string(content[:cut])
}

var errBinaryContent = errors.New("binary content")

func (s *Scanner) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.opts.MaxFileBytes {
		return nil, fmt.Errorf("file too large (%d bytes)", info.Size())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, errBinaryContent
	}
	if !utf8.Valid(content) {
		return nil, errors.New("content is not valid UTF-8")
	}
	return content, nil
}

func (st *scanState) warn(format string, args ...interface{}) {
	st.result.Warnings = append(st.result.Warnings, fmt.Sprintf(format, args...))
}

// sortStrings returns a sorted, deduplicated copy without blanks.
func sortStrings(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
