package scanner

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qs3c/repo_scan_server/internal/model"
)

// specOperationRef one operation declared by a spec document
type specOperationRef struct {
	Kind   string
	File   string
	ID     string
	Method string
	Path   string
}

var openAPIMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

type openAPIDocument struct {
	OpenAPI string `yaml:"openapi"`
	Swagger string `yaml:"swagger"`
	Info    struct {
		Title   string `yaml:"title"`
		Version string `yaml:"version"`
	} `yaml:"info"`
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type openAPIOperation struct {
	OperationID string `yaml:"operationId"`
}

func parseSpecDocument(rel string, content []byte) (*SpecDocument, []specOperationRef, error) {
	switch strings.ToLower(path.Ext(rel)) {
	case ".wsdl":
		return parseWSDL(rel, content)
	case ".xsd":
		return parseXSD(rel, content)
	default:
		return parseOpenAPI(rel, content)
	}
}

func parseOpenAPI(rel string, content []byte) (*SpecDocument, []specOperationRef, error) {
	var doc openAPIDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	if doc.OpenAPI == "" && doc.Swagger == "" {
		// named like a spec but isn't one
		return nil, nil, nil
	}

	out := &SpecDocument{
		Kind:       SpecOpenAPI,
		FileName:   path.Base(rel),
		Path:       rel,
		Title:      doc.Info.Title,
		Version:    doc.Info.Version,
		Operations: []string{},
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var ops []specOperationRef
	for _, p := range paths {
		item := doc.Paths[p]
		methods := make([]string, 0, len(item))
		for m := range item {
			if openAPIMethods[strings.ToLower(m)] {
				methods = append(methods, m)
			}
		}
		sort.Strings(methods)

		for _, m := range methods {
			node := item[m]
			var op openAPIOperation
			if err := node.Decode(&op); err != nil {
				continue
			}
			ref := specOperationRef{
				Kind:   SpecOpenAPI,
				File:   out.FileName,
				ID:     op.OperationID,
				Method: strings.ToUpper(m),
				Path:   p,
			}
			ops = append(ops, ref)
			label := ref.Method + " " + p
			if op.OperationID != "" {
				label = op.OperationID + " (" + label + ")"
			}
			out.Operations = append(out.Operations, label)
		}
	}
	return out, ops, nil
}

// parseWSDL collects operation names from portType and binding sections.
func parseWSDL(rel string, content []byte) (*SpecDocument, []specOperationRef, error) {
	out := &SpecDocument{
		Kind:       SpecWSDL,
		FileName:   path.Base(rel),
		Path:       rel,
		Operations: []string{},
	}

	names, rootAttrs, err := xmlElements(content, "operation")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid wsdl document: %w", err)
	}
	out.Title = rootAttrs["name"]
	out.Operations = sortStrings(names)

	ops := make([]specOperationRef, 0, len(out.Operations))
	for _, n := range out.Operations {
		ops = append(ops, specOperationRef{Kind: SpecWSDL, File: out.FileName, ID: n})
	}
	return out, ops, nil
}

// parseXSD lists the top-level element declarations.
func parseXSD(rel string, content []byte) (*SpecDocument, []specOperationRef, error) {
	out := &SpecDocument{
		Kind:     SpecXSD,
		FileName: path.Base(rel),
		Path:     rel,
	}

	dec := xml.NewDecoder(bytes.NewReader(content))
	depth := 0
	var names []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("invalid xsd document: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				out.Title = attr(el, "targetNamespace")
			}
			if depth == 2 && el.Name.Local == "element" {
				names = append(names, attr(el, "name"))
			}
		case xml.EndElement:
			depth--
		}
	}
	out.Operations = sortStrings(names)
	return out, nil, nil
}

// xmlElements returns the name attribute of every element with the given
// local name plus the root element's attributes.
func xmlElements(content []byte, local string) ([]string, map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	rootAttrs := map[string]string{}
	first := true
	var names []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if first {
			for _, a := range el.Attr {
				rootAttrs[a.Name.Local] = a.Value
			}
			first = false
		}
		if el.Name.Local == local {
			if n := attr(el, "name"); n != "" {
				names = append(names, n)
			}
		}
	}
	return names, rootAttrs, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// linkSpecArtifacts attaches spec operations to the endpoints implementing
// them. OpenAPI operations match by operationId against the method name,
// WSDL operations by name against the SOAP operation. Unmatched OpenAPI
// operations become endpoints of their own.
func linkSpecArtifacts(st *scanState) {
	if len(st.specOps) == 0 {
		return
	}

	eps := st.result.Endpoints
	used := make([]bool, len(st.specOps))
	for i := range eps {
		for j, op := range st.specOps {
			if op.ID == "" {
				continue
			}
			switch {
			case op.Kind == SpecOpenAPI && eps[i].Protocol == model.ProtocolHTTP &&
				strings.EqualFold(op.ID, eps[i].ControllerMethod):
			case op.Kind == SpecWSDL && eps[i].Protocol == model.ProtocolSOAP &&
				strings.EqualFold(op.ID, eps[i].PathOrOperation):
			default:
				continue
			}
			used[j] = true
			ref := op.File
			if op.Path != "" {
				ref = op.File + "#" + op.Method + " " + op.Path
			}
			eps[i].Artifacts = append(eps[i].Artifacts, SpecArtifact{Name: op.ID, Type: op.Kind, Reference: ref})
		}
	}

	for j, op := range st.specOps {
		if used[j] || op.Kind != SpecOpenAPI {
			continue
		}
		st.result.Endpoints = append(st.result.Endpoints, EndpointRecord{
			Protocol:         model.ProtocolHTTP,
			HTTPMethod:       op.Method,
			PathOrOperation:  op.Path,
			ControllerClass:  "OpenAPI:" + op.File,
			ControllerMethod: op.ID,
			Artifacts: []SpecArtifact{{
				Name:      op.ID,
				Type:      SpecOpenAPI,
				Reference: op.File + "#" + op.Method + " " + op.Path,
			}},
			UserCode: true,
		})
	}
}
