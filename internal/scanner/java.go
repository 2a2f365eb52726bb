package scanner

import (
	"context"
	"errors"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/qs3c/repo_scan_server/internal/model"
)

var errSyntax = errors.New("source contains syntax errors")

// Marker an annotation attached to a declaration: simple name plus its
// arguments keyed by element name. A bare argument is stored under "value".
type Marker struct {
	Name string
	Args map[string][]string
}

// Values returns the values of the first key present.
func (m Marker) Values(keys ...string) []string {
	for _, k := range keys {
		if v, ok := m.Args[k]; ok && len(v) > 0 {
			return v
		}
	}
	return nil
}

// Value returns the first value of the first key present.
func (m Marker) Value(keys ...string) string {
	if v := m.Values(keys...); len(v) > 0 {
		return v[0]
	}
	return ""
}

type markerSet []Marker

func (ms markerSet) find(name string) (Marker, bool) {
	for _, m := range ms {
		if m.Name == name {
			return m, true
		}
	}
	return Marker{}, false
}

func (ms markerSet) has(names ...string) bool {
	for _, n := range names {
		if _, ok := ms.find(n); ok {
			return true
		}
	}
	return false
}

func (ms markerSet) names() []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return sortStrings(out)
}

type javaMethod struct {
	Name    string
	Line    int
	Markers markerSet
}

type javaField struct {
	Name    string
	Type    string
	Markers markerSet
}

type javaType struct {
	Name       string
	Kind       string
	Line       int
	Markers    markerSet
	Interfaces []string
	// Supertypes implemented or extended interfaces with type arguments kept
	Supertypes []string
	Fields     []javaField
	Methods    []javaMethod
	Logs       []logCall
}

type javaUnit struct {
	Package string
	Types   []javaType
}

func (s *Scanner) scanJavaFile(ctx context.Context, st *scanState, rel string, src []byte) error {
	unit, err := parseJava(ctx, st.parser, src)
	if err != nil {
		return err
	}

	sourceSet := sourceSetFor(rel)
	for _, t := range unit.Types {
		fqn := t.Name
		if unit.Package != "" {
			fqn = unit.Package + "." + t.Name
		}
		if first, dup := st.seen[fqn]; dup {
			st.warn("duplicate type %s in %s ignored (first declared in %s)", fqn, rel, first)
			continue
		}
		st.seen[fqn] = rel

		userCode := isUserCode(rel, unit.Package, t.Name, s.opts.UserCodePrefixes)
		decl := declaration{
			Name:       t.Name,
			Kind:       t.Kind,
			SourceSet:  sourceSet,
			Markers:    t.Markers,
			Interfaces: t.Interfaces,
		}

		st.result.Classes = append(st.result.Classes, ClassRecord{
			FQN:          fqn,
			Package:      unit.Package,
			Name:         t.Name,
			Kind:         t.Kind,
			Stereotype:   classifyStereotype(decl),
			SourceSet:    sourceSet,
			RelativePath: rel,
			UserCode:     userCode,
			Annotations:  t.Markers.names(),
			Interfaces:   sortStrings(t.Interfaces),
		})

		if userCode && sourceSet == model.SourceSetMain {
			if t.Kind == "class" && t.Markers.has("Entity") {
				st.entities = append(st.entities, entityRecord(fqn, t))
			}
			if entity, ok := managedEntity(t); ok {
				st.repos = append(st.repos, repositoryDecl{FQN: fqn, Entity: entity, Methods: t.Methods})
			}
		}

		for _, ep := range extractEndpoints(fqn, t) {
			ep.UserCode = userCode
			st.result.Endpoints = append(st.result.Endpoints, ep)
		}

		for _, call := range t.Logs {
			st.result.LogStatements = append(st.result.LogStatements, LogRecord{
				ClassName: fqn,
				FilePath:  rel,
				Level:     call.Level,
				Line:      call.Line,
				Message:   call.Message,
				Variables: call.Variables,
				UserCode:  userCode,
			})
		}
	}
	return nil
}

func parseJava(ctx context.Context, parser *sitter.Parser, src []byte) (*javaUnit, error) {
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.New("empty syntax tree")
	}
	if root.HasError() {
		return nil, errSyntax
	}

	unit := &javaUnit{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			unit.Package = packageName(n, src)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			unit.Types = append(unit.Types, parseType(n, src))
		}
	}
	return unit, nil
}

func packageName(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "scoped_identifier" || c.Type() == "identifier" {
			return c.Content(src)
		}
	}
	return ""
}

func parseType(n *sitter.Node, src []byte) javaType {
	t := javaType{
		Kind: strings.TrimSuffix(n.Type(), "_declaration"),
		Line: lineOf(n),
	}
	if name := n.ChildByFieldName("name"); name != nil {
		t.Name = name.Content(src)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "modifiers":
			t.Markers = parseMarkers(c, src)
		case "super_interfaces", "extends_interfaces":
			t.Interfaces = append(t.Interfaces, typeListNames(c, src)...)
			t.Supertypes = append(t.Supertypes, typeListTypes(c, src)...)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		t.Methods = parseMethods(body, src)
		t.Fields = parseFields(body, src)
	}
	t.Logs = findLogCalls(n, src)
	return t
}

func parseMethods(body *sitter.Node, src []byte) []javaMethod {
	var methods []javaMethod
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "method_declaration":
			m := javaMethod{Line: lineOf(c)}
			if name := c.ChildByFieldName("name"); name != nil {
				m.Name = name.Content(src)
			}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if mod := c.NamedChild(j); mod.Type() == "modifiers" {
					m.Markers = parseMarkers(mod, src)
				}
			}
			methods = append(methods, m)
		case "enum_body_declarations":
			methods = append(methods, parseMethods(c, src)...)
		}
	}
	return methods
}

func parseFields(body *sitter.Node, src []byte) []javaField {
	var fields []javaField
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() != "field_declaration" {
			continue
		}
		var (
			markers markerSet
			typ     string
		)
		if t := c.ChildByFieldName("type"); t != nil {
			typ = t.Content(src)
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			if mod := c.NamedChild(j); mod.Type() == "modifiers" {
				markers = parseMarkers(mod, src)
			}
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			d := c.NamedChild(j)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil {
				fields = append(fields, javaField{Name: name.Content(src), Type: typ, Markers: markers})
			}
		}
	}
	return fields
}

func parseMarkers(mods *sitter.Node, src []byte) markerSet {
	var out markerSet
	for i := 0; i < int(mods.NamedChildCount()); i++ {
		c := mods.NamedChild(i)
		if c.Type() != "marker_annotation" && c.Type() != "annotation" {
			continue
		}
		m := Marker{Args: map[string][]string{}}
		if name := c.ChildByFieldName("name"); name != nil {
			m.Name = simpleTypeName(name.Content(src))
		}
		if args := c.ChildByFieldName("arguments"); args != nil {
			for j := 0; j < int(args.NamedChildCount()); j++ {
				a := args.NamedChild(j)
				if isComment(a) {
					continue
				}
				if a.Type() == "element_value_pair" {
					key := a.ChildByFieldName("key")
					val := a.ChildByFieldName("value")
					if key != nil && val != nil {
						k := key.Content(src)
						m.Args[k] = append(m.Args[k], elementValues(val, src)...)
					}
					continue
				}
				m.Args["value"] = append(m.Args["value"], elementValues(a, src)...)
			}
		}
		if m.Name != "" {
			out = append(out, m)
		}
	}
	return out
}

func elementValues(n *sitter.Node, src []byte) []string {
	switch n.Type() {
	case "element_value_array_initializer":
		var out []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if isComment(c) {
				continue
			}
			out = append(out, elementValues(c, src)...)
		}
		return out
	case "string_literal":
		return []string{unquote(n.Content(src))}
	default:
		return []string{strings.TrimSpace(n.Content(src))}
	}
}

func typeListNames(n *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "type_list" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			if name := simpleTypeName(c.NamedChild(j).Content(src)); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// typeListTypes like typeListNames but keeps qualifiers and type arguments.
func typeListTypes(n *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "type_list" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			out = append(out, strings.TrimSpace(c.NamedChild(j).Content(src)))
		}
	}
	return out
}

// typeArguments splits the top-level type arguments of a generic type:
// "JpaRepository<User, Long>" -> ["User", "Long"].
func typeArguments(s string) []string {
	start := strings.Index(s, "<")
	end := strings.LastIndex(s, ">")
	if start < 0 || end <= start {
		return nil
	}
	var (
		out   []string
		depth int
		from  = start + 1
	)
	for i := start + 1; i < end; i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[from:i]))
				from = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[from:end]))
}

// simpleTypeName strips generic arguments and the qualifier:
// "org.springframework.data.jpa.repository.JpaRepository<User, Long>" -> "JpaRepository".
func simpleTypeName(s string) string {
	if i := strings.Index(s, "<"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"""`) && strings.HasSuffix(s, `"""`) && len(s) >= 6 {
		return strings.TrimSpace(s[3 : len(s)-3])
	}
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return strings.Trim(s, `"`)
}

func isComment(n *sitter.Node) bool {
	return strings.HasSuffix(n.Type(), "comment")
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func walkNamed(n *sitter.Node, fn func(*sitter.Node)) {
	fn(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walkNamed(n.NamedChild(i), fn)
	}
}
