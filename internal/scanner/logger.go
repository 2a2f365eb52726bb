package scanner

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

type logCall struct {
	Level     string
	Line      int
	Message   string
	Variables []string
}

// findLogCalls collects invocations such as log.info("user {}", id) under n.
// The receiver expression must mention "log" (log, LOG, logger, this.log).
func findLogCalls(n *sitter.Node, src []byte) []logCall {
	var calls []logCall
	walkNamed(n, func(node *sitter.Node) {
		if node.Type() != "method_invocation" {
			return
		}
		name := node.ChildByFieldName("name")
		object := node.ChildByFieldName("object")
		if name == nil || object == nil {
			return
		}
		level := name.Content(src)
		if !logLevels[level] || !strings.Contains(strings.ToLower(object.Content(src)), "log") {
			return
		}

		call := logCall{
			Level:     strings.ToUpper(level),
			Line:      lineOf(node),
			Variables: []string{},
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			var exprs []*sitter.Node
			for i := 0; i < int(args.NamedChildCount()); i++ {
				if a := args.NamedChild(i); !isComment(a) {
					exprs = append(exprs, a)
				}
			}
			if len(exprs) > 0 {
				msg, vars := messageTemplate(exprs[0], src)
				call.Message = msg
				call.Variables = append(call.Variables, vars...)
				for _, a := range exprs[1:] {
					call.Variables = append(call.Variables, strings.TrimSpace(a.Content(src)))
				}
			}
		}
		calls = append(calls, call)
	})
	return calls
}

// messageTemplate turns the first log argument into a template. A string
// concatenation such as "user " + id + " saved" becomes "user {} saved" with
// id as a variable.
func messageTemplate(n *sitter.Node, src []byte) (string, []string) {
	if n.Type() == "string_literal" {
		return unquote(n.Content(src)), nil
	}
	if n.Type() == "binary_expression" && concatHasLiteral(n, src) {
		var b strings.Builder
		var vars []string
		flattenConcat(n, src, &b, &vars)
		return b.String(), vars
	}
	return strings.TrimSpace(n.Content(src)), nil
}

func isConcat(n *sitter.Node, src []byte) bool {
	if n.Type() != "binary_expression" {
		return false
	}
	op := n.ChildByFieldName("operator")
	return op != nil && op.Content(src) == "+"
}

func concatHasLiteral(n *sitter.Node, src []byte) bool {
	if n.Type() == "string_literal" {
		return true
	}
	if !isConcat(n, src) {
		return false
	}
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	return (left != nil && concatHasLiteral(left, src)) || (right != nil && concatHasLiteral(right, src))
}

func flattenConcat(n *sitter.Node, src []byte, b *strings.Builder, vars *[]string) {
	switch {
	case n.Type() == "string_literal":
		b.WriteString(unquote(n.Content(src)))
	case isConcat(n, src):
		if left := n.ChildByFieldName("left"); left != nil {
			flattenConcat(left, src, b, vars)
		}
		if right := n.ChildByFieldName("right"); right != nil {
			flattenConcat(right, src, b, vars)
		}
	default:
		b.WriteString("{}")
		*vars = append(*vars, strings.TrimSpace(n.Content(src)))
	}
}
