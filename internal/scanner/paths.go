package scanner

import (
	"strings"

	"github.com/qs3c/repo_scan_server/internal/model"
)

var testDirMarkers = []string{
	"/src/test/",
	"/src/it/",
	"/src/integration-test/",
	"/src/integrationtest/",
	"/src/testfixtures/",
}

// nonUserSegments path segments that mark vendored, generated or fixture code
var nonUserSegments = map[string]bool{
	"vendor":                 true,
	"third_party":            true,
	"thirdparty":             true,
	"generated":              true,
	"generated-sources":      true,
	"generated-test-sources": true,
	"target":                 true,
	"build":                  true,
	"out":                    true,
	"mock":                   true,
	"mocks":                  true,
	"fixture":                true,
	"fixtures":               true,
	"testdata":               true,
	"node_modules":           true,
}

func sourceSetFor(rel string) string {
	p := "/" + strings.ToLower(strings.TrimPrefix(rel, "/"))
	for _, m := range testDirMarkers {
		if strings.Contains(p, m) {
			return model.SourceSetTest
		}
	}
	return model.SourceSetMain
}

// containerDirs the directories holding a source file, minus its package
// directories and anything below a src/<set>/<lang> root. Package names
// such as com.acme.build are never read as build output.
func containerDirs(rel, pkg string) []string {
	segments := strings.Split(strings.ToLower(rel), "/")
	dirs := segments[:len(segments)-1]

	if pkg != "" {
		pkgDirs := strings.Split(strings.ToLower(pkg), ".")
		if n := len(dirs) - len(pkgDirs); n >= 0 && strings.Join(dirs[n:], "/") == strings.Join(pkgDirs, "/") {
			dirs = dirs[:n]
		}
	}
	for i := 0; i+2 < len(dirs); i++ {
		if dirs[i] == "src" && sourceLangDirs[dirs[i+2]] {
			return dirs[:i]
		}
	}
	return dirs
}

var sourceLangDirs = map[string]bool{
	"java":   true,
	"kotlin": true,
	"groovy": true,
	"scala":  true,
}

// isUserCode reports whether a declaration belongs to the analyzed project.
// When prefixes is non-empty the package must start with one of them.
func isUserCode(rel, pkg, className string, prefixes []string) bool {
	for _, seg := range containerDirs(rel, pkg) {
		if nonUserSegments[seg] {
			return false
		}
	}
	if strings.HasPrefix(className, "Mock") || strings.HasSuffix(className, "Mock") {
		return false
	}
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" && (pkg == p || strings.HasPrefix(pkg, strings.TrimSuffix(p, ".")+".")) {
			return true
		}
	}
	return false
}
