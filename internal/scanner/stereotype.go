package scanner

import (
	"strings"

	"github.com/qs3c/repo_scan_server/internal/model"
)

// declaration the structural view stereotype rules are evaluated against
type declaration struct {
	Name       string
	Kind       string
	SourceSet  string
	Markers    markerSet
	Interfaces []string
}

type stereotypeRule struct {
	name       string
	stereotype string
	match      func(d declaration) bool
}

func withMarker(names ...string) func(declaration) bool {
	return func(d declaration) bool { return d.Markers.has(names...) }
}

func withSuffix(suffixes ...string) func(declaration) bool {
	return func(d declaration) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(d.Name, s) && d.Name != s {
				return true
			}
		}
		return false
	}
}

func extending(names ...string) func(declaration) bool {
	return func(d declaration) bool {
		for _, iface := range d.Interfaces {
			for _, n := range names {
				if iface == n {
					return true
				}
			}
		}
		return false
	}
}

// stereotypeRules evaluated in order, first match wins. Markers outrank
// interfaces, interfaces outrank name suffixes.
var stereotypeRules = []stereotypeRule{
	{"test-source-set", model.StereotypeTest, func(d declaration) bool { return d.SourceSet == model.SourceSetTest }},
	{"test-name", model.StereotypeTest, withSuffix("Test", "Tests", "IT")},

	{"controller-marker", model.StereotypeController, withMarker("RestController", "Controller", "GraphQLController", "ControllerAdvice", "RestControllerAdvice", "Path", "WebService", "Endpoint")},
	{"repository-marker", model.StereotypeRepository, withMarker("Repository", "RepositoryRestResource", "Mapper")},
	{"entity-marker", model.StereotypeEntity, withMarker("Entity", "Document", "Table", "Embeddable", "MappedSuperclass")},
	{"config-marker", model.StereotypeConfig, withMarker("Configuration", "SpringBootApplication", "ConfigurationProperties", "EnableAutoConfiguration")},
	{"service-marker", model.StereotypeService, withMarker("Service", "Component")},

	{"repository-interface", model.StereotypeRepository, extending("JpaRepository", "CrudRepository", "PagingAndSortingRepository", "MongoRepository", "ReactiveCrudRepository", "Repository")},

	{"controller-name", model.StereotypeController, withSuffix("Controller", "Resource", "Endpoint")},
	{"service-name", model.StereotypeService, withSuffix("Service", "ServiceImpl")},
	{"repository-name", model.StereotypeRepository, withSuffix("Repository", "Dao", "DAO")},
	{"entity-name", model.StereotypeEntity, withSuffix("Entity")},
	{"config-name", model.StereotypeConfig, withSuffix("Config", "Configuration", "Properties")},
	{"utility-name", model.StereotypeUtility, withSuffix("Util", "Utils", "Helper", "Helpers")},

	{"enum-kind", model.StereotypeUtility, func(d declaration) bool { return d.Kind == "enum" }},
	{"record-kind", model.StereotypeEntity, func(d declaration) bool { return d.Kind == "record" }},
}

func classifyStereotype(d declaration) string {
	for _, r := range stereotypeRules {
		if r.match(d) {
			return r.stereotype
		}
	}
	return model.StereotypePlain
}
