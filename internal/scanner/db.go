package scanner

import (
	"sort"
	"strings"
)

// Operation types reported for data access methods
const (
	OpSelect         = "SELECT"
	OpInsertOrUpdate = "INSERT_OR_UPDATE"
	OpUpdate         = "UPDATE"
	OpDelete         = "DELETE"
	OpUnknown        = "UNKNOWN"
)

// maxQuerySnippet longest @Query text kept on an operation
const maxQuerySnippet = 200

var relationshipMarkers = map[string]string{
	"OneToMany":  "ONE_TO_MANY",
	"ManyToOne":  "MANY_TO_ONE",
	"ManyToMany": "MANY_TO_MANY",
	"OneToOne":   "ONE_TO_ONE",
}

// springDataBases repository interfaces whose first type argument is the
// managed entity
var springDataBases = map[string]bool{
	"Repository":                     true,
	"CrudRepository":                 true,
	"ListCrudRepository":             true,
	"PagingAndSortingRepository":     true,
	"ListPagingAndSortingRepository": true,
	"JpaRepository":                  true,
	"MongoRepository":                true,
	"ReactiveCrudRepository":         true,
	"R2dbcRepository":                true,
}

// derivedPrefixes Spring Data derived query prefixes, checked in order
var derivedPrefixes = []struct {
	prefix string
	op     string
}{
	{"saveAll", OpInsertOrUpdate},
	{"save", OpInsertOrUpdate},
	{"persist", OpInsertOrUpdate},
	{"insert", OpInsertOrUpdate},
	{"merge", OpInsertOrUpdate},
	{"update", OpUpdate},
	{"delete", OpDelete},
	{"remove", OpDelete},
	{"find", OpSelect},
	{"get", OpSelect},
	{"read", OpSelect},
	{"query", OpSelect},
	{"search", OpSelect},
	{"stream", OpSelect},
	{"count", OpSelect},
	{"exists", OpSelect},
	{"list", OpSelect},
	{"load", OpSelect},
}

type EntityField struct {
	Name       string
	Type       string
	ColumnName string
}

type EntityRelationship struct {
	FieldName        string
	TargetType       string
	RelationshipType string
}

// EntityRecord a persistent class mapped with @Entity.
type EntityRecord struct {
	ClassName     string
	FQN           string
	TableName     string
	PrimaryKeys   []string
	Fields        []EntityField
	Relationships []EntityRelationship
}

// DaoOperation one data access method of a repository interface.
type DaoOperation struct {
	RepositoryClass string
	MethodName      string
	OperationType   string
	Target          string
	QuerySnippet    string
}

// DBAnalysis persistent entities and the repositories that touch them.
type DBAnalysis struct {
	Entities []EntityRecord
	// ClassesByEntity entity simple name -> repository FQNs
	ClassesByEntity map[string][]string
	// OperationsByClass repository FQN -> its operations
	OperationsByClass map[string][]DaoOperation
}

// repositoryDecl a Spring Data repository interface seen during the walk
type repositoryDecl struct {
	FQN     string
	Entity  string
	Methods []javaMethod
}

func entityRecord(fqn string, t javaType) EntityRecord {
	rec := EntityRecord{
		ClassName:     t.Name,
		FQN:           fqn,
		TableName:     t.Name,
		PrimaryKeys:   []string{},
		Fields:        []EntityField{},
		Relationships: []EntityRelationship{},
	}
	if m, ok := t.Markers.find("Table"); ok {
		if name := m.Value("name", "value"); name != "" {
			rec.TableName = name
		}
	}

	for _, f := range t.Fields {
		if f.Markers.has("Transient") {
			continue
		}
		field := EntityField{Name: f.Name, Type: f.Type}
		if m, ok := f.Markers.find("Column"); ok {
			field.ColumnName = m.Value("name")
		} else if m, ok := f.Markers.find("JoinColumn"); ok {
			field.ColumnName = m.Value("name")
		}
		rec.Fields = append(rec.Fields, field)

		if f.Markers.has("Id", "EmbeddedId") {
			rec.PrimaryKeys = append(rec.PrimaryKeys, f.Name)
		}
		for _, m := range f.Markers {
			if rel, ok := relationshipMarkers[m.Name]; ok {
				rec.Relationships = append(rec.Relationships, EntityRelationship{
					FieldName:        f.Name,
					TargetType:       relationTarget(f.Type),
					RelationshipType: rel,
				})
				break
			}
		}
	}
	return rec
}

// relationTarget element type of a collection, the type itself otherwise.
func relationTarget(typ string) string {
	if args := typeArguments(typ); len(args) > 0 {
		return simpleTypeName(args[len(args)-1])
	}
	return simpleTypeName(typ)
}

// managedEntity the entity a repository interface manages, if any.
func managedEntity(t javaType) (string, bool) {
	if t.Kind != "interface" {
		return "", false
	}
	for _, st := range t.Supertypes {
		if !springDataBases[simpleTypeName(st)] {
			continue
		}
		if args := typeArguments(st); len(args) > 0 {
			return simpleTypeName(args[0]), true
		}
	}
	return "", false
}

func operationFor(repo repositoryDecl, m javaMethod, target string) DaoOperation {
	op := DaoOperation{
		RepositoryClass: repo.FQN,
		MethodName:      m.Name,
		OperationType:   OpUnknown,
		Target:          target,
	}
	if q, ok := m.Markers.find("Query"); ok {
		op.QuerySnippet = querySnippet(q.Value("value"))
		op.OperationType = queryOperation(op.QuerySnippet)
		if op.OperationType == OpSelect && m.Markers.has("Modifying") {
			op.OperationType = OpUpdate
		}
		return op
	}
	for _, p := range derivedPrefixes {
		if strings.HasPrefix(m.Name, p.prefix) {
			op.OperationType = p.op
			break
		}
	}
	return op
}

func queryOperation(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return OpUnknown
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "FROM", "WITH":
		return OpSelect
	case "UPDATE":
		return OpUpdate
	case "DELETE":
		return OpDelete
	case "INSERT", "MERGE":
		return OpInsertOrUpdate
	}
	return OpUnknown
}

func querySnippet(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) <= maxQuerySnippet {
		return q
	}
	return boundedText([]byte(q), maxQuerySnippet) + "..."
}

// buildDBAnalysis links repositories to the entities they manage. Every
// entity gets a ClassesByEntity entry, possibly empty.
func buildDBAnalysis(entities []EntityRecord, repos []repositoryDecl) *DBAnalysis {
	out := &DBAnalysis{
		Entities:          append([]EntityRecord{}, entities...),
		ClassesByEntity:   map[string][]string{},
		OperationsByClass: map[string][]DaoOperation{},
	}
	sort.SliceStable(out.Entities, func(i, j int) bool {
		return out.Entities[i].FQN < out.Entities[j].FQN
	})

	tables := make(map[string]string, len(entities))
	for _, e := range out.Entities {
		if _, ok := tables[e.ClassName]; !ok {
			tables[e.ClassName] = e.TableName
		}
		out.ClassesByEntity[e.ClassName] = []string{}
	}

	for _, r := range repos {
		target := r.Entity
		if table, ok := tables[r.Entity]; ok {
			target = table
		}
		out.ClassesByEntity[r.Entity] = append(out.ClassesByEntity[r.Entity], r.FQN)

		ops := make([]DaoOperation, 0, len(r.Methods))
		for _, m := range r.Methods {
			ops = append(ops, operationFor(r, m, target))
		}
		sort.SliceStable(ops, func(i, j int) bool {
			return strings.ToLower(ops[i].MethodName) < strings.ToLower(ops[j].MethodName)
		})
		out.OperationsByClass[r.FQN] = ops
	}
	for k, v := range out.ClassesByEntity {
		out.ClassesByEntity[k] = sortStrings(v)
	}
	return out
}
