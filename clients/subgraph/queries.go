package subgraph

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/ethpandaops/horizon-monitor/config"
)

// QueryVariable is a variable declared by a query operation.
type QueryVariable struct {
	Name     string
	Type     string
	Required bool
}

// Query is a parsed GraphQL query document with a single operation.
type Query struct {
	Name      string
	Document  string
	Variables []QueryVariable
}

// CheckVariables returns an error if a required variable is missing or an undeclared variable is passed.
func (q *Query) CheckVariables(variables map[string]interface{}) error {
	declared := make(map[string]bool, len(q.Variables))
	for _, variable := range q.Variables {
		declared[variable.Name] = true
		if !variable.Required {
			continue
		}
		if val, ok := variables[variable.Name]; !ok || val == nil {
			return fmt.Errorf("query %v: missing required variable $%v (%v)", q.Name, variable.Name, variable.Type)
		}
	}

	for name := range variables {
		if !declared[name] {
			return fmt.Errorf("query %v: undeclared variable $%v", q.Name, name)
		}
	}

	return nil
}

// QueryRegistry holds the named queries sent to the subgraphs.
type QueryRegistry struct {
	queries map[string]*Query
}

// NewDefaultQueryRegistry loads the queries embedded in the binary.
func NewDefaultQueryRegistry() (*QueryRegistry, error) {
	return NewQueryRegistry(config.QueryFiles, "queries")
}

// NewQueryRegistry parses all *.graphql files in dir. Each file must contain exactly one named operation.
func NewQueryRegistry(fsys fs.FS, dir string) (*QueryRegistry, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.graphql"))
	if err != nil {
		return nil, err
	}

	registry := &QueryRegistry{
		queries: map[string]*Query{},
	}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("error reading query file %v: %w", file, err)
		}

		query, err := ParseQuery(file, string(data))
		if err != nil {
			return nil, err
		}
		if _, exists := registry.queries[query.Name]; exists {
			return nil, fmt.Errorf("duplicate query %v in %v", query.Name, file)
		}
		registry.queries[query.Name] = query
	}

	return registry, nil
}

// ParseQuery parses a query document and extracts its operation name and variables.
func ParseQuery(name string, document string) (*Query, error) {
	doc, err := parser.ParseQuery(&ast.Source{
		Name:  name,
		Input: document,
	})
	if err != nil {
		return nil, fmt.Errorf("error parsing query %v: %w", name, err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("query %v: expected exactly one operation, got %v", name, len(doc.Operations))
	}

	operation := doc.Operations[0]
	if operation.Operation != ast.Query {
		return nil, fmt.Errorf("query %v: unsupported operation type %v", name, operation.Operation)
	}

	query := &Query{
		Name:      operation.Name,
		Document:  strings.TrimSpace(document),
		Variables: make([]QueryVariable, 0, len(operation.VariableDefinitions)),
	}
	if query.Name == "" {
		query.Name = strings.TrimSuffix(path.Base(name), path.Ext(name))
	}

	for _, variable := range operation.VariableDefinitions {
		query.Variables = append(query.Variables, QueryVariable{
			Name:     variable.Variable,
			Type:     variable.Type.String(),
			Required: variable.Type.NonNull && variable.DefaultValue == nil,
		})
	}

	return query, nil
}

// Get returns the query with the given operation name.
func (r *QueryRegistry) Get(name string) (*Query, error) {
	query, ok := r.queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %v", name)
	}
	return query, nil
}

// Names returns the sorted names of all registered queries.
func (r *QueryRegistry) Names() []string {
	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
