package schema

import (
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/artpar/limbo/core/paths"
	"github.com/artpar/limbo/core/registry"
	"github.com/artpar/limbo/core/scope"
	"github.com/artpar/limbo/core/value"
)

// Filesystem is what parsing needs from a billy filesystem.
type Filesystem interface {
	billy.Basic
	billy.Dir
}

// ParseOption configures parsing.
type ParseOption func(*parseOptions)

type parseOptions struct {
	fs      Filesystem
	version string
}

// WithFilesystem sets the filesystem project files and seed paths are read
// from. The default is the native OS filesystem.
func WithFilesystem(fs Filesystem) ParseOption {
	return func(o *parseOptions) {
		o.fs = fs
	}
}

// WithToolVersion sets the version checked against the project's requires
// constraint. The default is DevVersion, which skips the check.
func WithToolVersion(v string) ParseOption {
	return func(o *parseOptions) {
		o.version = v
	}
}

func newParseOptions(opts []ParseOption) parseOptions {
	o := parseOptions{version: DevVersion}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = osfs.Default
	}
	return o
}

// document mirrors the YAML layout before anything is checked against the
// Context.
type document struct {
	Requires    string         `yaml:"requires"`
	Vars        map[string]any `yaml:"vars"`
	Connections []yaml.Node    `yaml:"connections"`
	Tables      []tableDoc     `yaml:"tables"`
	Seeds       []seedDoc      `yaml:"seeds"`
	Sources     []sourceDoc    `yaml:"sources"`
}

type columnDoc struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	DataType    string               `yaml:"data_type"`
	Generator   string               `yaml:"generator"`
	Options     map[string]yaml.Node `yaml:"options"`
}

type tableDoc struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Config      TableConfig      `yaml:"config"`
	Columns     []columnDoc      `yaml:"columns"`
	References  []TableReference `yaml:"references"`

	file string
}

type seedDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Columns     []columnDoc `yaml:"columns"`
	SeedFile    struct {
		Type        SeedFormat  `yaml:"type"`
		Compression Compression `yaml:"compression"`
		Path        any         `yaml:"path"`
	} `yaml:"seed_file"`

	file string
}

type sourceDoc struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Config      SourceConfig `yaml:"config"`
	Columns     []columnDoc  `yaml:"columns"`

	file string
}

// ParseFile parses a single-file project.
func ParseFile(path string, sc *scope.Context, reg *registry.Registry, opts ...ParseOption) (*Project, error) {
	o := newParseOptions(opts)

	data, err := util.ReadFile(o.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data, sc, reg, opts...)
}

// Parse parses and validates a project from YAML bytes. A nil reg means
// registry.Default.
func Parse(data []byte, sc *scope.Context, reg *registry.Registry, opts ...ParseOption) (*Project, error) {
	if err := scope.Require(sc); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return build(&doc, sc, reg, newParseOptions(opts))
}

// ParseDir parses a project laid out as a directory: project.yaml (or
// project.yml) plus one artifact per file under tables/, seeds/ and
// sources/. Artifacts from files follow those declared in project.yaml.
func ParseDir(dir string, sc *scope.Context, reg *registry.Registry, opts ...ParseOption) (*Project, error) {
	if err := scope.Require(sc); err != nil {
		return nil, err
	}
	o := newParseOptions(opts)

	var projectFile string
	for _, name := range []string{"project.yaml", "project.yml"} {
		p := filepath.Join(dir, name)
		if _, err := o.fs.Stat(p); err == nil {
			projectFile = p
			break
		}
	}
	if projectFile == "" {
		return nil, fmt.Errorf("no project.yaml in %s", dir)
	}

	data, err := util.ReadFile(o.fs, projectFile)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", projectFile, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", projectFile, err)
	}

	tables, err := decodeDir[tableDoc](o.fs, dir, "tables")
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		t.doc.file = t.file
		doc.Tables = append(doc.Tables, t.doc)
	}

	seeds, err := decodeDir[seedDoc](o.fs, dir, "seeds")
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		s.doc.file = s.file
		doc.Seeds = append(doc.Seeds, s.doc)
	}

	sources, err := decodeDir[sourceDoc](o.fs, dir, "sources")
	if err != nil {
		return nil, err
	}
	for _, s := range sources {
		s.doc.file = s.file
		doc.Sources = append(doc.Sources, s.doc)
	}

	return build(&doc, sc, reg, o)
}

type fileDoc[T any] struct {
	doc  T
	file string
}

// decodeDir decodes every YAML file in dir/sub, sorted by name. A missing
// subdirectory yields nothing.
func decodeDir[T any](fs Filesystem, dir, sub string) ([]fileDoc[T], error) {
	path := filepath.Join(dir, sub)

	entries, err := fs.ReadDir(path)
	if err != nil {
		if _, statErr := fs.Stat(path); statErr != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []fileDoc[T]
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		file := filepath.Join(path, name)
		data, err := util.ReadFile(fs, file)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", file, err)
		}

		var doc T
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		docs = append(docs, fileDoc[T]{doc: doc, file: filepath.Join(sub, name)})
	}
	return docs, nil
}

// build validates doc against sc and assembles the Project.
func build(doc *document, sc *scope.Context, reg *registry.Registry, o parseOptions) (*Project, error) {
	if reg == nil {
		reg = registry.Default
	}

	var c collector
	files := make(map[string]string)

	project := &Project{
		Requires: doc.Requires,
		Vars:     doc.Vars,
	}

	c.add("requires", "", CheckRequires(doc.Requires, o.version))

	// connections first, so sources can see them
	current := sc
	for i := range doc.Connections {
		field := fmt.Sprintf("connections[%d]", i)

		conn, err := reg.Validate(&doc.Connections[i])
		if err != nil {
			c.add(field, "", err)
			continue
		}

		next, err := current.WithConnections(conn)
		if err != nil {
			c.add(field+".name", "", err)
			continue
		}
		current = next
		project.Connections = append(project.Connections, conn)
	}
	project.scope = current

	factory, err := paths.NewFactory(current, paths.WithFilesystem(o.fs))
	if err != nil {
		return nil, err
	}

	for i, td := range doc.Tables {
		prefix := fmt.Sprintf("tables[%d]", i)
		files[prefix] = td.file

		t := Table{
			Artifact:   Artifact{Name: td.Name, Description: td.Description},
			Config:     td.Config,
			References: td.References,
		}
		if td.References != nil && len(td.References) == 0 {
			c.add(prefix+".references", td.file, fmt.Errorf("must contain at least one reference when present"))
		}
		for j, cd := range td.Columns {
			t.Columns = append(t.Columns, bindTableColumn(&c, fmt.Sprintf("%s.columns[%d]", prefix, j), td.file, cd, current))
		}
		project.Tables = append(project.Tables, t)
	}

	for i, sd := range doc.Seeds {
		prefix := fmt.Sprintf("seeds[%d]", i)
		files[prefix] = sd.file

		s := Seed{
			Artifact: Artifact{Name: sd.Name, Description: sd.Description},
			SeedFile: SeedFile{
				Type:        sd.SeedFile.Type,
				Compression: sd.SeedFile.Compression,
			},
		}
		if s.SeedFile.Type == "" {
			s.SeedFile.Type = FormatInfer
		}
		if s.SeedFile.Compression == "" {
			s.SeedFile.Compression = CompressionInfer
		}
		if sd.SeedFile.Path != nil {
			resolved, err := factory.Resolve(sd.SeedFile.Path)
			c.add(prefix+".seed_file.path", sd.file, err)
			s.SeedFile.Path = resolved
		}
		for j, cd := range sd.Columns {
			s.Columns = append(s.Columns, bindColumn(&c, fmt.Sprintf("%s.columns[%d]", prefix, j), sd.file, cd))
		}
		project.Seeds = append(project.Seeds, s)
	}

	for i, sd := range doc.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		files[prefix] = sd.file

		s := Source{
			Artifact: Artifact{Name: sd.Name, Description: sd.Description},
			Config:   sd.Config,
		}
		if s.Config.Connection != "" {
			_, err := current.GetConnection(s.Config.Connection)
			c.add(prefix+".config.connection", sd.file, err)
		}
		for j, cd := range sd.Columns {
			s.Columns = append(s.Columns, bindColumn(&c, fmt.Sprintf("%s.columns[%d]", prefix, j), sd.file, cd))
		}
		project.Sources = append(project.Sources, s)
	}

	checkNames(&c, project, files)
	checkReferences(&c, project, files)

	if err := validate.Struct(project); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("validate project: %w", err)
		}
		for _, fe := range verrs {
			field := fieldPath(fe.Namespace())
			c.add(field, fileFor(files, field), fmt.Errorf("%s", validationMessage(fe)))
		}
	}

	if err := c.err(); err != nil {
		return nil, err
	}
	return project, nil
}

func bindColumn(c *collector, prefix, file string, cd columnDoc) Column {
	col := Column{Name: cd.Name, Description: cd.Description}
	if cd.DataType != "" {
		t, err := value.ParseDataType(cd.DataType)
		c.add(prefix+".data_type", file, err)
		col.DataType = t
	}
	return col
}

func bindTableColumn(c *collector, prefix, file string, cd columnDoc, sc *scope.Context) TableColumn {
	col := TableColumn{
		Column:    bindColumn(c, prefix, file, cd),
		Generator: cd.Generator,
	}

	if cd.Generator != "" {
		c.add(prefix+".generator", file, sc.CheckGenerator(cd.Generator))
	}

	if cd.Options != nil {
		col.Options = make(map[string]value.Option, len(cd.Options))

		keys := make([]string, 0, len(cd.Options))
		for k := range cd.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			node := cd.Options[k]
			opt, err := value.FromNode(&node)
			if err != nil {
				c.add(prefix+".options."+k, file, err)
				continue
			}
			col.Options[k] = opt
		}
	}

	return col
}

// checkNames rejects two artifacts of one kind sharing a name.
func checkNames(c *collector, p *Project, files map[string]string) {
	check := func(kind string, names []string) {
		seen := make(map[string]bool, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			if seen[name] {
				prefix := fmt.Sprintf("%ss[%d]", kind, i)
				c.add(prefix+".name", files[prefix], fmt.Errorf("%s %q is declared more than once", kind, name))
			}
			seen[name] = true
		}
	}

	check("table", artifactNames(p.Tables, func(t Table) string { return t.Name }))
	check("seed", artifactNames(p.Seeds, func(s Seed) string { return s.Name }))
	check("source", artifactNames(p.Sources, func(s Source) string { return s.Name }))
}

// checkReferences requires every table reference to name an existing
// artifact of its kind.
func checkReferences(c *collector, p *Project, files map[string]string) {
	available := map[ReferenceType][]string{
		ReferenceTable:  artifactNames(p.Tables, func(t Table) string { return t.Name }),
		ReferenceSeed:   artifactNames(p.Seeds, func(s Seed) string { return s.Name }),
		ReferenceSource: artifactNames(p.Sources, func(s Source) string { return s.Name }),
	}

	for i, t := range p.Tables {
		prefix := fmt.Sprintf("tables[%d]", i)
		for j, ref := range t.References {
			names, ok := available[ref.Type]
			if !ok || ref.Name == "" {
				continue
			}
			if slices.Contains(names, ref.Name) {
				continue
			}

			sorted := append([]string(nil), names...)
			sort.Strings(sorted)
			c.add(fmt.Sprintf("%s.references[%d].name", prefix, j), files[prefix], &scope.NotFoundError{
				Kind:      string(ref.Type),
				Name:      ref.Name,
				Available: sorted,
			})
		}
	}
}

func artifactNames[T any](items []T, name func(T) string) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, name(item))
	}
	return names
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// embedded struct names never show up in field paths
var embedded = map[string]bool{"Artifact": true, "Column": true}

func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if embedded[p] {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func fileFor(files map[string]string, field string) string {
	top, _, _ := strings.Cut(field, ".")
	return files[top]
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fe.Tag() + "=" + fe.Param()
		}
		return fe.Tag()
	}
}
