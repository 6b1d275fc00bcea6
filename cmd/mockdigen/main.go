// mockdi/mockdigen/main.go
package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"golang.org/x/mod/modfile"
)

type Imports struct {
	DI     string `json:"di" toml:"di"`
	Target string `json:"target" toml:"target"`
}

// DoubleSpec names one interface of the target package and the mockgen mock
// standing in for it.
type DoubleSpec struct {
	Name string `json:"name" toml:"name"`
	Mock string `json:"mock" toml:"mock"`
	Ctor string `json:"ctor" toml:"ctor"`
}

// CatalogSpec describes one generated catalog file.
type CatalogSpec struct {
	Package     string       `json:"package" toml:"package"`
	TargetAlias string       `json:"targetAlias" toml:"target_alias"`
	Func        string       `json:"func" toml:"func"`
	Accessors   *bool        `json:"accessors" toml:"accessors"`
	Imports     Imports      `json:"imports" toml:"imports"`
	Doubles     []DoubleSpec `json:"doubles" toml:"doubles"`
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Str("app", "mockdigen").Logger()

func run(args []string) (err error) {
	fs := flag.NewFlagSet("mockdigen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	specPath := fs.String("spec", "", "path to doubles spec (.toml or .json)")
	outPath := fs.String("out", "", "output .go file path")
	verbose := fs.Bool("v", false, "log generation details")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*outPath) == "" {
		return fmt.Errorf("missing -out")
	}
	if strings.TrimSpace(*specPath) == "" {
		return fmt.Errorf("missing -spec")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.Level(level)

	// generation helpers fail hard; surface that as an error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mockdigen: %s", toString(r))
		}
	}()

	genCatalog(log, *specPath, *outPath)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		logger.Error().Err(err).Msg("generation failed")
		os.Exit(1)
	}
}

func genCatalog(log zerolog.Logger, specPath, outPath string) {
	raw := mustRead(specPath)
	spec := decodeSpec(specPath, raw)

	applyDefaults(&spec, outPath)
	validateSpec(&spec)
	inferImports(&spec, outPath)

	// deterministic ordering
	sort.Slice(spec.Doubles, func(i, j int) bool { return spec.Doubles[i].Name < spec.Doubles[j].Name })

	preserved := readImportsFromExistingOut(outPath)
	required := []GoImport{
		{Name: "di", Path: spec.Imports.DI},
		{Name: spec.TargetAlias, Path: spec.Imports.Target},
	}
	mergedImports := mergeImports(required, preserved)

	data := map[string]any{
		"Spec":      spec,
		"SpecPath":  filepath.ToSlash(specPath),
		"SpecHash":  sha256Hex(raw),
		"Imports":   mergedImports,
		"Accessors": *spec.Accessors,
	}

	src := mustExecTemplate(catalogTpl, data)
	writeFormatted(outPath, src)

	log.Info().
		Str("spec", filepath.ToSlash(specPath)).
		Str("out", filepath.ToSlash(outPath)).
		Int("doubles", len(spec.Doubles)).
		Msg("catalog generated")
	for _, d := range spec.Doubles {
		log.Debug().Str("interface", spec.TargetAlias+"."+d.Name).Str("mock", d.Mock).Msg("double")
	}
}

// decodeSpec picks the format from the file extension. Unknown keys are
// rejected in both formats.
func decodeSpec(specPath string, raw []byte) CatalogSpec {
	var spec CatalogSpec
	switch strings.ToLower(filepath.Ext(specPath)) {
	case ".toml":
		meta, err := toml.Decode(string(raw), &spec)
		must(err)
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			die("unknown keys in " + filepath.ToSlash(specPath) + ": " + strings.Join(keys, ", "))
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		must(dec.Decode(&spec))
	default:
		die("unsupported spec format " + quote(filepath.Ext(specPath)) + " (want .toml or .json)")
	}
	return spec
}

func applyDefaults(s *CatalogSpec, outPath string) {
	if strings.TrimSpace(s.Package) == "" {
		s.Package = filepath.Base(filepath.Dir(outPath))
	}
	if strings.TrimSpace(s.Func) == "" {
		s.Func = "Doubles"
	}
	if s.Accessors == nil {
		on := true
		s.Accessors = &on
	}
	if strings.TrimSpace(s.TargetAlias) == "" && strings.TrimSpace(s.Imports.Target) != "" {
		s.TargetAlias = lastElem(s.Imports.Target)
	}
	for i := range s.Doubles {
		d := &s.Doubles[i]
		if d.Mock == "" {
			d.Mock = "Mock" + d.Name
		}
		if d.Ctor == "" {
			d.Ctor = "New" + d.Mock
		}
	}
}

func validateSpec(s *CatalogSpec) {
	if !token.IsIdentifier(s.Package) {
		die("invalid package name " + quote(s.Package))
	}
	if !token.IsIdentifier(s.Func) {
		die("invalid catalog func name " + quote(s.Func))
	}
	if s.TargetAlias != "" && !token.IsIdentifier(s.TargetAlias) {
		die("invalid target alias " + quote(s.TargetAlias))
	}
	if len(s.Doubles) == 0 {
		die("spec declares no doubles")
	}
	seen := map[string]bool{}
	for _, d := range s.Doubles {
		for _, id := range []string{d.Name, d.Mock, d.Ctor} {
			if !token.IsIdentifier(id) {
				die("invalid identifier " + quote(id) + " in double " + quote(d.Name))
			}
		}
		if seen[d.Name] {
			die("duplicate double " + quote(d.Name))
		}
		seen[d.Name] = true
	}
}

// -------------------------
// Import inference
// -------------------------
//
// The target import (package declaring the interfaces) comes from, in order:
// the spec, an import of the output package matching the alias, or the parent
// directory of the output package (mocks usually live in <pkg>/mocks).
//
// The di import comes from the spec, an import of the output package, or the
// module containing this generator.

func inferImports(s *CatalogSpec, outPath string) {
	pkgDir := filepath.Dir(outPath)
	scanned := scanPackageImports(pkgDir)

	if strings.TrimSpace(s.Imports.Target) == "" {
		if s.TargetAlias != "" {
			if gi, ok := findImportByAliasOrSuffix(scanned, s.TargetAlias, "/"+s.TargetAlias); ok {
				s.Imports.Target = gi.Path
			}
		}
	}
	if strings.TrimSpace(s.Imports.Target) == "" {
		parent := filepath.Dir(pkgDir)
		modRoot, modPath, err := findModule(parent)
		if err != nil {
			die("cannot infer imports.target: no target import in sources and cannot find project go.mod: " + err.Error())
		}
		pkgImport, perr := moduleImportPathForDir(modRoot, modPath, parent)
		if perr != nil {
			die("cannot infer imports.target: cannot compute import for " + filepath.ToSlash(parent) + ": " + perr.Error())
		}
		s.Imports.Target = pkgImport
	}
	if s.TargetAlias == "" {
		s.TargetAlias = lastElem(s.Imports.Target)
		if !token.IsIdentifier(s.TargetAlias) {
			die("cannot derive target alias from " + quote(s.Imports.Target) + ": set target_alias")
		}
	}

	if strings.TrimSpace(s.Imports.DI) == "" {
		if gi, ok := findImportByAliasOrSuffix(scanned, "di", "/di"); ok {
			s.Imports.DI = gi.Path
		} else {
			s.Imports.DI = inferDIRuntimeImportFromGeneratorModule("di")
		}
	}
}

// inferDIRuntimeImportFromGeneratorModule computes the import path of the di
// package from the go.mod of the module that contains this generator.
func inferDIRuntimeImportFromGeneratorModule(runtimePkgRel string) string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		die("cannot infer di runtime import: runtime.Caller failed")
	}
	genDir := filepath.Dir(thisFile)

	modRoot, modPath, err := findModule(genDir)
	if err != nil {
		die("cannot infer di runtime import: cannot find go.mod for generator module: " + err.Error())
	}

	if strings.TrimSpace(runtimePkgRel) == "" {
		runtimePkgRel = "di"
	}

	runtimeAbs := filepath.Join(modRoot, filepath.FromSlash(runtimePkgRel))
	if !dirExists(runtimeAbs) {
		die("cannot infer di runtime import: expected runtime package dir at " + filepath.ToSlash(runtimeAbs))
	}

	return modPath + "/" + filepath.ToSlash(runtimePkgRel)
}

// -------------------------
// go.mod helpers
// -------------------------

type cmdError struct{ msg string }

func (e *cmdError) Error() string { return e.msg }

func findModule(startDir string) (modRoot string, modPath string, err error) {
	dir := startDir
	for {
		gomod := filepath.Join(dir, "go.mod")
		if fileExists(gomod) {
			b, rerr := os.ReadFile(gomod)
			if rerr != nil {
				return "", "", rerr
			}
			if mod := modfile.ModulePath(b); mod != "" {
				return dir, mod, nil
			}
			return "", "", &cmdError{msg: "go.mod missing module directive at " + filepath.ToSlash(gomod)}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", &cmdError{msg: "could not find go.mod starting from " + filepath.ToSlash(startDir)}
}

func moduleImportPathForDir(modRoot, modPath, dir string) (string, error) {
	rel, err := filepath.Rel(modRoot, dir)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if rel == "." {
		return modPath, nil
	}
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", &cmdError{msg: "directory is outside module root: dir=" + filepath.ToSlash(dir) + " modRoot=" + filepath.ToSlash(modRoot)}
	}
	return modPath + "/" + rel, nil
}

func dirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// -------------------------
// Imports of the output package
// -------------------------

type GoImport struct {
	Name string // optional alias, e.g. "greeter"
	Path string
}

// scanPackageImports reads imports from the non-generated, non-test .go files
// in pkgDir, keeping aliases.
func scanPackageImports(pkgDir string) []GoImport {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil
	}

	var out []GoImport
	fset := token.NewFileSet()

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if strings.HasSuffix(name, ".gen.go") || strings.Contains(name, ".gen.") || strings.HasSuffix(name, "_gen.go") {
			continue
		}

		full := filepath.Join(pkgDir, name)
		src, rerr := os.ReadFile(full)
		if rerr != nil {
			continue
		}
		f, perr := parser.ParseFile(fset, full, src, parser.ImportsOnly)
		if perr != nil {
			continue
		}
		for _, imp := range f.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			alias := ""
			if imp.Name != nil {
				alias = imp.Name.Name
			}
			out = append(out, GoImport{Name: alias, Path: path})
		}
	}

	return dedupeAndSortImports(out)
}

// findImportByAliasOrSuffix prefers an alias match, then a suffix match.
func findImportByAliasOrSuffix(imports []GoImport, preferAlias, preferSuffix string) (GoImport, bool) {
	if preferAlias != "" {
		for _, gi := range imports {
			if gi.Name == preferAlias {
				return gi, true
			}
		}
	}
	if preferSuffix != "" {
		for _, gi := range imports {
			if strings.HasSuffix(gi.Path, preferSuffix) {
				return gi, true
			}
		}
	}
	return GoImport{}, false
}

func dedupeAndSortImports(imps []GoImport) []GoImport {
	type key struct {
		path string
		name string
	}
	seen := map[key]bool{}
	out := make([]GoImport, 0, len(imps))
	for _, gi := range imps {
		k := key{path: gi.Path, name: gi.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, gi)
	}
	sortImports(out)
	return out
}

// readImportsFromExistingOut keeps imports added by hand to a previously
// generated file.
func readImportsFromExistingOut(outPath string) []GoImport {
	if strings.TrimSpace(outPath) == "" {
		return nil
	}
	src, err := os.ReadFile(outPath)
	if err != nil {
		return nil
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, outPath, src, parser.ImportsOnly)
	if err != nil {
		return nil
	}

	out := make([]GoImport, 0, len(f.Imports))
	for _, imp := range f.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		name := ""
		if imp.Name != nil {
			name = imp.Name.Name
		}
		out = append(out, GoImport{Name: name, Path: path})
	}
	return out
}

// mergeImports adds preserved imports to the required ones. A preserved
// import of a required path is dropped so the alias never changes.
func mergeImports(required []GoImport, preserved []GoImport) []GoImport {
	byPath := map[string]bool{}
	out := make([]GoImport, 0, len(required)+len(preserved))
	for _, gi := range required {
		if byPath[gi.Path] {
			continue
		}
		byPath[gi.Path] = true
		out = append(out, gi)
	}
	for _, gi := range preserved {
		if byPath[gi.Path] {
			continue
		}
		byPath[gi.Path] = true
		out = append(out, gi)
	}
	sortImports(out)
	return out
}

func sortImports(imps []GoImport) {
	sort.Slice(imps, func(i, j int) bool {
		if imps[i].Path == imps[j].Path {
			return imps[i].Name < imps[j].Name
		}
		return imps[i].Path < imps[j].Path
	})
}

// -------------------------
// Misc helpers
// -------------------------

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func mustRead(path string) []byte {
	b, err := os.ReadFile(path)
	must(err)
	return b
}

func mustExecTemplate(tpl *template.Template, data any) []byte {
	var sb strings.Builder
	must(tpl.Execute(&sb, data))
	return []byte(sb.String())
}

func writeFormatted(out string, src []byte) {
	fmtSrc, err := format.Source(src)
	if err != nil {
		_ = os.WriteFile(out, src, 0o644)
		die("gofmt/format failed: " + err.Error())
	}
	must(os.WriteFile(out, fmtSrc, 0o644))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func die(msg string) {
	panic(msg)
}

func lastElem(importPath string) string {
	importPath = strings.TrimSuffix(importPath, "/")
	if i := strings.LastIndex(importPath, "/"); i >= 0 {
		return importPath[i+1:]
	}
	return importPath
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case error:
		return x.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// -------------------------
// Template
// -------------------------

var catalogTpl = template.Must(template.New("catalog").Parse(`// Code generated by mockdigen; DO NOT EDIT.
// Spec: {{.SpecPath}}
// Spec-SHA256: {{.SpecHash}}

package {{.Spec.Package}}

import (
{{- range .Imports }}
	{{- if .Name }}
	{{ .Name }} "{{ .Path }}"
	{{- else }}
	"{{ .Path }}"
	{{- end }}
{{- end }}
)

// {{.Spec.Func}} returns a catalog holding the double factory of every
// interface mocked in this package.
func {{.Spec.Func}}() *di.Catalog {
	return di.NewCatalog(
{{- range .Spec.Doubles }}
		di.Mock[{{ $.Spec.TargetAlias }}.{{ .Name }}]({{ .Ctor }}),
{{- end }}
	)
}
{{- if .Accessors }}
{{ range .Spec.Doubles }}
// {{ .Name }}Double returns the double inj delivers for {{ $.Spec.TargetAlias }}.{{ .Name }}.
func {{ .Name }}Double(inj *di.Injector) *{{ .Mock }} {
	return di.Acquire[{{ $.Spec.TargetAlias }}.{{ .Name }}](inj).(*{{ .Mock }})
}
{{ end }}
{{- end }}
`))
