package domain

import (
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// PackageBinding says how generated tests refer to the package under test.
type PackageBinding struct {
	// ImportPath is empty when tests are compiled into the package itself.
	ImportPath string
	// Alias is the import name used to qualify symbols of an external test package.
	Alias string
}

// External reports whether tests live in a separate _test package.
func (b PackageBinding) External() bool {
	return b.ImportPath != ""
}

// Qualify returns the expression naming a package-level identifier.
func (b PackageBinding) Qualify(name string) string {
	if !b.External() {
		return name
	}

	return b.Alias + "." + name
}

// ModuleResolver reports the module path declared at the project root.
type ModuleResolver interface {
	ModulePath() (string, error)
}

// SourceModuleLoader decides how a test file binds to its source package.
// A test file in the source directory may join the package or use its _test
// package; a test file anywhere else must import it.
type SourceModuleLoader interface {
	Bind(source, test m.Path, sourcePackage, testPackage string) (PackageBinding, error)
}

type sourceModuleLoader struct {
	modules ModuleResolver
}

// NewSourceModuleLoader constructs a SourceModuleLoader. The report store
// satisfies ModuleResolver.
func NewSourceModuleLoader(modules ModuleResolver) SourceModuleLoader {
	return &sourceModuleLoader{modules: modules}
}

func (l *sourceModuleLoader) Bind(source, test m.Path, sourcePackage, testPackage string) (PackageBinding, error) {
	if sameDir(source, test) {
		if testPackage == sourcePackage {
			return PackageBinding{}, nil
		}

		if testPackage != sourcePackage+"_test" {
			return PackageBinding{}, fmt.Errorf("test package %q does not belong to package %q", testPackage, sourcePackage)
		}
	}

	if sourcePackage == "main" {
		return PackageBinding{}, fmt.Errorf("package main of %s cannot be imported by %s", source, test)
	}

	modulePath, err := l.modules.ModulePath()
	if err != nil {
		return PackageBinding{}, fmt.Errorf("failed to resolve import path of %s: %w", source, err)
	}

	importPath := modulePath
	if dir := path.Dir(string(source)); dir != "." {
		importPath = modulePath + "/" + dir
	}

	return PackageBinding{ImportPath: importPath, Alias: importAlias(importPath)}, nil
}

func sameDir(a, b m.Path) bool {
	return path.Dir(string(a)) == path.Dir(string(b))
}

var aliasReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

// importAlias derives a deterministic identifier from an import path.
func importAlias(importPath string) string {
	alias := aliasReplacer.Replace(importPath)

	r, _ := utf8.DecodeRuneInString(alias)
	if !unicode.IsLetter(r) && r != '_' {
		alias = "_" + alias
	}

	return alias
}
