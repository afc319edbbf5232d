// Package detect guesses a project-type tag for the working directory so
// `compass init` can pick a sensible default.
package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultType is used when nothing in the directory is recognized.
const DefaultType = "general"

// typeRule examines dir and returns a tag + true if its indicator files are
// present.
type typeRule func(dir string) (string, bool)

// typeRules is evaluated in order; first match wins.
var typeRules = []typeRule{
	detectNode,
	detectByFile("go.mod", "go"),
	detectByFile("Cargo.toml", "rust"),
	detectPython,
	detectJava,
	detectDocs,
}

// ProjectType returns the project-type tag for dir, or DefaultType.
func ProjectType(dir string) string {
	for _, rule := range typeRules {
		if tag, ok := rule(dir); ok {
			return tag
		}
	}
	return DefaultType
}

// packageJSON is the minimal structure we parse from package.json.
type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// webFrameworks marks a Node project as a web app.
var webFrameworks = []string{"react", "next", "vue", "nuxt", "svelte", "@sveltejs/kit", "@angular/core", "astro"}

func detectNode(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", false
	}

	var pkg packageJSON
	_ = json.Unmarshal(data, &pkg)
	for _, fw := range webFrameworks {
		if _, ok := pkg.Dependencies[fw]; ok {
			return "web", true
		}
		if _, ok := pkg.DevDependencies[fw]; ok {
			return "web", true
		}
	}

	if fileExists(filepath.Join(dir, "tsconfig.json")) {
		return "typescript", true
	}
	return "javascript", true
}

func detectPython(dir string) (string, bool) {
	for _, name := range []string{"pyproject.toml", "requirements.txt", "setup.py"} {
		if fileExists(filepath.Join(dir, name)) {
			return "python", true
		}
	}
	return "", false
}

func detectJava(dir string) (string, bool) {
	for _, name := range []string{"pom.xml", "build.gradle", "build.gradle.kts"} {
		if fileExists(filepath.Join(dir, name)) {
			return "java", true
		}
	}
	return "", false
}

// detectDocs matches directories that hold only markdown or text files.
func detectDocs(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	docs := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".markdown", ".txt", ".rst":
			docs++
		default:
			return "", false
		}
	}
	return "docs", docs > 0
}

func detectByFile(name, tag string) typeRule {
	return func(dir string) (string, bool) {
		return tag, fileExists(filepath.Join(dir, name))
	}
}

// fileExists returns true if path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
