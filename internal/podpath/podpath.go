// Package podpath provides helpers for pod paths: slash-separated paths that
// are always absolute relative to the pod root ("/content/pages/intro.md").
package podpath

import (
	"path"
	"strings"
)

const (
	// BlueprintName is the basename of a collection's configuration file.
	BlueprintName = "_blueprint.yaml"
	// RoutesName is the basename of a collection-level routes override.
	RoutesName = "_routes.yaml"
	// ContentRoot is the directory holding every collection.
	ContentRoot = "/content"
	// ControlDir is the pod's private state directory.
	ControlDir = "/.grow"
)

// Clean normalizes p into an absolute, slash-separated pod path.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Join joins elements into a cleaned pod path.
func Join(elem ...string) string {
	return Clean(path.Join(elem...))
}

// Dir returns the parent directory of p.
func Dir(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the final element of p.
func Base(p string) string {
	return path.Base(p)
}

// Ext returns the extension of p including the dot.
func Ext(p string) string {
	return path.Ext(p)
}

// SplitLocale splits "/a/intro@fr.md" into ("/a/intro.md", "fr"). Paths
// without a locale suffix are returned unchanged with an empty locale.
func SplitLocale(p string) (string, string) {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	i := strings.LastIndex(stem, "@")
	if i <= 0 || i == len(stem)-1 {
		return p, ""
	}
	return dir + stem[:i] + ext, stem[i+1:]
}

// RootPodPath strips any "@locale" suffix from the basename of p.
func RootPodPath(p string) string {
	root, _ := SplitLocale(p)
	return root
}

// LocalizedPath returns the locale variant path "base@locale.ext" of p.
func LocalizedPath(p, locale string) string {
	root := RootPodPath(p)
	if locale == "" {
		return root
	}
	ext := path.Ext(root)
	return strings.TrimSuffix(root, ext) + "@" + locale + ext
}

// BaseName returns the basename of p without its extension or locale suffix.
func BaseName(p string) string {
	root := RootPodPath(p)
	file := path.Base(root)
	return strings.TrimSuffix(file, path.Ext(file))
}

// IsBlueprint reports whether p is a collection blueprint.
func IsBlueprint(p string) bool {
	return path.Base(p) == BlueprintName
}

// IsContent reports whether p lives under the content root.
func IsContent(p string) bool {
	return HasPrefix(Clean(p), ContentRoot)
}

// HasPrefix reports whether p equals dir or is contained in it.
func HasPrefix(p, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// Rel returns p relative to dir, without a leading slash.
func Rel(dir, p string) string {
	rel := strings.TrimPrefix(Clean(p), strings.TrimSuffix(Clean(dir), "/"))
	return strings.TrimPrefix(rel, "/")
}
