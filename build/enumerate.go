package build

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultInclude selects every class file.
const DefaultInclude = "**/*.class"

// versionsPrefix holds multi-release outputs, which are never inputs.
const versionsPrefix = "META-INF/versions/"

// Match reports whether the slash-separated name matches an Ant-style
// pattern: path.Match per segment, with ** matching any number of segments.
func Match(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], name[0]); !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if Match(strings.TrimPrefix(filepath.ToSlash(p), "/"), name) {
			return true
		}
	}
	return false
}

// Enumerate lists the class files below root that match an include and no
// exclude, as sorted slash-separated relative paths. No includes means
// DefaultInclude.
func Enumerate(root string, includes, excludes []string) ([]string, error) {
	if len(includes) == 0 {
		includes = []string{DefaultInclude}
	}
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel+"/" == versionsPrefix {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(rel, ".class") {
			return nil
		}
		if matchAny(includes, rel) && !matchAny(excludes, rel) {
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
