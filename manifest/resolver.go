package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string // dependency name
	LocalPath string // archive or directory on disk
}

// Coordinate identifies an archive in a Maven repository.
type Coordinate struct {
	Group, Artifact, Version string
	Type                     string // defaults to jar
	Classifier               string
}

var coordinateSep = regexp.MustCompile(`\s*:+\s*`)

// ParseCoordinate reads groupId:artifactId:version[:type[:classifier]].
func ParseCoordinate(s string) (Coordinate, error) {
	part := coordinateSep.Split(strings.TrimSpace(s), 6)
	if len(part) < 3 || len(part) > 5 {
		return Coordinate{}, fmt.Errorf("dependency format does not match groupId:artifactId:version[:type[:classifier]]: %q", s)
	}
	c := Coordinate{Group: part[0], Artifact: part[1], Version: part[2], Type: "jar"}
	if len(part) > 3 && part[3] != "" {
		c.Type = part[3]
	}
	if len(part) > 4 {
		c.Classifier = part[4]
	}
	return c, nil
}

// Path returns the location of the archive below a repository root.
func (c Coordinate) Path(repo string) string {
	file := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	dir := filepath.Join(append([]string{repo}, strings.Split(c.Group, ".")...)...)
	return filepath.Join(dir, c.Artifact, c.Version, file+"."+c.Type)
}

func (c Coordinate) String() string {
	s := c.Group + ":" + c.Artifact + ":" + c.Version
	if c.Type != "jar" || c.Classifier != "" {
		s += ":" + c.Type
	}
	if c.Classifier != "" {
		s += ":" + c.Classifier
	}
	return s
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	repo     string
}

// NewResolver creates a new dependency resolver. Coordinates are looked up
// in the manifest's repository, or ~/.m2/repository.
func NewResolver(m *Manifest) *Resolver {
	repo := m.Path(m.Classpath.Repository)
	if repo == "" {
		if home, err := os.UserHomeDir(); err == nil {
			repo = filepath.Join(home, ".m2", "repository")
		}
	}
	return &Resolver{manifest: m, repo: repo}
}

// Resolve resolves all dependencies in name order.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	names := make([]string, 0, len(r.manifest.Dependencies))
	for name := range r.manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		rd, err := r.resolveOne(name, r.manifest.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		order = append(order, *rd)
	}
	return order, nil
}

// resolveOne resolves a single dependency.
func (r *Resolver) resolveOne(name string, dep Dependency) (*ResolvedDep, error) {
	var localPath string
	switch {
	case dep.Path != "":
		p, err := filepath.Abs(r.manifest.Path(dep.Path))
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}
		localPath = p
	case dep.Coordinate != "":
		c, err := ParseCoordinate(dep.Coordinate)
		if err != nil {
			return nil, err
		}
		if r.repo == "" {
			return nil, fmt.Errorf("no repository to look up %s", c)
		}
		localPath = c.Path(r.repo)
	default:
		return nil, fmt.Errorf("dependency %q has no path or coordinate specified", name)
	}

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("dependency %q not found at %s: %w", name, localPath, err)
	}
	return &ResolvedDep{Name: name, LocalPath: localPath}, nil
}
