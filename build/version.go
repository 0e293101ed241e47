package build

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/chazu/bridge/pkg/classpath"
)

// Version is the version of this tool. Release builds set it with
// -ldflags "-X github.com/chazu/bridge/build.Version=...".
var Version = "dev"

// markerProperties locates the Maven metadata of the marker runtime archive.
const markerProperties = "META-INF/maven/*/bridge/pom.properties"

// VersionMismatchWarning reports disagreeing versions of the marker runtime,
// the project configuration, and this tool. It never fails a build.
type VersionMismatchWarning struct {
	What string // e.g. "The api version differs from api_version"
	Have string
	Want string
}

func (w *VersionMismatchWarning) Error() string {
	return w.What + ": " + w.Have + " != " + w.Want
}

// CheckVersion compares the api_version of the project (api, may be empty)
// against the marker runtime found on p and against the tool version. A dev
// build of the tool is not compared.
func CheckVersion(p *classpath.Path, api string) *VersionMismatchWarning {
	found := markerVersion(p)
	switch {
	case found != "" && api != "":
		if !strings.EqualFold(api, found) {
			return &VersionMismatchWarning{What: "The api version differs from api_version", Have: found, Want: api}
		}
	case found != "":
		if Version != "dev" && !strings.EqualFold(Version, found) {
			return &VersionMismatchWarning{What: "The tool version differs from the api version", Have: Version, Want: found}
		}
	case api != "":
		if Version != "dev" && !strings.EqualFold(Version, api) {
			return &VersionMismatchWarning{What: "The tool version differs from api_version", Have: Version, Want: api}
		}
	}
	return nil
}

func markerVersion(p *classpath.Path) string {
	if p == nil {
		return ""
	}
	for _, name := range p.Glob(markerProperties) {
		data, err := p.Resource(name)
		if err != nil {
			log.Debugf("%s", err)
			continue
		}
		if v := property(data, "version"); v != "" {
			return v
		}
	}
	return ""
}

// property reads one key of a java.util.Properties file. Only the plain
// key=value form Maven writes is understood.
func property(data []byte, key string) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			k, v, ok = strings.Cut(line, ":")
		}
		if ok && strings.TrimSpace(k) == key {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
