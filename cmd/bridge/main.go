// Bridge CLI - rewrites the compiled classes of a project in place
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chazu/bridge/build"
	"github.com/chazu/bridge/manifest"
	"github.com/chazu/bridge/pkg/classpath"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// listFlag collects a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	config := flag.String("config", "", "Project directory or bridge.toml (default: search upward for bridge.toml)")
	classes := flag.String("classes", "", "Classes directory (overrides build.classes)")
	jdk := flag.String("jdk", "", "JDK home for the class hierarchy (default: classpath.jdk, then $JAVA_HOME)")
	jobs := flag.Int("j", 0, "Classes rewritten in parallel (default: build.jobs, then GOMAXPROCS)")
	force := flag.Bool("force", false, "Rewrite every selected class, even if it is up to date")
	report := flag.String("report", "", "Write a CBOR run report to this file")
	verbose := flag.Bool("v", false, "Verbose output")
	quiet := flag.Bool("q", false, "Only print warnings and errors")
	logFile := flag.String("log", "", "Write the log to this file instead of stderr")
	version := flag.Bool("version", false, "Print the version and exit")
	var cp, flags, includes, excludes listFlag
	flag.Var(&cp, "cp", "Classpath entries for the class hierarchy, as a path list (repeatable)")
	flag.Var(&flags, "flag", "Recompilation flag, e.g. no-debug or force-recompile (repeatable)")
	flag.Var(&includes, "include", "Pattern of classes to rewrite, e.g. com/example/**/*.class (repeatable)")
	flag.Var(&excludes, "exclude", "Pattern of classes to leave alone (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bridge [options] [classes-dir]\n\n")
		fmt.Fprintf(os.Stderr, "Resolves bridge markers, synthesizes bridge members and writes multi-release\n")
		fmt.Fprintf(os.Stderr, "forks for the compiled classes of a project.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bridge                          # Use bridge.toml from this or a parent directory\n")
		fmt.Fprintf(os.Stderr, "  bridge -jdk /opt/jdk-17 out     # Rewrite out/ against a JDK 17 hierarchy\n")
		fmt.Fprintf(os.Stderr, "  bridge -flag no-debug -force    # Strip debug info from every class\n")
	}
	flag.Parse()

	if *version {
		fmt.Printf("bridge %s\n", build.Version)
		return
	}

	verbosity := 1
	switch {
	case *quiet:
		verbosity = 0
	case *verbose:
		verbosity = 2
	}
	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(verbosity, logPath)

	m, err := loadManifest(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Command line values win over bridge.toml
	if flag.NArg() > 0 {
		*classes = flag.Arg(0)
	}
	if *classes != "" {
		m.Build.Classes = absPath(*classes)
	}
	if *jdk != "" {
		m.Classpath.JDK = absPath(*jdk)
	}
	for _, list := range cp {
		for _, e := range classpath.SplitList(list) {
			m.Classpath.Entries = append(m.Classpath.Entries, absPath(e))
		}
	}
	m.Build.Flags = append(m.Build.Flags, flags...)
	if len(includes) > 0 {
		m.Build.Includes = includes
	}
	m.Build.Excludes = append(m.Build.Excludes, excludes...)
	if *jobs > 0 {
		m.Build.Jobs = *jobs
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := build.Config{Manifest: m, Force: *force}
	if *report != "" {
		cfg.Report = absPath(*report)
	}
	if _, err := build.Run(ctx, cfg); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest reads the configuration named by -config, or the nearest
// bridge.toml, or falls back to defaults for the working directory.
func loadManifest(config string) (*manifest.Manifest, error) {
	if config != "" {
		if strings.HasSuffix(config, ".toml") {
			config = filepath.Dir(config)
		}
		return manifest.Load(config)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil || m != nil {
		return m, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return manifest.Default(wd), nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
