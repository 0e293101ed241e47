// Package build runs the rewriter over a project's classes directory: it
// selects the classes to process, resolves the class hierarchy, and writes
// every fork of every rewritten class.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/bridge/manifest"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/classpath"
	"github.com/chazu/bridge/pkg/fork"
	"github.com/chazu/bridge/pkg/rewrite"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
	"github.com/chazu/bridge/pkg/weave"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("bridge.build")

// CacheFile is the hierarchy cache, kept next to the build state.
const CacheFile = "hierarchy.db"

// Config is one build invocation.
type Config struct {
	Manifest *manifest.Manifest
	// Force rewrites every selected class, as the force-recompile flag does.
	Force bool
	// Report is where the CBOR run report goes. Empty means the manifest's
	// build.output, which may be empty too.
	Report string
}

// Result summarizes a build.
type Result struct {
	RunID   string
	Started time.Time
	// Skipped is set when a skip word in the flags cancelled the build.
	Skipped bool
	// UpToDate is set when lazy mode found nothing to rewrite.
	UpToDate bool

	Classes   []*ClassResult
	Totals    rewrite.Counters
	ScanTime  time.Duration
	BuildTime time.Duration
}

// input is a project class read for the build.
type input struct {
	rel string
	cls *classfile.Class
}

// Run builds the project described by cfg.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	m := cfg.Manifest
	res := &Result{RunID: uuid.NewString(), Started: time.Now()}

	flags, mode, unknown := manifest.ParseFlags(m.Build.Flags)
	for _, w := range unknown {
		log.Warningf("Unknown recompilation flag: %s", w)
	}
	if mode == manifest.Skip {
		log.Warning("Skipped previously defined recompilation goal")
		res.Skipped = true
		return res, nil
	}
	if cfg.Force {
		mode = manifest.Force
	}

	root := m.ClassesDir()
	all, err := Enumerate(root, append([]string{DefaultInclude}, m.Build.Includes...), nil)
	if err != nil {
		return nil, fmt.Errorf("build: listing classes: %w", err)
	}
	selected, err := Enumerate(root, m.Build.Includes, m.Build.Excludes)
	if err != nil {
		return nil, fmt.Errorf("build: listing classes: %w", err)
	}
	state, err := LoadState(m.StatePath())
	if err != nil {
		return nil, err
	}
	pending, err := pendingClasses(root, selected, state, mode)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		log.Info("Nothing to recompile")
		res.UpToDate = true
		return res, nil
	}

	log.Info("Resolving class hierarchy...")
	start := time.Now()
	cp, err := openClasspath(ctx, m)
	if err != nil {
		return nil, err
	}
	defer cp.Close()
	if w := CheckVersion(cp, m.Project.APIVersion); w != nil {
		log.Warningf("%s", w)
	}
	g := types.NewGraph(cp)
	inputs, err := scanProject(ctx, g, root, all, m.Build.Jobs)
	if err != nil {
		return nil, err
	}
	res.ScanTime = time.Since(start)

	log.Info("Building bridges...")
	start = time.Now()
	results := make([]*ClassResult, len(pending))
	sums := make([]uint64, len(pending))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(m.Build.Jobs, 1))
	for i, rel := range pending {
		if gctx.Err() != nil {
			break
		}
		in := inputs[rel]
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, sum, err := process(root, in, g, flags)
			if err != nil {
				return fmt.Errorf("build: %s: %w", rel, err)
			}
			results[i], sums[i] = r, sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.BuildTime = time.Since(start)

	for i, r := range results {
		if r.Changed() {
			log.Info(r.Line())
		}
		res.Totals.Add(r.Counters)
		state.Classes[r.Path] = ClassState{Fingerprint: sums[i], Forks: r.Forks}
	}
	res.Classes = results

	log.Infof("Hierarchy resolved in %s", duration(res.ScanTime))
	log.Infof("Recompiled %s classes in %s", humanize.Comma(int64(len(results))), duration(res.BuildTime))

	state.RunID, state.Time = res.RunID, res.Started.Unix()
	if err := state.Save(m.StatePath()); err != nil {
		return nil, err
	}
	report := cfg.Report
	if report == "" {
		report = m.Path(m.Build.Output)
	}
	if report != "" {
		if err := WriteReport(report, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// pendingClasses drops the classes lazy mode can skip: those whose bytes
// are the output the previous run recorded.
func pendingClasses(root string, selected []string, state *State, mode manifest.Mode) ([]string, error) {
	if mode == manifest.Force {
		return selected, nil
	}
	var out []string
	for _, rel := range selected {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		if !state.Current(rel, data) {
			out = append(out, rel)
		}
	}
	return out, nil
}

// openClasspath opens the JDK, the configured entries and the resolved
// dependencies, backed by the hierarchy cache when it can be opened.
func openClasspath(ctx context.Context, m *manifest.Manifest) (*classpath.Path, error) {
	var locs []string
	if m.Classpath.JDK != "" {
		jdk, err := classpath.JDK(m.Classpath.JDK)
		if err != nil {
			return nil, err
		}
		locs = append(locs, jdk...)
	}
	locs = append(locs, m.EntryPaths()...)
	deps, err := manifest.NewResolver(m).Resolve()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	for _, d := range deps {
		locs = append(locs, d.LocalPath)
	}
	for _, l := range locs {
		log.Infof("  + %s", l)
	}

	opts := classpath.Options{Jobs: m.Build.Jobs}
	cache, err := classpath.OpenCache(filepath.Join(filepath.Dir(m.StatePath()), CacheFile))
	if err != nil {
		log.Warningf("hierarchy cache disabled: %s", err)
	} else {
		defer cache.Close()
		opts.Cache = cache
	}
	return classpath.Open(ctx, locs, opts)
}

// scanProject parses every project class and defines it in g. Classes are
// parsed in parallel and defined in path order.
func scanProject(ctx context.Context, g *types.Graph, root string, rels []string, jobs int) (map[string]*input, error) {
	ins := make([]*input, len(rels))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(jobs, 1))
	for i, rel := range rels {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			c, err := classfile.Parse(data)
			if err != nil {
				return fmt.Errorf("build: %s: %w", rel, err)
			}
			ins[i] = &input{rel: rel, cls: c}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*input, len(ins))
	for _, in := range ins {
		log.Debugf(" + %s", in.rel)
		scan.Define(g, in.cls)
		out[in.rel] = in
	}
	return out, nil
}

// process rewrites one class and writes its forks. Nothing is written
// unless every fork assembled. The fingerprint of the base fork is
// returned for the build state.
func process(root string, in *input, g *types.Graph, flags manifest.Flags) (*ClassResult, uint64, error) {
	c := in.cls
	log.Debugf("<- %s", in.rel)
	rc := rewrite.NewClass(g, c)
	bodies, err := rewrite.Decode(c)
	if err != nil {
		return nil, 0, err
	}
	if err := rc.Methods(c, bodies); err != nil {
		return nil, 0, err
	}
	if err := weave.Apply(rc, c, bodies); err != nil {
		return nil, 0, err
	}

	targets := fork.Targets(rc)
	rc.Forks = len(targets) - 1
	outs := make([][]byte, len(targets))
	for i, t := range targets {
		if outs[i], err = fork.Emit(c, rc, bodies, t, flags); err != nil {
			return nil, 0, err
		}
	}

	r := &ClassResult{Path: in.rel, Name: c.Name, Counters: rc.Counters}
	for i, t := range targets {
		dst := filepath.Join(root, filepath.FromSlash(in.rel))
		if t.MultiRelease {
			dst = filepath.Join(root, filepath.FromSlash(t.Path(c.Name)))
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, 0, err
		}
		if err := os.WriteFile(dst, outs[i], 0o644); err != nil {
			return nil, 0, err
		}
		r.Forks = append(r.Forks, t.Version)
	}
	return r, Fingerprint(outs[0]), nil
}

// duration renders a timing with SI prefixes, e.g. "12.35 ms".
func duration(d time.Duration) string {
	return humanize.SIWithDigits(d.Seconds(), 2, "s")
}
