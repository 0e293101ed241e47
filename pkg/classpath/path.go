// Package classpath supplies class hierarchy records from directories, jar
// files, and JDK module files.
package classpath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/types"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("bridge.classpath")

// jmodMagic prefixes the zip payload of a .jmod file.
var jmodMagic = []byte{'J', 'M', 0x01, 0x00}

// Path is an ordered list of class sources. The first source that holds a
// class wins. Path implements types.Source.
type Path struct {
	entries []entry
	cache   *Cache
}

type entry interface {
	lookup(name string) (*types.Record, error)
	resource(name string) ([]byte, error)
	resources() []string
	close() error
}

// Options configures Open.
type Options struct {
	// Cache, when set, memoizes archive indexes across runs.
	Cache *Cache
	// Jobs limits how many archives are indexed at once. Zero means no limit.
	Jobs int
}

// Open builds a path from directories and archives. Archives are indexed up
// front, in parallel.
func Open(ctx context.Context, locations []string, opts Options) (*Path, error) {
	p := &Path{entries: make([]entry, len(locations)), cache: opts.Cache}
	g, ctx := errgroup.WithContext(ctx)
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, loc := range locations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := p.open(loc)
			if err != nil {
				return err
			}
			p.entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Path) open(loc string) (entry, error) {
	info, err := os.Stat(loc)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	if info.IsDir() {
		return &dirEntry{root: loc}, nil
	}
	start := time.Now()
	a, err := openArchive(loc, info, p.cache)
	if err != nil {
		return nil, err
	}
	log.Debugf("indexed %s classes from %s (%s) in %s",
		humanize.Comma(int64(len(a.records))), loc, humanize.Bytes(uint64(info.Size())), time.Since(start))
	return a, nil
}

// Lookup returns the hierarchy record of an internal class name, or nil
// when no entry holds it.
func (p *Path) Lookup(name string) (*types.Record, error) {
	for _, e := range p.entries {
		if e == nil {
			continue
		}
		r, err := e.lookup(name)
		if err != nil || r != nil {
			return r, err
		}
	}
	return nil, nil
}

// Resource reads a non-class file, such as a manifest or a pom.properties,
// from the first entry that holds it.
func (p *Path) Resource(name string) ([]byte, error) {
	for _, e := range p.entries {
		if e == nil {
			continue
		}
		data, err := e.resource(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("classpath: %s: %w", name, fs.ErrNotExist)
}

// Glob returns the resource names in archives that match pattern
// (path.Match syntax), in path order.
func (p *Path) Glob(pattern string) []string {
	var out []string
	for _, e := range p.entries {
		if e == nil {
			continue
		}
		for _, name := range e.resources() {
			if ok, _ := path.Match(pattern, name); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// Close releases open archives.
func (p *Path) Close() error {
	var errs []error
	for _, e := range p.entries {
		if e != nil {
			errs = append(errs, e.close())
		}
	}
	return errors.Join(errs...)
}

// JDK returns the class sources of a JDK installation: the jmods of a
// modular JDK, or rt.jar of an older one.
func JDK(home string) ([]string, error) {
	mods, err := filepath.Glob(filepath.Join(home, "jmods", "*.jmod"))
	if err != nil {
		return nil, err
	}
	if len(mods) > 0 {
		sort.Strings(mods)
		return mods, nil
	}
	for _, rt := range []string{
		filepath.Join(home, "jre", "lib", "rt.jar"),
		filepath.Join(home, "lib", "rt.jar"),
	} {
		if _, err := os.Stat(rt); err == nil {
			return []string{rt}, nil
		}
	}
	return nil, fmt.Errorf("classpath: no jmods or rt.jar under %s", home)
}

// SplitList splits a platform path list, dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, p := range filepath.SplitList(s) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func recordOf(h *classfile.Header) types.Record {
	return types.Record{
		Name:       h.Name,
		Access:     h.Access,
		Super:      h.Super,
		Interfaces: h.Interfaces,
	}
}

// dirEntry reads classes from a directory tree on demand.
type dirEntry struct {
	root string
	mu   sync.Mutex
	seen map[string]*types.Record
}

func (d *dirEntry) lookup(name string) (*types.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.seen[name]; ok {
		return r, nil
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)+".class"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	h, err := classfile.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("classpath: %s: %w", name, err)
	}
	r := recordOf(h)
	if d.seen == nil {
		d.seen = make(map[string]*types.Record)
	}
	d.seen[name] = &r
	return &r, nil
}

func (d *dirEntry) resource(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)))
}

func (d *dirEntry) resources() []string {
	return nil
}

func (d *dirEntry) close() error {
	return nil
}

// archive is an indexed jar or jmod.
type archive struct {
	file    *os.File
	zr      *zip.Reader
	prefix  string // "classes/" for jmods
	records map[string]*types.Record
	files   map[string]*zip.File
}

func openArchive(loc string, info os.FileInfo, cache *Cache) (*archive, error) {
	f, err := os.Open(loc)
	if err != nil {
		return nil, fmt.Errorf("classpath: %w", err)
	}
	a := &archive{file: f, files: make(map[string]*zip.File)}

	var r io.ReaderAt = f
	size := info.Size()
	magic := make([]byte, len(jmodMagic))
	if _, err := f.ReadAt(magic, 0); err == nil && string(magic) == string(jmodMagic) {
		r = io.NewSectionReader(f, int64(len(jmodMagic)), size-int64(len(jmodMagic)))
		size -= int64(len(jmodMagic))
		a.prefix = "classes/"
	}
	if a.zr, err = zip.NewReader(r, size); err != nil {
		f.Close()
		return nil, fmt.Errorf("classpath: %s: %w", loc, err)
	}
	for _, zf := range a.zr.File {
		a.files[zf.Name] = zf
	}

	abs, _ := filepath.Abs(loc)
	if cache != nil {
		recs, ok, err := cache.Load(abs, info.Size(), info.ModTime().UnixNano())
		if err != nil {
			log.Warningf("%s", err)
		} else if ok {
			a.index(recs)
			return a, nil
		}
	}

	var recs []types.Record
	for _, zf := range a.zr.File {
		name, ok := a.className(zf.Name)
		if !ok {
			continue
		}
		data, err := readZip(zf)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("classpath: %s!%s: %w", loc, zf.Name, err)
		}
		h, err := classfile.ParseHeader(data)
		if err != nil {
			log.Debugf("skipping %s!%s: %s", loc, zf.Name, err)
			continue
		}
		if h.Name != name {
			continue
		}
		recs = append(recs, recordOf(h))
	}
	a.index(recs)
	if cache != nil {
		if err := cache.Store(abs, info.Size(), info.ModTime().UnixNano(), recs); err != nil {
			log.Warningf("%s", err)
		}
	}
	return a, nil
}

func (a *archive) index(recs []types.Record) {
	a.records = make(map[string]*types.Record, len(recs))
	for i := range recs {
		a.records[recs[i].Name] = &recs[i]
	}
}

// className maps an entry name to an internal class name. Versioned
// entries of multi-release jars and module descriptors are skipped.
func (a *archive) className(entry string) (string, bool) {
	if !strings.HasSuffix(entry, ".class") || !strings.HasPrefix(entry, a.prefix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(entry, a.prefix), ".class")
	if strings.HasPrefix(name, "META-INF/") || path.Base(name) == "module-info" || path.Base(name) == "package-info" {
		return "", false
	}
	return name, true
}

func (a *archive) lookup(name string) (*types.Record, error) {
	return a.records[name], nil
}

func (a *archive) resource(name string) ([]byte, error) {
	zf, ok := a.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return readZip(zf)
}

func (a *archive) resources() []string {
	var out []string
	for _, zf := range a.zr.File {
		if !strings.HasSuffix(zf.Name, ".class") && !strings.HasSuffix(zf.Name, "/") {
			out = append(out, zf.Name)
		}
	}
	return out
}

func (a *archive) close() error {
	return a.file.Close()
}

func readZip(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
