// Package symbols resolves abstract parts to concrete KiCad symbol
// identifiers using a local library catalog, with an embedding-backed
// similarity search fallback and synthesized placeholders as the last
// resort.
package symbols

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SymbolFileExt is the KiCad symbol library file extension.
const SymbolFileExt = ".kicad_sym"

var symbolNamePattern = regexp.MustCompile(`\(symbol\s+"([^"]+)"`)

// Catalog is a read-only index of available symbol names per library,
// built once at startup from the local KiCad installation and passed by
// reference into the resolver. Safe for concurrent readers after build.
type Catalog struct {
	libs map[string]map[string]bool // library nickname -> symbol names
}

// DefaultDirs returns the symbol library directories to scan: the override
// dir when non-empty, otherwise the standard install locations that exist
// on this machine.
func DefaultDirs(override string) []string {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return []string{override}
		}
		return nil
	}

	var candidates []string
	if runtime.GOOS == "windows" {
		for _, base := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)")} {
			if base == "" {
				continue
			}
			for _, ver := range []string{"9.0", "8.0", "7.0"} {
				candidates = append(candidates, filepath.Join(base, "KiCad", ver, "share", "kicad", "symbols"))
			}
		}
	}
	candidates = append(candidates,
		"/usr/share/kicad/symbols",
		"/usr/local/share/kicad/symbols",
	)

	var dirs []string
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// BuildCatalog scans the given directories for .kicad_sym files and indexes
// the symbol names they declare. Unreadable files are skipped.
func BuildCatalog(dirs []string, logger *zap.Logger) *Catalog {
	logger = logger.Named("symbols")
	cat := &Catalog{libs: make(map[string]map[string]bool)}

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), SymbolFileExt) {
				return nil
			}
			cat.indexFile(path)
			return nil
		})
		if err != nil {
			logger.Warn("symbol directory scan failed",
				zap.String("dir", dir),
				zap.Error(err))
		}
	}

	logger.Info("symbol catalog built",
		zap.Int("libraries", len(cat.libs)),
		zap.Int("symbols", cat.Size()))
	return cat
}

func (c *Catalog) indexFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lib := strings.TrimSuffix(filepath.Base(path), SymbolFileExt)
	names := c.libs[lib]
	if names == nil {
		names = make(map[string]bool)
		c.libs[lib] = names
	}
	for _, m := range symbolNamePattern.FindAllStringSubmatch(string(data), -1) {
		names[m[1]] = true
	}
}

// Has reports whether the library declares the symbol.
func (c *Catalog) Has(lib, symbol string) bool {
	return c.libs[lib][symbol]
}

// Libraries returns all indexed library nicknames, sorted.
func (c *Catalog) Libraries() []string {
	out := make([]string, 0, len(c.libs))
	for lib := range c.libs {
		out = append(out, lib)
	}
	sort.Strings(out)
	return out
}

// SymbolsOf returns the symbol names of a library, sorted.
func (c *Catalog) SymbolsOf(lib string) []string {
	out := make([]string, 0, len(c.libs[lib]))
	for name := range c.libs[lib] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Size returns the total number of indexed symbols.
func (c *Catalog) Size() int {
	n := 0
	for _, names := range c.libs {
		n += len(names)
	}
	return n
}

// SearchSubstrings returns lib IDs of symbols whose name contains every
// given token, case-insensitive.
func (c *Catalog) SearchSubstrings(tokens []string) []string {
	lowered := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			lowered = append(lowered, strings.ToLower(t))
		}
	}
	if len(lowered) == 0 {
		return nil
	}

	var results []string
	for _, lib := range c.Libraries() {
		for _, name := range c.SymbolsOf(lib) {
			nm := strings.ToLower(name)
			all := true
			for _, tok := range lowered {
				if !strings.Contains(nm, tok) {
					all = false
					break
				}
			}
			if all {
				results = append(results, fmt.Sprintf("%s:%s", lib, name))
			}
		}
	}
	return results
}
