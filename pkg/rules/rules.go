// Package rules decides which workspace paths are hidden from the mirror and
// which directories are linked into it instead of copied.
//
// Exclusion rules come in two tiers. The security tier is built in and can
// never be negated. The ignore-file tier is the project's `.gitignore`
// followed by the user's `.samarignore`; inside that tier later patterns win,
// so `!pattern` lines re-include earlier matches. A path is excluded if either
// tier excludes it.
package rules

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/src-d/go-git.v4/plumbing/format/gitignore"

	"github.com/sidkik/samar/pkg/config"
	"github.com/sidkik/samar/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// SecurityPatterns are always excluded, regardless of the ignore files.
var SecurityPatterns = []string{
	".env*",
	"*.pem",
	"*.key",
	"id_rsa*",
	"*.pfx",
	"*.p12",
	".git",
	config.IgnoreFileName,
	config.ProjectConfigName,
}

// DefaultHeavyDirs are the directory names that are linked into the mirror
// rather than copied.
var DefaultHeavyDirs = []string{
	"node_modules",
	".next",
	"dist",
	"build",
	"target",
	"venv",
	".venv",
	"vendor",
}

// Evaluator evaluates exclusion rules and heavy directory membership for a
// single workspace root.
type Evaluator struct {
	root string

	security    gitignore.Matcher
	ignoreFiles gitignore.Matcher

	heavyLock sync.RWMutex
	heavy     map[string]struct{}
}

// New loads the rules for the workspace at `root`. Ignore files that can't be
// read are logged and skipped.
func New(root string) *Evaluator {
	var security []gitignore.Pattern
	for _, p := range SecurityPatterns {
		security = append(security, gitignore.ParsePattern(p, nil))
	}

	var patterns []gitignore.Pattern
	for _, name := range []string{config.GitIgnoreFileName, config.IgnoreFileName} {
		filePatterns, err := readPatterns(filepath.Join(root, name))
		if err != nil {
			log.WithError(err).WithField("file", name).Warn(
				"Could not read ignore file. Proceeding with the remaining rules.")
			continue
		}
		patterns = append(patterns, filePatterns...)
	}

	heavy := map[string]struct{}{}
	for _, name := range DefaultHeavyDirs {
		heavy[name] = struct{}{}
	}

	return &Evaluator{
		root:        filepath.Clean(root),
		security:    gitignore.NewMatcher(security),
		ignoreFiles: gitignore.NewMatcher(patterns),
		heavy:       heavy,
	}
}

// readPatterns parses the gitignore-style file at `path`. A missing file has
// no patterns.
func readPatterns(path string) ([]gitignore.Pattern, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithContext(err, "read")
	}
	return ParsePatterns(contents), nil
}

// ParsePatterns parses the contents of a gitignore-style file. Blank lines
// and comments are skipped.
func ParsePatterns(contents []byte) (patterns []gitignore.Pattern) {
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}

// IsExcluded returns whether `path` matches an exclusion rule. Relative paths
// are resolved against the workspace root. Whether the path is a directory is
// decided by looking at the filesystem; a path that doesn't exist is treated
// as a file.
func (e *Evaluator) IsExcluded(path string) bool {
	isDir := false
	if fi, err := lstat(e.abs(path)); err == nil {
		isDir = fi.IsDir()
	}
	return e.Match(path, isDir)
}

// Match is IsExcluded for callers that already know whether `path` is a
// directory, such as when the path was just deleted.
func (e *Evaluator) Match(path string, isDir bool) bool {
	rel, err := filepath.Rel(e.root, e.abs(path))
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return e.MatchRelative(rel, isDir)
}

// MatchRelative evaluates the rules against a path that's already relative
// to the workspace root. As with git, a path can't be re-included by a
// negated pattern if one of its parent directories is excluded.
func (e *Evaluator) MatchRelative(rel string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if e.security.Match(parts, isDir) {
		return true
	}
	for i := 1; i < len(parts); i++ {
		if e.ignoreFiles.Match(parts[:i], true) {
			return true
		}
	}
	return e.ignoreFiles.Match(parts, isDir)
}

// IsHeavy returns whether the bare directory name `name` should be linked
// rather than copied.
func (e *Evaluator) IsHeavy(name string) bool {
	e.heavyLock.RLock()
	defer e.heavyLock.RUnlock()

	_, ok := e.heavy[name]
	return ok
}

// AddHeavyDirectory adds `name` to the heavy directory names for the lifetime
// of the Evaluator.
func (e *Evaluator) AddHeavyDirectory(name string) {
	e.heavyLock.Lock()
	defer e.heavyLock.Unlock()

	e.heavy[name] = struct{}{}
}

// HeavyDirectories returns the heavy directory names in sorted order.
func (e *Evaluator) HeavyDirectories() []string {
	e.heavyLock.RLock()
	defer e.heavyLock.RUnlock()

	var names []string
	for name := range e.heavy {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Evaluator) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.root, path)
}

func lstat(path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}
