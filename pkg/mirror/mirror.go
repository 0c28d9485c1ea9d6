// Package mirror materializes the shadow copy of a workspace.
//
// The mirror is a plain directory tree under the system temp directory. Every
// entry of the workspace is visited once and, in priority order, heavy
// directories are linked, excluded entries are skipped, directories are
// created and files are copied with their mode and modification time.
package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/rules"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// NamePrefix is the prefix of every mirror root directory name.
const NamePrefix = "samar-"

// Builder creates and destroys the mirror of a single workspace.
type Builder struct {
	root     string
	path     string
	parent   string
	rules    *rules.Evaluator
	clock    clockwork.Clock
	reporter Reporter
}

// Option configures a Builder.
type Option func(*Builder)

// WithParent sets the directory the mirror root is created in.
func WithParent(dir string) Option {
	return func(b *Builder) {
		b.parent = dir
	}
}

// WithClock sets the clock used to name the mirror root.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Builder) {
		b.clock = clock
	}
}

// WithReporter sets where materialization decisions are reported.
func WithReporter(reporter Reporter) Option {
	return func(b *Builder) {
		b.reporter = reporter
	}
}

// New returns a Builder that mirrors `root`. The mirror path is decided here,
// but nothing is created until Initialize is called.
func New(root string, evaluator *rules.Evaluator, opts ...Option) *Builder {
	b := &Builder{
		root:   filepath.Clean(root),
		parent: os.TempDir(),
		rules:  evaluator,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.reporter == nil {
		b.reporter = logReporter{}
	}
	b.path = filepath.Join(b.parent, mirrorName(b.root, b.clock))
	return b
}

// mirrorName returns the name of the mirror root for `root`, e.g.
// `samar-myproject-lq2x8k1c`.
func mirrorName(root string, clock clockwork.Clock) string {
	millis := clock.Now().UnixNano() / 1e6
	return fmt.Sprintf("%s%s-%s", NamePrefix, filepath.Base(root), strconv.FormatInt(millis, 36))
}

// Path returns the mirror root.
func (b *Builder) Path() string {
	return b.path
}

// Root returns the workspace root being mirrored.
func (b *Builder) Root() string {
	return b.root
}

// Initialize materializes the mirror. In a dry run, the decisions are
// reported but the filesystem isn't touched.
func (b *Builder) Initialize(dryRun bool) error {
	if !dryRun {
		// The lease is written before the mirror root exists, so that a
		// concurrent prune never sees the root without its lease.
		if err := fs.MkdirAll(b.parent, 0755); err != nil {
			return b.createError(err)
		}
		if err := writeLease(b.path); err != nil {
			log.WithError(err).WithField("mirror", b.path).Warn(
				"Failed to write mirror lease. A crashed run won't be pruned automatically.")
		}
		if err := fs.MkdirAll(b.path, 0755); err != nil {
			return b.createError(err)
		}
	}

	if _, err := fs.Stat(b.root); err != nil {
		return errors.WithContext(err, "stat workspace root")
	}
	return b.copyRecursive(b.root, b.path, dryRun)
}

func (b *Builder) createError(err error) error {
	return errors.NewFriendlyError(
		"Failed to create the shadow workspace at %q.\n"+
			"Check that the directory is writable.\n\n"+
			"For reference, here is the error:\n%s", b.path, err)
}

func (b *Builder) copyRecursive(src, dest string, dryRun bool) error {
	items, err := afero.ReadDir(fs, src)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, item := range items {
		srcPath := filepath.Join(src, item.Name())
		destPath := filepath.Join(dest, item.Name())
		rel, _ := filepath.Rel(b.root, srcPath)

		// Stat rather than lstat so that broken symlinks are skipped.
		fi, err := fs.Stat(srcPath)
		if err != nil {
			log.WithError(err).WithField("path", rel).Debug("Skipping entry that can't be stat'd")
			continue
		}

		decision := Decision{Rel: rel, Source: srcPath, Mirror: destPath}

		// Heavy directories are linked even if they're ignored.
		if fi.IsDir() && b.rules.IsHeavy(item.Name()) {
			decision.Action = ActionLink
			b.reporter.Report(decision)
			if dryRun {
				continue
			}

			if err := symlink(srcPath, destPath); err != nil {
				log.WithError(err).WithField("path", rel).Warn(
					"Could not link heavy directory, falling back to copy.")
				if err := b.copyDir(srcPath, destPath, fi, dryRun); err != nil {
					log.WithError(err).WithField("path", rel).Error("Failed to copy directory")
				}
			}
			continue
		}

		if b.rules.Match(srcPath, fi.IsDir()) {
			decision.Action = ActionIgnore
			b.reporter.Report(decision)
			continue
		}

		if item.Mode()&os.ModeSymlink != 0 {
			decision.Action = ActionSymlink
			b.reporter.Report(decision)
			if dryRun {
				continue
			}

			if err := copySymlink(srcPath, destPath); err != nil {
				log.WithError(err).WithField("path", rel).Error("Failed to copy symlink")
			}
			continue
		}

		if fi.IsDir() {
			decision.Action = ActionDir
			b.reporter.Report(decision)
			if err := b.copyDir(srcPath, destPath, fi, dryRun); err != nil {
				log.WithError(err).WithField("path", rel).Error("Failed to copy directory")
			}
			continue
		}

		decision.Action = ActionFile
		b.reporter.Report(decision)
		if dryRun {
			continue
		}
		if err := CopyFile(srcPath, destPath, fi); err != nil {
			log.WithError(err).WithField("path", rel).Error("Failed to copy file")
		}
	}
	return nil
}

func (b *Builder) copyDir(src, dest string, fi os.FileInfo, dryRun bool) error {
	if !dryRun {
		if err := fs.MkdirAll(dest, fi.Mode().Perm()|0700); err != nil {
			return errors.WithContext(err, "mkdir")
		}
	}
	return b.copyRecursive(src, dest, dryRun)
}

// Cleanup removes the mirror root. Failures are logged rather than returned
// since there's nothing the caller can do about them.
func (b *Builder) Cleanup() {
	if err := fs.RemoveAll(b.path); err != nil {
		log.WithError(err).WithField("mirror", b.path).Error("Failed to clean up shadow workspace")
		return
	}
	if err := removeLease(b.path); err != nil {
		log.WithError(err).WithField("mirror", b.path).Warn("Failed to remove mirror lease")
	}
	log.WithField("mirror", b.path).Info("Cleaned up shadow workspace")
}
