package sync

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
	"github.com/sidkik/samar/pkg/fswatch"
	"github.com/sidkik/samar/pkg/mirror"
)

// handle applies a single change notification from `d.from` to `d.to`.
// Errors are logged and the event is dropped; a later change to the same path
// will bring the trees back in line.
func (e *Engine) handle(d *direction, ev fswatch.Event) {
	e.resetLock.RLock()
	defer e.resetLock.RUnlock()

	rel, ok := relative(d.from, ev.Path)
	if !ok {
		return
	}
	target := filepath.Join(d.to, rel)
	logger := log.WithField("path", rel)

	if d.echoes.Consume(ev.Path) {
		logger.WithField("op", ev.Op).Debug("Suppressed echo")
		return
	}

	// The current state of the path is what's propagated, rather than the
	// event type, because notifications can be coalesced or reordered.
	fi, err := lstat(ev.Path)
	exists := err == nil
	if err != nil {
		if !isNotExist(err) {
			logger.WithError(err).Error("Failed to stat changed path")
			return
		}
		fi = nil
	}
	if exists && ev.Op.IsDelete() {
		logger.Debug("Path was recreated after it was removed")
	}

	if d.toMirror {
		heavy := e.rules.IsHeavy(filepath.Base(ev.Path)) && (!exists || fi.IsDir())
		if !heavy && e.excluded(ev.Path, fi) {
			return
		}
	} else if e.forbidden(target, fi) {
		e.punish(ev.Path, rel, exists)
		return
	} else if !exists && e.rules.IsHeavy(filepath.Base(ev.Path)) && isDir(target) {
		// The mirror only ever holds a link to a heavy directory, so removing
		// it must not remove the workspace directory behind it.
		logger.Info("Heavy directory link removed from the shadow workspace. " +
			"The workspace directory is kept.")
		return
	}

	if !exists {
		if err := e.remove(d, target); err != nil {
			logger.WithError(err).Errorf("%s: failed to delete", d.name)
			return
		}
		return
	}

	if err := e.copyEntry(d, ev.Path, target, fi); err != nil {
		logger.WithError(err).Errorf("%s: failed to copy", d.name)
	}
}

// forbidden returns whether writing the mirror entry described by `fi` to
// the workspace path `target` is blocked by the exclusion rules. Heavy
// directory links are exempt since they're created by the mirror itself.
func (e *Engine) forbidden(target string, fi os.FileInfo) bool {
	if fi != nil && isSymlink(fi) && e.rules.IsHeavy(fi.Name()) {
		return false
	}
	return e.excluded(target, fi)
}

// excluded returns whether `path` matches an exclusion rule. A path that no
// longer exists (nil `fi`) is checked both as a file and as a directory.
func (e *Engine) excluded(path string, fi os.FileInfo) bool {
	if fi == nil {
		return e.rules.Match(path, false) || e.rules.Match(path, true)
	}
	return e.rules.Match(path, fi.IsDir())
}

// punish handles a write to a forbidden path in the mirror. In strict mode
// the offending path is deleted from the mirror. Otherwise it's left alone,
// but never propagated.
func (e *Engine) punish(path, rel string, exists bool) {
	logger := log.WithField("path", rel)
	if !exists {
		logger.Debug("Forbidden path was removed from the shadow workspace")
		return
	}

	if !e.strict {
		logger.Warn("BLOCKED: Agent tried to modify an ignored file")
		return
	}

	if err := fs.RemoveAll(path); err != nil {
		logger.WithError(err).Error("Failed to delete forbidden file")
		return
	}
	logger.Warn("STRICT MODE: Incinerated forbidden file in the shadow workspace")
}

// remove deletes `target`. Deleting a path that doesn't exist is a no-op, and
// isn't marked since it won't generate a notification.
func (e *Engine) remove(d *direction, target string) error {
	if _, err := lstat(target); isNotExist(err) {
		return nil
	}

	d.marks.Mark(target)
	if err := fs.RemoveAll(target); err != nil {
		return errors.WithContext(err, "remove")
	}
	log.WithField("path", e.rel(d, target)).Infof("%s (deleted)", d.name)
	return nil
}

// copyEntry makes `dst` match `src`. Directories are copied recursively,
// applying the exclusion rules to every child.
func (e *Engine) copyEntry(d *direction, src, dst string, fi os.FileInfo) error {
	switch {
	case isSymlink(fi):
		return e.copySymlink(d, src, dst)
	case fi.IsDir():
		if d.toMirror && e.rules.IsHeavy(fi.Name()) {
			return e.ensureLink(d, src, dst)
		}
		return e.copyDir(d, src, dst, fi)
	case fi.Mode().IsRegular():
		if sameFile(src, fi, dst) {
			return nil
		}

		d.marks.Mark(dst)
		if err := mirror.CopyFile(src, dst, fi); err != nil {
			return errors.WithContext(err, "copy file")
		}
		log.WithField("path", e.rel(d, dst)).Info(d.name)
		return nil
	default:
		log.WithField("path", e.rel(d, dst)).Debug("Skipping special file")
		return nil
	}
}

func (e *Engine) copyDir(d *direction, src, dst string, fi os.FileInfo) error {
	dstInfo, err := lstat(dst)
	if err != nil || !dstInfo.IsDir() {
		d.marks.Mark(dst)
		if err == nil {
			if err := fs.RemoveAll(dst); err != nil {
				return errors.WithContext(err, "remove file in the way")
			}
		}
		if err := fs.MkdirAll(dst, fi.Mode().Perm()|0700); err != nil {
			return errors.WithContext(err, "mkdir")
		}
	}

	children, err := afero.ReadDir(fs, src)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, child := range children {
		childSrc := filepath.Join(src, child.Name())
		childDst := filepath.Join(dst, child.Name())

		if mirror.IsScratch(childSrc) {
			continue
		}

		if d.toMirror {
			heavyDir := child.IsDir() && e.rules.IsHeavy(child.Name())
			if !heavyDir && e.rules.Match(childSrc, child.IsDir()) {
				continue
			}
		} else if e.forbidden(childDst, child) {
			e.punish(childSrc, e.rel(d, childDst), true)
			continue
		}

		if err := e.copyEntry(d, childSrc, childDst, child); err != nil {
			log.WithError(err).WithField("path", e.rel(d, childDst)).Errorf(
				"%s: failed to copy", d.name)
		}
	}
	return nil
}

// ensureLink makes `dst` a symlink to the heavy directory `src`.
func (e *Engine) ensureLink(d *direction, src, dst string) error {
	if target, err := readlink(dst); err == nil && target == src {
		return nil
	}

	d.marks.Mark(dst)
	if err := fs.RemoveAll(dst); err != nil {
		return errors.WithContext(err, "remove")
	}
	if err := mirror.Link(src, dst); err != nil {
		return errors.WithContext(err, "link heavy directory")
	}
	log.WithField("path", e.rel(d, dst)).Infof("%s (linked)", d.name)
	return nil
}

func (e *Engine) copySymlink(d *direction, src, dst string) error {
	target, err := readlink(src)
	if err != nil {
		return errors.WithContext(err, "readlink")
	}

	// A heavy directory link in the mirror points at the workspace
	// directory itself.
	if target == dst {
		return nil
	}

	if current, err := readlink(dst); err == nil && current == target {
		return nil
	}

	d.marks.Mark(dst)
	if err := fs.RemoveAll(dst); err != nil {
		return errors.WithContext(err, "remove")
	}
	if err := mirror.Link(target, dst); err != nil {
		return errors.WithContext(err, "symlink")
	}
	log.WithField("path", e.rel(d, dst)).Infof("%s (symlink)", d.name)
	return nil
}

func (e *Engine) rel(d *direction, target string) string {
	rel, ok := relative(d.to, target)
	if !ok {
		return target
	}
	return rel
}

func exists(path string) bool {
	_, err := lstat(path)
	return !isNotExist(err)
}

func isDir(path string) bool {
	fi, err := lstat(path)
	return err == nil && fi.IsDir()
}

// isNotExist returns whether `err` means the path is gone, including when
// one of its parents was replaced by a file.
func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}

// relative returns `path` relative to `root`, or false if `path` is the root
// or isn't within it.
func relative(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
