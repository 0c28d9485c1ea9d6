package mirror

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

// ScratchPrefix is the name prefix of the temporary files that CopyFile
// writes before renaming them into place. Watchers ignore these files.
const ScratchPrefix = ".samar-sync-"

// IsScratch returns whether `path` is a temporary file written by CopyFile.
func IsScratch(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ScratchPrefix)
}

// CopyFile copies the contents, mode and modification time of `src` to
// `dest`, creating the parent directories of `dest` as needed. The contents
// are written to a scratch file next to `dest` and renamed into place, so
// readers of `dest` never see a partial copy. `srcInfo` may be nil, in which
// case `src` is stat'd.
func CopyFile(src, dest string, srcInfo os.FileInfo) error {
	if srcInfo == nil {
		var err error
		if srcInfo, err = fs.Stat(src); err != nil {
			return errors.WithContext(err, "stat source")
		}
	}

	in, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer in.Close()

	dir := filepath.Dir(dest)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext(err, "create parent directories")
	}

	scratch, err := afero.TempFile(fs, dir, ScratchPrefix+"*")
	if err != nil {
		return errors.WithContext(err, "create scratch file")
	}
	scratchPath := scratch.Name()

	if err := writeScratch(scratch, in, srcInfo); err != nil {
		fs.Remove(scratchPath)
		return err
	}

	// A directory can't be atomically replaced by a file.
	if destInfo, err := fs.Stat(dest); err == nil && destInfo.IsDir() {
		if err := fs.RemoveAll(dest); err != nil {
			fs.Remove(scratchPath)
			return errors.WithContext(err, "remove directory")
		}
	}

	if err := fs.Rename(scratchPath, dest); err != nil {
		fs.Remove(scratchPath)
		return errors.WithContext(err, "rename into place")
	}
	return nil
}

func writeScratch(scratch afero.File, in io.Reader, srcInfo os.FileInfo) error {
	if _, err := io.Copy(scratch, in); err != nil {
		scratch.Close()
		return errors.WithContext(err, "copy contents")
	}
	if err := scratch.Close(); err != nil {
		return errors.WithContext(err, "close scratch file")
	}
	if err := fs.Chmod(scratch.Name(), srcInfo.Mode().Perm()); err != nil {
		return errors.WithContext(err, "chmod")
	}
	modTime := srcInfo.ModTime()
	if err := fs.Chtimes(scratch.Name(), modTime, modTime); err != nil {
		return errors.WithContext(err, "set modification time")
	}
	return nil
}

// Link creates a symlink at `link` that points at the directory `target`.
func Link(target, link string) error {
	return symlink(target, link)
}

func symlink(target, link string) error {
	linker, ok := fs.(afero.Linker)
	if !ok {
		return errors.New("filesystem doesn't support symlinks")
	}
	if err := fs.MkdirAll(filepath.Dir(link), 0755); err != nil {
		return errors.WithContext(err, "create parent directories")
	}
	return linker.SymlinkIfPossible(target, link)
}

// copySymlink recreates the symlink at `src` as `dest`, pointing at the same
// target.
func copySymlink(src, dest string) error {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return errors.New("filesystem doesn't support symlinks")
	}
	target, err := reader.ReadlinkIfPossible(src)
	if err != nil {
		return errors.WithContext(err, "readlink")
	}
	return symlink(target, dest)
}
