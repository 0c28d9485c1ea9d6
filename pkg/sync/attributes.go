package sync

import (
	"crypto/sha512"
	"encoding/base64"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// FileAttributes contains some metadata used to compare whether two files are
// equal.
type FileAttributes struct {
	// ContentsHash is the sha512 hash of the contents of the file. It's only
	// computed when the cheaper fields match.
	ContentsHash string

	// Size is the length of the file in bytes.
	Size int64

	// Mode is the file mode of the file.
	Mode os.FileMode

	// ModTime is the time of the last file modification.
	ModTime time.Time
}

// Equal returns whether two files are equal (i.e. whether a sync is necessary).
func (f FileAttributes) Equal(otherFile FileAttributes) bool {
	return f.ContentsHash == otherFile.ContentsHash &&
		f.Size == otherFile.Size &&
		f.Mode == otherFile.Mode &&
		f.ModTime.Equal(otherFile.ModTime)
}

func statAttributes(fi os.FileInfo) FileAttributes {
	return FileAttributes{
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
	}
}

// sameFile returns whether the regular file at `dst` already matches `src`.
// Any error means the files are treated as different.
func sameFile(src string, srcInfo os.FileInfo, dst string) bool {
	dstInfo, err := lstat(dst)
	if err != nil || !dstInfo.Mode().IsRegular() {
		return false
	}

	srcAttrs, dstAttrs := statAttributes(srcInfo), statAttributes(dstInfo)
	if !srcAttrs.Equal(dstAttrs) {
		return false
	}

	if srcAttrs.ContentsHash, err = HashFile(src); err != nil {
		return false
	}
	if dstAttrs.ContentsHash, err = HashFile(dst); err != nil {
		return false
	}
	return srcAttrs.Equal(dstAttrs)
}

// HashFile returns the sha512 hash of the file at the given path.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return base64.StdEncoding.EncodeToString(hasher.Sum(nil)), nil
}

func lstat(path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}

func readlink(path string) (string, error) {
	reader, ok := fs.(afero.LinkReader)
	if !ok {
		return "", errors.New("filesystem doesn't support symlinks")
	}
	return reader.ReadlinkIfPossible(path)
}

func isSymlink(fi os.FileInfo) bool {
	return fi.Mode()&os.ModeSymlink != 0
}
