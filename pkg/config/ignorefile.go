package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

// DefaultIgnoreFile is the content written to a new `.samarignore`.
const DefaultIgnoreFile = `# Samar Ignore File
# Patterns here will be HIDDEN from the Shadow Workspace.

# Build Artifacts (Recommended to symlink via heavy directories instead of copying)
node_modules/
.next/
dist/
build/
.cache/

# Environment & Secrets (ALWAYS IGNORED by default, but listed here for clarity)
.env
.env.local
.env.development.local
.env.test.local
.env.production.local

# Git
.git/

# OS Files
.DS_Store
Thumbs.db
`

// EnsureIgnoreFile writes the default ignore file into `root` if one doesn't
// exist yet. It returns whether a new file was created.
func EnsureIgnoreFile(root string) (bool, error) {
	path := filepath.Join(root, IgnoreFileName)
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, errors.WithContext(err, "stat ignore file")
	}
	if exists {
		return false, nil
	}

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		// Another process created the file between the stat and the open.
		if os.IsExist(err) {
			return false, nil
		}
		return false, errors.WithContext(err, "create ignore file")
	}
	defer f.Close()

	if _, err := f.WriteString(DefaultIgnoreFile); err != nil {
		return false, errors.WithContext(err, "write ignore file")
	}
	return true, nil
}
