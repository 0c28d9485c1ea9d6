package sync

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

// strictSweep deletes every entry in the mirror whose workspace path is
// excluded. It catches forbidden files that were created in the mirror before
// the watchers started. Symlinked directories aren't descended into.
func (e *Engine) strictSweep() error {
	return e.sweep(e.mirrorRoot)
}

func (e *Engine) sweep(dir string) error {
	items, err := afero.ReadDir(fs, dir)
	if err != nil {
		return errors.WithContext(err, "read dir")
	}

	for _, item := range items {
		fullPath := filepath.Join(dir, item.Name())
		rel, _ := filepath.Rel(e.mirrorRoot, fullPath)
		target := filepath.Join(e.sourceRoot, rel)

		if e.forbidden(target, item) {
			if err := fs.RemoveAll(fullPath); err != nil {
				log.WithError(err).WithField("path", rel).Warn(
					"STRICT MODE: Failed to purge forbidden file")
				continue
			}
			log.WithField("path", rel).Warn("STRICT MODE: Purged existing forbidden file")
			continue
		}

		if item.IsDir() && item.Mode()&os.ModeSymlink == 0 {
			if err := e.sweep(fullPath); err != nil {
				// The directory may have been removed mid-walk.
				log.WithError(err).WithField("path", rel).Debug("Skipping directory in sweep")
			}
		}
	}
	return nil
}
