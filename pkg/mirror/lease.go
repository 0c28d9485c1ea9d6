package mirror

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/samar/pkg/errors"
)

// leaseSuffix is appended to a mirror root to get the path of its lease. The
// lease lives next to the mirror rather than inside it so that it's never
// synced into the workspace.
const leaseSuffix = ".lease"

// leaseGracePeriod is how long a mirror without a lease is assumed to still
// be starting up.
const leaseGracePeriod = time.Minute

// Mocked out for unit testing.
var (
	getpid       = os.Getpid
	processAlive = isProcessAlive
	leaseClock   = clockwork.NewRealClock()
)

func leasePath(mirrorPath string) string {
	return mirrorPath + leaseSuffix
}

func writeLease(mirrorPath string) error {
	pid := strconv.Itoa(getpid())
	return afero.WriteFile(fs, leasePath(mirrorPath), []byte(pid), 0644)
}

func removeLease(mirrorPath string) error {
	err := fs.Remove(leasePath(mirrorPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// leaseOwner returns the pid that owns the mirror, or false if the lease is
// missing or corrupt.
func leaseOwner(mirrorPath string) (int, bool) {
	contents, err := afero.ReadFile(fs, leasePath(mirrorPath))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// PruneStale removes mirrors in `parent` that were abandoned by a process
// that exited without cleaning up. A mirror is abandoned if its lease is
// missing or the process that wrote the lease is no longer running. It returns
// the removed mirror roots.
func PruneStale(parent string) ([]string, error) {
	entries, err := afero.ReadDir(fs, parent)
	if err != nil {
		return nil, errors.WithContext(err, "read mirror parent")
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), NamePrefix) {
			continue
		}

		mirrorPath := filepath.Join(parent, entry.Name())
		pid, ok := leaseOwner(mirrorPath)
		if ok && processAlive(pid) {
			continue
		}
		if !ok && leaseClock.Now().Sub(entry.ModTime()) < leaseGracePeriod {
			continue
		}

		if err := fs.RemoveAll(mirrorPath); err != nil {
			log.WithError(err).WithField("mirror", mirrorPath).Warn("Failed to remove stale mirror")
			continue
		}
		if err := removeLease(mirrorPath); err != nil {
			log.WithError(err).WithField("mirror", mirrorPath).Warn("Failed to remove stale lease")
		}
		removed = append(removed, mirrorPath)
	}
	return removed, nil
}

func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
