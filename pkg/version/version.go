package version

import "runtime/debug"

// EmptyValue is the value we use when running a version that wasn't compiled
// by `make`. This is helpful for telling when we're running in a unit test.
const EmptyValue = "set-by-make"

// Version is the latest tag on git for releases. It's set with -ldflags.
var Version = EmptyValue

// readBuildInfo is mocked out for unit testing.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the version of the running binary. Binaries installed with
// `go install` don't have Version set, so the module version is used
// instead.
func Get() string {
	if Version != EmptyValue {
		return Version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
