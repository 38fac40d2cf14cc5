// Package common holds the build information and logger setup shared by the commands.
package common

// Version is set at build time with -ldflags "-X ...common.Version=...".
var Version = "dev"

const PackageName = "github.com/ruteri/ip-registration-workflows"
