package version

// Version is the current version of the crosswalk migrator.
// Can be overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "1.4.0"

// Name is the application name.
const Name = "crosswalk-migrate"

// Description is a short description of the application.
const Description = "Crosswalk-driven legacy database migration"
