package version

// Version is stamped into reports and SARIF output. Set it at build time:
//
//	-ldflags "-X secscan/internal/version.Version=v1.0.0"
var Version = "dev"
