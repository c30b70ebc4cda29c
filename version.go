package sdcrs

// Version is the release version. Overridden at build time via ldflags.
var Version = "0.1.0"
