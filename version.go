package concierge

// Version is the release version. Builds override it with -ldflags "-X".
var Version = "0.1.0"
