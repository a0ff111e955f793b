package scenesync

// Version is the scenesync release, overridden at link time with
// -ldflags "-X github.com/aretw0/scenesync.Version=...".
var Version = "0.1.0"
