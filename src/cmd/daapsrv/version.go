package main

// Version is the daapsrv version. It is set at build time via
// -ldflags "-X main.Version=..."
var Version = "dev"
