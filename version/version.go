package version

// Version is the current release of carelink
const Version = "0.1.0"
