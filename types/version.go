package types

// Version is the canonical project version.
// The CLI, the stored result format and the IPC frame contract share this
// version under lockstep versioning.
const Version = "0.3.0"
