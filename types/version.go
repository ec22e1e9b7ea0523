package types

// Version is the canonical project version.
// The CLI, the journal format and the completion event share this version.
const Version = "0.3.0"

// ContractVersion is stamped on journal records and published completion events.
// Kept in lockstep with Version.
const ContractVersion = Version
