// Package cachepkg holds the few types shared by every other package in the
// module: the command enum middleware branches on, the sentinel/typed errors
// backends and decorators surface, and the human-duration TTL parser.
package cachepkg

// Command identifies the operation being dispatched through the middleware
// chain. It is a closed set — see spec §6, "Commands enumeration".
type Command string

const (
	CmdGet           Command = "get"
	CmdGetMany       Command = "get_many"
	CmdGetMatch      Command = "get_match"
	CmdGetRaw        Command = "get_raw"
	CmdSet           Command = "set"
	CmdSetMany       Command = "set_many"
	CmdSetRaw        Command = "set_raw"
	CmdDelete        Command = "delete"
	CmdDeleteMany    Command = "delete_many"
	CmdDeleteMatch   Command = "delete_match"
	CmdExists        Command = "exists"
	CmdScan          Command = "scan"
	CmdIncr          Command = "incr"
	CmdExpire        Command = "expire"
	CmdGetExpire     Command = "get_expire"
	CmdGetBits       Command = "get_bits"
	CmdIncrBits      Command = "incr_bits"
	CmdSliceIncr     Command = "slice_incr"
	CmdSetAdd        Command = "set_add"
	CmdSetRemove     Command = "set_remove"
	CmdSetPop        Command = "set_pop"
	CmdPing          Command = "ping"
	CmdClear         Command = "clear"
	CmdGetSize       Command = "get_size"
	CmdGetKeysCount  Command = "get_keys_count"
	CmdSetLock       Command = "set_lock"
	CmdUnlock        Command = "unlock"
	CmdIsLocked      Command = "is_locked"
)

// PatternCommands are the three operations that take a glob pattern rather
// than a concrete key.
var PatternCommands = map[Command]bool{
	CmdGetMatch:    true,
	CmdDeleteMatch: true,
	CmdScan:        true,
}

// RetrieveCommands are the read-shaped commands the invalidate-further
// middleware (§4.5) intercepts and turns into deletes.
var RetrieveCommands = map[Command]bool{
	CmdGet:      true,
	CmdIncr:     true,
	CmdGetMany:  true,
	CmdGetMatch: true,
}
