package server

import (
	"github.com/ValentinKolb/respkv/lib/keyspace"
	"github.com/ValentinKolb/respkv/rpc/resp"
	"strconv"
	"strings"
	"time"
)

// handlerFunc executes a command against the keyspace and appends the reply
// to out. It is called with the keyspace lock held.
type handlerFunc func(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte

// command is one entry of the command table
type command struct {
	// number of arguments including the name, negative means "at least -arity"
	arity   int
	handler handlerFunc
}

// commands is the command table. MULTI, EXEC, DISCARD and WATCH are handled by
// the session.
var commands = map[string]command{
	"PING":     {-1, cmdPing},
	"SET":      {-3, cmdSet},
	"GET":      {2, cmdGet},
	"DEL":      {-2, cmdDel},
	"EXISTS":   {-2, cmdExists},
	"INCR":     {2, cmdIncr},
	"INCRBY":   {3, cmdIncrBy},
	"EXPIRE":   {3, cmdExpire},
	"TTL":      {2, cmdTTL},
	"SADD":     {-3, cmdSAdd},
	"SREM":     {-3, cmdSRem},
	"SMEMBERS": {2, cmdSMembers},
	"DBSIZE":   {1, cmdDBSize},
	"FLUSHDB":  {1, cmdFlushDB},
	"UNWATCH":  {1, cmdUnwatch},
}

// lookupCommand checks that the command exists and has a valid number of
// arguments. It returns an error message otherwise.
func lookupCommand(name string, args [][]byte) (command, string) {
	cmd, ok := commands[name]
	if !ok {
		return command{}, "ERR unknown command '" + string(args[0]) + "'"
	}
	if (cmd.arity > 0 && len(args) != cmd.arity) || (cmd.arity < 0 && len(args) < -cmd.arity) {
		return command{}, arityError(strings.ToLower(name))
	}
	return cmd, ""
}

func arityError(name string) string {
	return "ERR wrong number of arguments for '" + name + "' command"
}

// --------------------------------------------------------------------------
// Command Handlers
// --------------------------------------------------------------------------

func cmdPing(_ *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	switch len(args) {
	case 1:
		return resp.AppendStatus(out, "PONG")
	case 2:
		return resp.AppendBulk(out, args[1])
	default:
		return resp.AppendError(out, arityError("ping"))
	}
}

func cmdSet(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	var ttl time.Duration
	switch {
	case len(args) == 3:
	case len(args) == 5 && strings.EqualFold(string(args[3]), "EX"):
		seconds, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil {
			return resp.AppendError(out, keyspace.ErrNotInteger.Error())
		}
		if seconds <= 0 {
			return resp.AppendError(out, "ERR invalid expire time in 'set' command")
		}
		ttl = time.Duration(seconds) * time.Second
	default:
		return resp.AppendError(out, "ERR syntax error")
	}

	ks.Set(string(args[1]), args[2], ttl)
	return resp.AppendStatus(out, "OK")
}

func cmdGet(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	value, loaded, err := ks.Get(string(args[1]))
	if err != nil {
		return resp.AppendError(out, err.Error())
	}
	if !loaded {
		return resp.AppendNullBulk(out)
	}
	return resp.AppendBulk(out, value)
}

func cmdDel(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	var n int64
	for _, key := range args[1:] {
		if ks.Delete(string(key)) {
			n++
		}
	}
	return resp.AppendInt(out, n)
}

func cmdExists(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	var n int64
	for _, key := range args[1:] {
		if ks.Has(string(key)) {
			n++
		}
	}
	return resp.AppendInt(out, n)
}

func cmdIncr(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	return incrBy(ks, args[1], 1, out)
}

func cmdIncrBy(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.AppendError(out, keyspace.ErrNotInteger.Error())
	}
	return incrBy(ks, args[1], delta, out)
}

func incrBy(ks *keyspace.Keyspace, key []byte, delta int64, out []byte) []byte {
	n, err := ks.IncrBy(string(key), delta)
	if err != nil {
		return resp.AppendError(out, err.Error())
	}
	return resp.AppendInt(out, n)
}

func cmdExpire(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	seconds, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.AppendError(out, keyspace.ErrNotInteger.Error())
	}
	if ks.Expire(string(args[1]), time.Duration(seconds)*time.Second) {
		return resp.AppendInt(out, 1)
	}
	return resp.AppendInt(out, 0)
}

func cmdTTL(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	return resp.AppendInt(out, ks.TTL(string(args[1])))
}

func cmdSAdd(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	n, err := ks.SAdd(string(args[1]), toStrings(args[2:])...)
	if err != nil {
		return resp.AppendError(out, err.Error())
	}
	return resp.AppendInt(out, int64(n))
}

func cmdSRem(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	n, err := ks.SRem(string(args[1]), toStrings(args[2:])...)
	if err != nil {
		return resp.AppendError(out, err.Error())
	}
	return resp.AppendInt(out, int64(n))
}

func cmdSMembers(ks *keyspace.Keyspace, args [][]byte, out []byte) []byte {
	members, err := ks.SMembers(string(args[1]))
	if err != nil {
		return resp.AppendError(out, err.Error())
	}
	out = resp.AppendArrayLen(out, len(members))
	for _, m := range members {
		out = resp.AppendBulk(out, []byte(m))
	}
	return out
}

func cmdDBSize(ks *keyspace.Keyspace, _ [][]byte, out []byte) []byte {
	return resp.AppendInt(out, int64(ks.Size()))
}

func cmdFlushDB(ks *keyspace.Keyspace, _ [][]byte, out []byte) []byte {
	ks.Flush()
	return resp.AppendStatus(out, "OK")
}

// cmdUnwatch only replies, the watched keys are cleared by the session
func cmdUnwatch(_ *keyspace.Keyspace, _ [][]byte, out []byte) []byte {
	return resp.AppendStatus(out, "OK")
}

func toStrings(args [][]byte) []string {
	res := make([]string, len(args))
	for i, a := range args {
		res[i] = string(a)
	}
	return res
}
