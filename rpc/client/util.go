package client

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"strconv"
	"strings"
)

// Logger is the logger of the client package
var Logger = logger.GetLogger("rpc")

// TypeIDsKey returns the key of the set holding all ids stored for a type
func TypeIDsKey(typeName string) string {
	return "ids:" + typeName
}

// ObjectKey returns the key an object of the given type and id is stored under
func ObjectKey(typeName, id string) string {
	return "urn:" + strings.ToLower(typeName) + ":" + id
}

// buildArgs converts a command name and its arguments to the raw argument list
// of a request
func buildArgs(name string, values ...interface{}) [][]byte {
	args := make([][]byte, 0, len(values)+1)
	args = append(args, []byte(name))
	for _, v := range values {
		args = append(args, toArg(v))
	}
	return args
}

func toArg(v interface{}) []byte {
	switch v := v.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	case int:
		return strconv.AppendInt(nil, int64(v), 10)
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case uint64:
		return strconv.AppendUint(nil, v, 10)
	default:
		return []byte(fmt.Sprint(v))
	}
}

// stringArgs converts a list of strings to raw arguments
func stringArgs(values []string) []interface{} {
	res := make([]interface{}, len(values))
	for i, v := range values {
		res[i] = v
	}
	return res
}
