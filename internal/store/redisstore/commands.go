package redisstore

import (
	"reflect"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// clientHelpers are Cmdable methods that build batches instead of sending a
// command.
var clientHelpers = map[string]struct{}{
	"pipeline":    {},
	"pipelined":   {},
	"txpipeline":  {},
	"txpipelined": {},
}

var (
	commandsOnce sync.Once
	commands     map[string]struct{}
)

// knownCommands is the lower-cased method set of redis.Cmdable. Anything the
// client library exposes as a command method is reachable by name.
func knownCommands() map[string]struct{} {
	commandsOnce.Do(func() {
		typ := reflect.TypeOf((*redis.Cmdable)(nil)).Elem()
		commands = make(map[string]struct{}, typ.NumMethod())
		for i := 0; i < typ.NumMethod(); i++ {
			name := strings.ToLower(typ.Method(i).Name)
			if _, helper := clientHelpers[name]; helper {
				continue
			}
			commands[name] = struct{}{}
		}
	})
	return commands
}
