package bridge

import (
	"context"
	"fmt"
)

// Execute forwards one named command on the command connection and returns
// the store's reply unchanged. A missing-key reply is (nil, nil).
func (b *Bridge) Execute(ctx context.Context, name any, args any) (reply any, err error) {
	defer func() { b.recorder.Operation("execute", err) }()

	command, ok := name.(string)
	if !ok {
		return nil, fmt.Errorf("[Redis] commandName must be a string, got %s", TypeName(name))
	}
	list, ok := sequence(args)
	if !ok {
		return nil, fmt.Errorf("[Redis] args must be an array, got %s", TypeName(args))
	}

	conn, ok := b.commandConn()
	if !ok {
		return nil, ErrNotConnected
	}
	if !conn.HasCommand(command) {
		return nil, fmt.Errorf("[Redis] Unknown redis command: %s", command)
	}

	wire, err := flattenArgs(list)
	if err != nil {
		return nil, applyError(command, err)
	}

	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = applyError(command, r)
		}
	}()
	return conn.Do(ctx, append([]any{command}, wire...)...)
}

func applyError(command string, cause any) error {
	return fmt.Errorf("[Redis] Error applying command '%s': %v", command, cause)
}
