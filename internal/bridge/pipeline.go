package bridge

import (
	"context"

	"github.com/rbright/redbridge/internal/store"
)

// ExecutePipeline sends every recognizable entry of commands in one round
// trip. Each entry is a sequence of name followed by arguments.
//
// Entries that are malformed or name an unknown command are dropped before
// sending and get no slot in the result. A failed round trip returns one
// error and no replies.
func (b *Bridge) ExecutePipeline(ctx context.Context, commands any) (replies []any, err error) {
	defer func() { b.recorder.Operation("executePipeline", err) }()

	entries, ok := sequence(commands)
	if !ok {
		b.logger.Error("internal error", "op", "executePipeline", "error", ErrInvalidPipeline.Error())
		return nil, ErrInvalidPipeline
	}

	conn, ok := b.commandConn()
	if !ok {
		return nil, ErrNotConnected
	}

	batch, skipped := pipelineBatch(conn, entries)
	b.skipped("executePipeline", skipped, len(entries))
	if len(batch) == 0 {
		return []any{}, nil
	}

	replies, err = conn.Pipeline(ctx, batch)
	if err != nil {
		return nil, err
	}
	return replies, nil
}

func pipelineBatch(conn store.Conn, entries []any) ([][]any, int) {
	batch := make([][]any, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		parts, ok := sequence(entry)
		if !ok || len(parts) == 0 {
			skipped++
			continue
		}
		name, ok := parts[0].(string)
		if !ok || !conn.HasCommand(name) {
			skipped++
			continue
		}
		wire, err := flattenArgs(parts[1:])
		if err != nil {
			skipped++
			continue
		}
		batch = append(batch, append([]any{name}, wire...))
	}
	return batch, skipped
}

// skipped logs and records entries a batched operation dropped.
func (b *Bridge) skipped(op string, n int, total int) {
	if n == 0 {
		return
	}
	b.logger.Info("pipeline skipped entries", "op", op, "skipped", n, "total", total)
	b.recorder.Skipped(op, n)
}
