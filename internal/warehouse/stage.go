package warehouse

import (
	"context"
	"fmt"
)

// StagePut uploads localPath to stagePath using Snowflake's PUT command,
// with PARALLEL controlling server-side upload concurrency for a single
// multi-part file. localPath and stagePath are written into the PUT text as
// given; neither this function nor its caller (internal/stage) validates or
// escapes them.
func (c *Client) StagePut(ctx context.Context, localPath, stagePath string, parallel int) error {
	if parallel <= 0 {
		parallel = 4
	}
	q := fmt.Sprintf("PUT 'file://%s' %s PARALLEL=%d AUTO_COMPRESS=FALSE OVERWRITE=TRUE", localPath, stagePath, parallel)
	_, err := c.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("stage put %s: %w", localPath, err)
	}
	return nil
}

// StageRemove deletes every file under stagePath from the internal stage.
func (c *Client) StageRemove(ctx context.Context, stagePath string) error {
	q := fmt.Sprintf("REMOVE %s", stagePath)
	_, err := c.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("stage remove %s: %w", stagePath, err)
	}
	return nil
}

// CreateStage ensures the named internal stage exists.
func (c *Client) CreateStage(ctx context.Context, stageName string) error {
	q := fmt.Sprintf("CREATE STAGE IF NOT EXISTS %s", stageName)
	_, err := c.Exec(ctx, q)
	return err
}

// DropStage removes the named internal stage and everything in it.
func (c *Client) DropStage(ctx context.Context, stageName string) error {
	q := fmt.Sprintf("DROP STAGE IF EXISTS %s", stageName)
	_, err := c.Exec(ctx, q)
	return err
}

// StageUsage is one row of Snowflake's LIST @stage output, reduced to the
// fields report --tables needs to show per-prefix stage bookkeeping.
type StageUsage struct {
	Name      string
	SizeBytes int64
	FileCount int
}

// ListStages runs LIST against namePattern (e.g. "@~" or "@snowetl_run_")
// and aggregates file count and total bytes per top-level stage name, used
// by report --tables to surface leftover or in-flight stage usage.
func (c *Client) ListStages(ctx context.Context, namePattern string) ([]StageUsage, error) {
	rows, err := c.Query(ctx, fmt.Sprintf("LIST %s", namePattern))
	if err != nil {
		return nil, fmt.Errorf("list stage %s: %w", namePattern, err)
	}
	defer rows.Close()

	usage := map[string]*StageUsage{}
	var order []string
	for rows.Next() {
		var name string
		var size int64
		var rest []any
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		ptrs := make([]any, len(cols))
		ptrs[0], ptrs[1] = &name, &size
		for i := 2; i < len(cols); i++ {
			var v any
			rest = append(rest, &v)
			ptrs[i] = rest[len(rest)-1]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan stage listing row: %w", err)
		}
		stageName := stageNameFromPath(name)
		u, ok := usage[stageName]
		if !ok {
			u = &StageUsage{Name: stageName}
			usage[stageName] = u
			order = append(order, stageName)
		}
		u.SizeBytes += size
		u.FileCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]StageUsage, 0, len(order))
	for _, name := range order {
		out = append(out, *usage[name])
	}
	return out, nil
}

func stageNameFromPath(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return path
}
