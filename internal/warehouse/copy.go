package warehouse

import (
	"fmt"
	"strings"
)

// CopyOptions parameterizes one COPY INTO statement. Fields map directly to
// the file-format options named in spec.md §6; this is the only place in
// the codebase allowed to assemble COPY SQL text.
type CopyOptions struct {
	TargetTable string
	StagePath   string
	Delimiter   rune
	SkipHeader  bool
	QuoteChar   rune   // 0 means NONE
	OnError     string // default ABORT_STATEMENT
	Purge       bool
	SizeLimit   int64
}

const defaultSizeLimit = 5_368_709_120 // 5 GiB, matches spec.md §6

// BuildCopyStatement renders the COPY INTO text for opts. Table and stage
// names are routed through IDENTIFIER(?) placeholders bound by the caller,
// never interpolated directly, except where Snowflake's COPY grammar
// requires a literal (the stage path and inline file-format clause, which
// carry no user-controlled identifiers).
func BuildCopyStatement(opts CopyOptions) (stmt string, args []any) {
	skipHeader := 0
	if opts.SkipHeader {
		skipHeader = 1
	}
	quote := "NONE"
	if opts.QuoteChar != 0 {
		quote = fmt.Sprintf("'%s'", string(opts.QuoteChar))
	}
	onError := opts.OnError
	if onError == "" {
		onError = "ABORT_STATEMENT"
	}
	sizeLimit := opts.SizeLimit
	if sizeLimit == 0 {
		sizeLimit = defaultSizeLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "COPY INTO IDENTIFIER(?) FROM %s\n", opts.StagePath)
	fmt.Fprintf(&b, "FILE_FORMAT = (TYPE = CSV FIELD_DELIMITER = '%s' SKIP_HEADER = %d ", escapeLiteral(string(opts.Delimiter)), skipHeader)
	fmt.Fprintf(&b, "FIELD_OPTIONALLY_ENCLOSED_BY = %s ESCAPE_UNENCLOSED_FIELD = NONE ", quote)
	b.WriteString("ERROR_ON_COLUMN_COUNT_MISMATCH = FALSE REPLACE_INVALID_CHARACTERS = TRUE ")
	b.WriteString("DATE_FORMAT = AUTO TIMESTAMP_FORMAT = AUTO NULL_IF = ('', 'NULL', 'null', '\\\\N'))\n")
	fmt.Fprintf(&b, "ON_ERROR = %s\n", onError)
	fmt.Fprintf(&b, "PURGE = %t\n", opts.Purge)
	fmt.Fprintf(&b, "SIZE_LIMIT = %d", sizeLimit)

	return b.String(), []any{opts.TargetTable}
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
