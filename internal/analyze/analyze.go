// Package analyze streams a resolved file once to build the statistics the
// pipeline controller's QC gate depends on: row count, column-count
// consistency, date-column coverage, and a bounded duplicate-key digest.
// It never loads the whole file into memory — the streaming shape mirrors
// the teacher's batchedCSVReader, which concatenates and decodes gzip
// bodies chunk by chunk rather than slurping them.
package analyze

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"snowetl/internal/model"
)

// maxDuplicateExemplars bounds the Large-intermediate-data note in the
// design: past this many distinct keys seen more than once, analysis stops
// growing the exemplar set and only keeps counting.
const maxDuplicateExemplars = 1000

// dateColumnErrorThreshold is the fraction of rows whose date column may
// fail to parse before the file is considered structurally flawed.
const dateColumnErrorThreshold = 0.01

// Options configures one Analyze call.
type Options struct {
	Delimiter   rune
	HasHeader   bool
	DateColumn  string
	Columns     []string // expected column order; DateColumn must be among them
	KeyColumns  []string // duplicate-key columns, empty disables digesting
	SkipQC      bool     // when true, only row count + byte size are gathered
	SampleLimit int      // rows to retain verbatim in FileAnalysis.SampleRows
}

// Analyze streams file once and returns its FileAnalysis. It never returns
// an error for structurally bad data — structural flaws are reported via
// FileAnalysis.Anomalies() so the pipeline's QC gate, not this function,
// decides what's fatal. It does return an error for I/O failures (the
// `unreadable` failure mode).
func Analyze(rf model.ResolvedFile, opts Options) (model.FileAnalysis, error) {
	f, err := os.Open(rf.Path)
	if err != nil {
		return model.FileAnalysis{}, fmt.Errorf("unreadable: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(rf.Path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return model.FileAnalysis{}, fmt.Errorf("unreadable: gzip header: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	result := model.FileAnalysis{File: rf, DetectedDelim: opts.Delimiter, HasHeader: opts.HasHeader}

	dateIdx := -1
	for i, c := range opts.Columns {
		if c == opts.DateColumn {
			dateIdx = i
			break
		}
	}

	keyIdx := make([]int, 0, len(opts.KeyColumns))
	for _, k := range opts.KeyColumns {
		for i, c := range opts.Columns {
			if c == k {
				keyIdx = append(keyIdx, i)
				break
			}
		}
	}

	seen := make(map[uint64]struct{})
	dup := make(map[uint64]int64)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rowNum int64
	var minCols, maxCols int
	var dateParseFailures int64
	var dataRows int64

	for scanner.Scan() {
		line := scanner.Text()
		rowNum++
		if rowNum == 1 && opts.HasHeader {
			continue
		}
		if line == "" {
			result.BlankLines++
			continue
		}

		fields := strings.Split(line, string(opts.Delimiter))
		n := len(fields)
		if minCols == 0 || n < minCols {
			minCols = n
		}
		if n > maxCols {
			maxCols = n
		}
		dataRows++

		if opts.SkipQC {
			continue
		}

		if dateIdx >= 0 && dateIdx < n {
			if _, ok := parseDate(fields[dateIdx]); ok {
				d, _ := parseDate(fields[dateIdx])
				if result.MinDate.IsZero() || d.Before(result.MinDate) {
					result.MinDate = d
				}
				if d.After(result.MaxDate) {
					result.MaxDate = d
				}
			} else {
				dateParseFailures++
			}
		}

		if len(keyIdx) > 0 {
			key := compositeKey(fields, keyIdx)
			h := xxhash.Sum64String(key)
			if _, ok := seen[h]; ok {
				if _, already := dup[h]; already || len(dup) < maxDuplicateExemplars {
					dup[h]++
				}
			} else {
				seen[h] = struct{}{}
			}
		}

		if len(result.SampleRows) < opts.SampleLimit {
			result.SampleRows = append(result.SampleRows, fields)
		}
	}
	if err := scanner.Err(); err != nil {
		return model.FileAnalysis{}, fmt.Errorf("unreadable: %w", err)
	}

	result.RowCount = dataRows
	result.ColumnCount = maxCols
	result.ColumnCountMin = minCols
	result.ColumnCountMax = maxCols
	result.MalformedRows = 0
	if dataRows > 0 && float64(dateParseFailures)/float64(dataRows) > dateColumnErrorThreshold {
		result.MalformedRows = dateParseFailures
	}
	result.DuplicateKeys = int64(len(dup))
	result.DistinctKeys = int64(len(seen))

	return result, nil
}

func compositeKey(fields []string, idx []int) string {
	var b strings.Builder
	for i, ix := range idx {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		if ix < len(fields) {
			b.WriteString(fields[ix])
		}
	}
	return b.String()
}

var dateLayouts = []string{"2006-01-02", "20060102"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
