package cli

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"snowetl/internal/format"
	"snowetl/internal/model"
)

func newCompareCommand() *cobra.Command {
	var quick bool
	cmd := &cobra.Command{
		Use:   "compare <file1> <file2>",
		Short: "Offline structural diff of two delimited files (size, format, header, row count)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			diffs, err := compareFiles(args[0], args[1], quick)
			if err != nil {
				return model.NewKindError(model.ErrFileNotFound, err)
			}
			for _, d := range diffs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			if len(diffs) > 0 {
				return model.NewKindError(model.ErrFormatMismatch, fmt.Errorf("%d structural difference(s) found", len(diffs)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "files match")
			return nil
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "skip the full line count and compare only size, format, and header")
	return cmd
}

// compareFiles reports structural differences between two delimited files,
// the offline analogue of the warehouse-backed validator: size, detected
// format/delimiter, header presence, and (unless quick) total line count.
func compareFiles(path1, path2 string, quick bool) ([]string, error) {
	var diffs []string

	info1, err := os.Stat(path1)
	if err != nil {
		return nil, err
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return nil, err
	}
	if info1.Size() != info2.Size() {
		pct := 0.0
		if info1.Size() > 0 {
			pct = absFloat(float64(info1.Size())-float64(info2.Size())) / float64(info1.Size()) * 100
		}
		diffs = append(diffs, fmt.Sprintf("size differs: %d vs %d bytes (%.1f%%)", info1.Size(), info2.Size(), pct))
	}

	det1, err := format.Detect(path1)
	if err != nil {
		return nil, err
	}
	det2, err := format.Detect(path2)
	if err != nil {
		return nil, err
	}
	if det1.Format != det2.Format || det1.Delimiter != det2.Delimiter {
		diffs = append(diffs, fmt.Sprintf("format differs: %s(%q) vs %s(%q)", det1.Format, det1.Delimiter, det2.Format, det2.Delimiter))
	}
	if det1.HasHeader != det2.HasHeader {
		diffs = append(diffs, fmt.Sprintf("header presence differs: %t vs %t", det1.HasHeader, det2.HasHeader))
	}

	if quick {
		return diffs, nil
	}

	n1, err := countLines(path1)
	if err != nil {
		return nil, err
	}
	n2, err := countLines(path2)
	if err != nil {
		return nil, err
	}
	if n1 != n2 {
		diffs = append(diffs, fmt.Sprintf("row count differs: %d vs %d", n1, n2))
	}
	return diffs, nil
}

func countLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var r = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return 0, err
		}
		defer gz.Close()
		r = bufio.NewReader(gz)
	}

	var n int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
