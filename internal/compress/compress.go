// Package compress streams a file through gzip to a sibling ".gz" artifact,
// reporting byte progress as it goes. It uses klauspost/compress/gzip, the
// same package the ingestion pipeline already reaches for on the decode
// side when reading batched source files.
package compress

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"snowetl/internal/model"
)

const defaultChunkBytes = 10 * 1024 * 1024

// ProgressFunc is invoked at chunk boundaries with the number of input
// bytes consumed so far; it must not block for long, mirroring the
// Progress Tracker's 100ms non-blocking contract.
type ProgressFunc func(current, total int64)

// Options configures one Compress call.
type Options struct {
	Level      int // gzip level, default 1
	ChunkBytes int64
	OutputDir  string // if empty, output is written adjacent to input
	OnProgress ProgressFunc
}

// Result describes a completed compression.
type Result struct {
	OutputPath string
	BytesIn    int64
	BytesOut   int64
}

// Compress reads inputPath and writes a gzip-compressed sibling artifact.
// On any failure the partial output file is removed before the error is
// returned, so callers never observe a truncated artifact.
func Compress(inputPath string, opts Options) (Result, error) {
	level := opts.Level
	if level == 0 {
		level = model.DefaultCompressionLevel
	}
	chunk := opts.ChunkBytes
	if chunk == 0 {
		chunk = defaultChunkBytes
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}
	total := info.Size()

	outPath := inputPath + ".gz"
	if opts.OutputDir != "" {
		outPath = opts.OutputDir + "/" + baseName(inputPath) + ".gz"
	}

	out, err := os.Create(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("create output: %w", err)
	}

	succeeded := false
	defer func() {
		if !succeeded {
			out.Close()
			os.Remove(outPath)
		}
	}()

	gw, err := gzip.NewWriterLevel(out, level)
	if err != nil {
		return Result{}, fmt.Errorf("init gzip writer: %w", err)
	}

	buf := make([]byte, chunk)
	var bytesIn int64
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, werr := gw.Write(buf[:n]); werr != nil {
				return Result{}, fmt.Errorf("write compressed chunk: %w", werr)
			}
			bytesIn += int64(n)
			if opts.OnProgress != nil {
				opts.OnProgress(bytesIn, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("read input chunk: %w", readErr)
		}
	}

	if err := gw.Close(); err != nil {
		return Result{}, fmt.Errorf("close gzip writer: %w", err)
	}
	if err := out.Close(); err != nil {
		return Result{}, fmt.Errorf("close output: %w", err)
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat output: %w", err)
	}

	succeeded = true
	return Result{OutputPath: outPath, BytesIn: bytesIn, BytesOut: outInfo.Size()}, nil
}

func baseName(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	return path[i+1:]
}
