package utils

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/pkg/errors"
)

// Compress gzips data.
func Compress(data []byte) (bytes.Buffer, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return buf, errors.Wrap(err, "utils.Compress(): failed to write")
	}
	if err := gz.Close(); err != nil {
		return buf, errors.Wrap(err, "utils.Compress(): failed to close writer")
	}
	return buf, nil
}

// ErrTooLarge means decompressed data exceeds the caller's limit.
var ErrTooLarge = errors.New("decompressed data too large")

// Decompress reverses Compress, reading at most limit decompressed bytes.
func Decompress(r io.Reader, limit int64) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "utils.Decompress(): failed to create reader")
	}
	defer gz.Close()

	data, err := io.ReadAll(io.LimitReader(gz, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "utils.Decompress(): failed to read")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrTooLarge, "utils.Decompress(): more than %d bytes", limit)
	}
	return data, nil
}

// Map applies f to every element of items.
func Map[T any, O any](items []T, f func(T) O) []O {
	result := make([]O, len(items))
	for i, item := range items {
		result[i] = f(item)
	}
	return result
}

// Filter returns the elements of items that satisfy condition.
func Filter[T any](items []T, condition func(T) bool) []T {
	result := make([]T, 0, len(items))
	for _, item := range items {
		if condition(item) {
			result = append(result, item)
		}
	}
	return result
}

// NewIntArray returns [start, start+1, ..., end).
func NewIntArray(start, end int) []int {
	if end <= start {
		return []int{}
	}
	result := make([]int, end-start)
	for i := range result {
		result[i] = start + i
	}
	return result
}
