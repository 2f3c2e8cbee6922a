package workflow

import (
	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/dcconcretos/remisiones_backend/utils"
)

// ChunkResult is the outcome of one chunk of a batched query. A chunk
// that failed its retry is carried as Ok=false so the caller can count
// the loss without aborting sibling chunks.
type ChunkResult[K comparable, T any] struct {
	Ok    bool
	Items []K
	Data  T
	Err   error
}

// RunChunked splits items into fixed-size chunks and runs fn per chunk,
// retrying each failed chunk once. It never returns an error: degraded
// chunks are reported in their ChunkResult and the rest still complete.
func RunChunked[K comparable, T any](items []K, size int, fn func(chunk []K) (T, error)) []ChunkResult[K, T] {
	var results []ChunkResult[K, T]
	for _, chunk := range utils.ChunkSlice(utils.UniqueSlice(items), size) {
		data, err := fn(chunk)
		if err != nil {
			data, err = fn(chunk)
		}
		results = append(results, ChunkResult[K, T]{
			Ok:    err == nil,
			Items: chunk,
			Data:  data,
			Err:   err,
		})
	}
	return results
}

// logFailedChunks logs degraded chunks and reports how many there were.
func logFailedChunks[K comparable, T any](results []ChunkResult[K, T], moduleName, funcName string) int {
	failed := 0
	logger := config.GetLogger()
	for _, result := range results {
		if result.Ok {
			continue
		}
		failed++
		config.LogError(logger, moduleName, funcName, "chunk failed after retry, dropping its contribution", map[string]interface{}{
			"chunkSize": len(result.Items),
		}, result.Err)
	}
	return failed
}
