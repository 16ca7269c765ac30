package domain

import "errors"

// Sentinel errors for the retrieval core. Callers classify failures with
// errors.Is; packages wrap these with context via fmt.Errorf and %w.
var (
	// ErrConfig indicates an invalid configuration. Fatal at startup.
	ErrConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates a remote embedding or storage backend
	// could not be reached, or kept failing after retries.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrInputRejected indicates input the pipeline refuses to process,
	// such as an empty query or an oversized chunk. Not retryable.
	ErrInputRejected = errors.New("input rejected")

	// ErrIndexCorrupt indicates the persisted index artifact is unreadable.
	// Recovery is a full rebuild, not a crash.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrReindexInProgress indicates a reindex was requested while another
	// one is still running.
	ErrReindexInProgress = errors.New("reindex already in progress")

	// ErrUnsupportedFormat indicates a corpus file with no registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptFile indicates a corpus file that could not be parsed.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrGeneration indicates the answer-generation backend failed.
	ErrGeneration = errors.New("answer generation failed")
)
