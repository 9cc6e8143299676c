package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned before any worker starts
	ErrInvalidConfiguration = errors.New("invalid pipeline configuration")

	// ErrPartitionRead marks a worker that stopped early on a read failure
	ErrPartitionRead = errors.New("partition read failed")

	// ErrWrite marks a failed or short write of an assembled segment
	ErrWrite = errors.New("segment write failed")
)

// PartitionReadError is a per-worker warning. The segment keeps every frame
// processed before Frame.
type PartitionReadError struct {
	Partition int
	Frame     int64
	Err       error
}

func (e *PartitionReadError) Error() string {
	return fmt.Sprintf("partition %d: read failed at frame %d: %v", e.Partition, e.Frame, e.Err)
}

func (e *PartitionReadError) Unwrap() error {
	return e.Err
}

func (e *PartitionReadError) Is(target error) bool {
	return target == ErrPartitionRead
}

// WriteError is fatal for the run; Segment is the partition index that failed
type WriteError struct {
	Segment int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("segment %d: write failed: %v", e.Segment, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}
