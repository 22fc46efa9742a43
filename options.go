package grouped

import "time"

// ProbeOptions configures the liveness probing performed during compaction
type ProbeOptions struct {
	Parallelism int           // maximum number of concurrent partition probes
	Timeout     time.Duration // optional deadline for a whole probe batch. Zero means wait indefinitely.
}

// DefaultProbeParallelism is used when ProbeOptions.Parallelism is not supplied
const DefaultProbeParallelism = 16

// CloneProbeOptions makes a copy of a ProbeOptions
func CloneProbeOptions(opts *ProbeOptions) *ProbeOptions {
	if opts == nil {
		return &ProbeOptions{}
	}
	return &ProbeOptions{
		Parallelism: opts.Parallelism,
		Timeout:     opts.Timeout,
	}
}

// EnsureDefaultProbeOptionsValues fills in defaults for any ProbeOptions which were not supplied
func EnsureDefaultProbeOptionsValues(opts *ProbeOptions) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultProbeParallelism
	}
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
}
