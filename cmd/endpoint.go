package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
)

// ErrInvalidEndpoint is returned for engine endpoints other than local[...].
var ErrInvalidEndpoint = errors.New("invalid engine endpoint")

var localEndpoint = regexp.MustCompile(`^local(?:\[(\*|[0-9]+)\])?$`)

// ParseEndpoint resolves an engine endpoint to a worker count:
//   - "local"    → 1
//   - "local[N]" → N (N > 0)
//   - "local[*]" → GOMAXPROCS
func ParseEndpoint(endpoint string) (int, error) {
	m := localEndpoint.FindStringSubmatch(endpoint)
	if m == nil {
		return 0, fmt.Errorf("%w: %q (want local, local[N] or local[*])", ErrInvalidEndpoint, endpoint)
	}
	switch m[1] {
	case "":
		return 1, nil
	case "*":
		return runtime.GOMAXPROCS(0), nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q needs at least one worker", ErrInvalidEndpoint, endpoint)
	}
	return n, nil
}
