package dbtest

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
)

// containerOptions prepends a logger writing to tb to the given customizers.
func containerOptions(tb testing.TB, opts ...testcontainers.ContainerCustomizer) []testcontainers.ContainerCustomizer {
	customizers := make([]testcontainers.ContainerCustomizer, 0, len(opts)+1)
	customizers = append(customizers, testcontainers.WithLogger(log.TestLogger(tb)))
	return append(customizers, opts...)
}
