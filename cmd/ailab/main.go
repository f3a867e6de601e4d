package main

import (
	"github.com/thenullengine/ailab/internal/cli"
	"github.com/thenullengine/ailab/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
