// helioscope-snapshot prints one host snapshot as JSON. It shows exactly
// what the probes would see on this machine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gravito-framework/helioscope-go/pkg/probes"
	"github.com/gravito-framework/helioscope-go/pkg/sink"
)

func main() {
	sample := flag.Duration("sample", probes.DefaultCPUSampleInterval, "window over which CPU usage is measured")
	procRoot := flag.String("proc", "/proc", "procfs mount point")
	verbose := flag.Bool("v", false, "log unavailable snapshot categories to stderr")
	flag.Parse()

	// stdout carries the snapshot, so diagnostics go to stderr
	logger := zap.NewNop()
	if *verbose {
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(sink.EncoderConfig()),
			zapcore.Lock(os.Stderr),
			zapcore.DebugLevel,
		))
	}

	source := probes.NewGopsutilSource(logger)
	source.CPUSampleInterval = *sample
	source.ProcRoot = *procRoot

	ctx, cancel := context.WithTimeout(context.Background(), *sample+10*time.Second)
	defer cancel()

	snap, err := source.Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error taking snapshot: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding snapshot: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Cores: %d, sensors: %d, disks: %d, interfaces: %d\n",
		len(snap.Cores), len(snap.Sensors), len(snap.Disks), len(snap.NICs))
}
