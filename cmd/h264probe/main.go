// Command h264probe is a manually-verifiable driver for the filter
// package: it reads a raw H.264 elementary stream from a file or stdin,
// pushes it through a filter.Filter, and prints one line per emitted
// access unit, mirroring cmd/streamforward/main.go's role for
// xaionaro-go/avpipeline's pipeline engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"

	"github.com/membraneframework-labs/membrane-h264-plugin/dcr"
	"github.com/membraneframework-labs/membrane-h264-plugin/filter"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags] [input-file]\n\nreads from stdin if input-file is omitted or '-'\n", os.Args[0])
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	avccLengthSize := pflag.Int("avcc-length-size", 0, "treat the input as AVCC-framed when non-zero (1, 2, or 4; the length_size actually used is the one in the DCR); 0 means Annex B")
	dcrPath := pflag.String("dcr", "", "path to the raw AVCDecoderConfigurationRecord bytes (required when -avcc-length-size is set)")
	repeatParameterSets := pflag.Bool("repeat-parameter-sets", false, "prefix each keyframe access unit with the latest cached SPS/PPS")
	skipUntilKeyframe := pflag.Bool("skip-until-keyframe", true, "drop access units before the first keyframe")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	var in io.Reader = os.Stdin
	if path := pflag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			l.Fatal(err)
		}
		defer f.Close()
		in = f
	}

	opts := []filter.Option{
		filter.WithSkipUntilKeyframe(*skipUntilKeyframe),
		filter.WithRepeatParameterSets(*repeatParameterSets),
	}
	f := filter.New(opts...)

	mode := filter.ModeBytestream
	structure := filter.StreamStructure{Kind: filter.StructureAnnexB}
	var dcrBytes []byte
	if *avccLengthSize != 0 {
		structure = filter.StreamStructure{Kind: filter.StructureAVC1, LengthSize: *avccLengthSize}
		if *dcrPath == "" {
			l.Fatal("-dcr is required when -avcc-length-size is set")
		}
		raw, err := os.ReadFile(*dcrPath)
		if err != nil {
			l.Fatal(err)
		}
		if _, err := dcr.Parse(raw); err != nil {
			l.Fatal(fmt.Errorf("invalid DCR at %s: %w", *dcrPath, err))
		}
		dcrBytes = raw
	}

	if err := f.Configure(ctx, mode, structure, dcrBytes); err != nil {
		l.Fatal(err)
	}

	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk, 4)
	// DetachDone so the reader keeps draining stdin to EOF and closes
	// chunks cleanly even if ctx is canceled out from under it, the way
	// avpipeline.serve detaches its node goroutines from the parent
	// context's cancellation.
	observability.Go(xcontext.DetachDone(ctx), func(context.Context) {
		defer close(chunks)
		buf := make([]byte, 64*1024)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				c := make([]byte, n)
				copy(c, buf[:n])
				chunks <- chunk{data: c}
			}
			if err != nil {
				if err != io.EOF {
					chunks <- chunk{err: err}
				}
				return
			}
		}
	})

	auCount := 0
	for c := range chunks {
		if c.err != nil {
			l.Fatal(c.err)
		}
		res, err := f.Push(ctx, c.data, nil)
		if err != nil {
			l.Fatal(err)
		}
		auCount += printResult(f, res)
	}

	auCount += printResult(f, f.Flush(ctx))
	l.Infof("done: %d access units emitted", auCount)
}

func printResult(f *filter.Filter, res *filter.PushResult) int {
	if res.FormatChanged {
		spsIDs, ppsIDs := f.CachedParameterSetIDs()
		fmt.Printf("format: structure=%s width=%d height=%d profile=%s sps=%v pps=%v\n",
			res.Format.Structure.Kind, res.Format.Width, res.Format.Height, res.Format.Profile, spsIDs, ppsIDs)
	}
	for _, buf := range res.Buffers {
		types := make([]string, 0, len(buf.NALUs))
		for _, n := range buf.NALUs {
			types = append(types, n.Type.String())
		}
		fmt.Printf("au key_frame=%t pts=%d dts=%d bytes=%d nalus=%v\n",
			buf.KeyFrame, buf.Timestamps.PTS, buf.Timestamps.DTS, len(buf.Payload), types)
	}
	return len(res.Buffers)
}
