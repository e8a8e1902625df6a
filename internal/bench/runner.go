package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/danmuck/cellwire/internal/grid"
	"github.com/danmuck/cellwire/internal/life"
	"github.com/rs/zerolog/log"
)

var ErrMismatch = errors.New("bench: decoded world differs from input")

const (
	OpEncode = "Encode"
	OpDecode = "Decode"
)

// Header is the first CSV row written by NewCSVSink.
var Header = []string{"Operation", "Run", "Time (seconds)", "Encoding", "Bytes"}

type Options struct {
	Runs      int
	Dimension uint32
	// Density of the random world; Full ignores it.
	Density   float64
	Full      bool
	Seed      uint64
	Encodings []string
}

// Sample is one timed encode or decode.
type Sample struct {
	Operation string
	Run       int
	Time      time.Duration
	Encoding  string
	Bytes     int
}

// Summary aggregates the samples of one encoding and operation.
type Summary struct {
	Encoding  string
	Operation string
	Runs      int
	Bytes     int
	Min       time.Duration
	Mean      time.Duration
	Max       time.Duration
}

type Sink interface {
	Record(Sample) error
}

// CSVSink writes samples as CSV rows.
type CSVSink struct {
	w *csv.Writer
}

func NewCSVSink(w io.Writer, writeHeader bool) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if writeHeader {
		if err := s.w.Write(Header); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) Record(sample Sample) error {
	return s.w.Write([]string{
		sample.Operation,
		strconv.Itoa(sample.Run),
		strconv.FormatFloat(sample.Time.Seconds(), 'f', 9, 64),
		sample.Encoding,
		strconv.Itoa(sample.Bytes),
	})
}

func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

// World builds the benchmark input for opts.
func World(opts Options) *grid.OrderedSet {
	if opts.Full {
		return life.Full(opts.Dimension)
	}
	return life.Random(opts.Dimension, opts.Density, rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)))
}

// Run times every encoding opts.Runs times over the same world, recording
// each sample to sink, and returns one summary per encoding and operation.
func Run(ctx context.Context, opts Options, sink Sink) ([]Summary, error) {
	if opts.Runs <= 0 {
		return nil, fmt.Errorf("bench: runs must be positive, got %d", opts.Runs)
	}
	names := opts.Encodings
	if len(names) == 0 {
		names = Names()
	}
	world := World(opts)
	log.Info().
		Uint32("dimension", opts.Dimension).
		Int("cells", world.Len()).
		Int("runs", opts.Runs).
		Bool("full", opts.Full).
		Msg("bench world ready")

	summaries := make([]Summary, 0, 2*len(names))
	for _, name := range names {
		enc, err := NewEncoding(name)
		if err != nil {
			return summaries, err
		}
		encSum, decSum, err := runEncoding(ctx, enc, world, opts, sink)
		if c, ok := enc.(io.Closer); ok {
			_ = c.Close()
		}
		if err != nil {
			return summaries, fmt.Errorf("%s: %w", enc.Name(), err)
		}
		log.Info().
			Str("encoding", enc.Name()).
			Int("bytes", encSum.Bytes).
			Dur("encode_mean", encSum.Mean).
			Dur("decode_mean", decSum.Mean).
			Msg("bench encoding done")
		summaries = append(summaries, encSum, decSum)
	}
	return summaries, nil
}

func runEncoding(ctx context.Context, enc Encoding, world *grid.OrderedSet, opts Options, sink Sink) (Summary, Summary, error) {
	encSum := Summary{Encoding: enc.Name(), Operation: OpEncode}
	decSum := Summary{Encoding: enc.Name(), Operation: OpDecode}
	for run := 0; run < opts.Runs; run++ {
		if err := ctx.Err(); err != nil {
			return encSum, decSum, err
		}

		start := time.Now()
		b, err := enc.Encode(world, opts.Dimension)
		elapsed := time.Since(start)
		if err != nil {
			return encSum, decSum, err
		}
		encSum.add(elapsed, len(b))
		if err := sink.Record(Sample{Operation: OpEncode, Run: run, Time: elapsed, Encoding: enc.Name(), Bytes: len(b)}); err != nil {
			return encSum, decSum, err
		}

		start = time.Now()
		got, err := enc.Decode(b, opts.Dimension)
		elapsed = time.Since(start)
		if err != nil {
			return encSum, decSum, err
		}
		if got.Len() != world.Len() {
			return encSum, decSum, fmt.Errorf("%w: %d cells, want %d", ErrMismatch, got.Len(), world.Len())
		}
		decSum.add(elapsed, len(b))
		if err := sink.Record(Sample{Operation: OpDecode, Run: run, Time: elapsed, Encoding: enc.Name(), Bytes: len(b)}); err != nil {
			return encSum, decSum, err
		}
	}
	return encSum, decSum, nil
}

func (s *Summary) add(d time.Duration, bytes int) {
	if s.Runs == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Mean = (s.Mean*time.Duration(s.Runs) + d) / time.Duration(s.Runs+1)
	s.Runs++
	s.Bytes = bytes
}
