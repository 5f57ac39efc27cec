package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/panduza/panduza-go/pkg/log"
)

// csvColumns is the header row of a CSV export.
var csvColumns = []string{"timestamp", "session_id", "direction", "layer", "category", "topic", "type", "sequence", "value"}

// ExportOptions selects the output of RunExport.
type ExportOptions struct {
	Format string // jsonl or csv
	Output string // empty for stdout
	Topic  string // optional topic pattern
}

// eventSink is one export format.
type eventSink interface {
	write(log.Event) error
	flush() error
}

// RunExport converts a trace file to JSON lines or CSV.
func RunExport(path string, opts ExportOptions) error {
	reader, err := log.NewFilteredReader(path, log.Filter{Topic: opts.Topic})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	var sink eventSink
	switch opts.Format {
	case "", "jsonl":
		sink = jsonlSink{enc: json.NewEncoder(w)}
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvColumns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		sink = csvSink{w: cw}
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", opts.Format)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := sink.write(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return sink.flush()
}

type jsonlSink struct {
	enc *json.Encoder
}

func (s jsonlSink) write(event log.Event) error {
	if event.Message != nil {
		msg := *event.Message
		msg.Value = jsonValue(msg.Value)
		event.Message = &msg
	}
	return s.enc.Encode(event)
}

func (jsonlSink) flush() error { return nil }

type csvSink struct {
	w *csv.Writer
}

func (s csvSink) write(event log.Event) error {
	kind, seq, value := "unknown", "", ""
	switch {
	case event.Frame != nil:
		kind = "frame"
		value = fmt.Sprintf("%x", event.Frame.Data)
	case event.Message != nil:
		kind = event.Message.Kind.String()
		seq = strconv.FormatUint(uint64(event.Message.Sequence), 10)
		if b, err := json.Marshal(jsonValue(event.Message.Value)); err == nil {
			value = string(b)
		}
	case event.StateChange != nil:
		kind = "state"
		value = event.StateChange.OldState + "->" + event.StateChange.NewState
	case event.Error != nil:
		kind = "error"
		value = event.Error.Message
	}
	return s.w.Write([]string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.SessionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Topic,
		kind,
		seq,
		value,
	})
}

func (s csvSink) flush() error {
	s.w.Flush()
	return s.w.Error()
}

// jsonValue rewrites CBOR maps with non-string keys so encoding/json accepts them.
func jsonValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonValue(e)
		}
		return out
	default:
		return v
	}
}
