package events

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	uperrors "analytics-uploader/internal/errors"
)

const utf8BOM = "\ufeff"

// ReadFile returns a lazy sequence of the events in the CSV file at path,
// skipping customers that start with reservedPrefix. Each range over the
// sequence reopens the file, so the sequence can be consumed more than once
// and always yields the same events in file order.
func ReadFile(path, reservedPrefix string) iter.Seq2[AnalyticsEvent, error] {
	return func(yield func(AnalyticsEvent, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(AnalyticsEvent{}, uperrors.New(uperrors.KindConfig, fmt.Errorf("open %s: %w", path, err)))
			return
		}
		defer f.Close()

		for ev, err := range Read(f, reservedPrefix) {
			if !yield(ev, err) {
				return
			}
		}
	}
}

// Read streams events from r. The first record is the header; columns are
// matched by name, so their order does not matter and extra columns are
// ignored. When a name repeats, the rightmost column wins. An empty input
// yields nothing. Iteration stops after the first error, which is a
// malformed-row error when the header or a record lacks one of the expected
// fields.
func Read(r io.Reader, reservedPrefix string) iter.Seq2[AnalyticsEvent, error] {
	return func(yield func(AnalyticsEvent, error) bool) {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(AnalyticsEvent{}, uperrors.NewRowError(uperrors.KindMalformedRow, 1, err))
			return
		}

		idx, err := columnIndex(header)
		if err != nil {
			yield(AnalyticsEvent{}, uperrors.NewRowError(uperrors.KindMalformedRow, 1, err))
			return
		}

		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				line := -1
				var perr *csv.ParseError
				if errors.As(err, &perr) {
					line = perr.Line
				}
				yield(AnalyticsEvent{}, uperrors.NewRowError(uperrors.KindMalformedRow, line, err))
				return
			}

			line, _ := reader.FieldPos(0)
			ev, err := idx.event(record)
			if err != nil {
				yield(AnalyticsEvent{}, uperrors.NewRowError(uperrors.KindMalformedRow, line, err))
				return
			}

			if reservedPrefix != "" && strings.HasPrefix(ev.Customer, reservedPrefix) {
				continue
			}

			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[AnalyticsEvent, error]) ([]AnalyticsEvent, error) {
	var out []AnalyticsEvent
	for ev, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	idx := make(columns, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		// a repeated name refers to its last column
		idx[name] = i
	}

	var missing []string
	for _, f := range Fields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing fields: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func (c columns) event(record []string) (AnalyticsEvent, error) {
	get := func(field string) (string, error) {
		i := c[field]
		if i >= len(record) {
			return "", fmt.Errorf("missing field %s", field)
		}
		return record[i], nil
	}

	var ev AnalyticsEvent
	var err error
	if ev.Time, err = get(FieldTime); err != nil {
		return ev, err
	}
	if ev.Customer, err = get(FieldCustomer); err != nil {
		return ev, err
	}
	if ev.Namespace, err = get(FieldNamespace); err != nil {
		return ev, err
	}
	if ev.Event, err = get(FieldEvent); err != nil {
		return ev, err
	}
	if ev.Additional, err = get(FieldAdditional); err != nil {
		return ev, err
	}
	return ev, nil
}
