package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ssargent/actionkv/pkg/config"
	"github.com/ssargent/actionkv/pkg/store"
)

// session is an open store plus the settings it was opened with
type session struct {
	store    *store.KVStore
	config   *config.Config
	registry *prometheus.Registry
	logger   *slog.Logger
	out      io.Writer
	errOut   io.Writer
}

func (s *session) diskMode() bool {
	return s.config.IndexMode == config.IndexModeDisk
}

// notFound reports a miss on stderr; a miss is not a failure
func (s *session) notFound(key string) {
	fmt.Fprintf(s.errOut, "%s not found\n", key)
}

func (s *session) get(key string) error {
	var (
		value []byte
		found bool
		err   error
	)
	if s.diskMode() {
		value, found, err = s.store.GetViaSnapshot([]byte(key))
	} else {
		value, found, err = s.store.Get([]byte(key))
	}
	if err != nil {
		return err
	}
	if !found {
		s.notFound(key)
		return nil
	}

	fmt.Fprintf(s.out, "%s\n", value)
	return nil
}

func (s *session) insert(key, value string) error {
	if err := s.store.Insert([]byte(key), []byte(value)); err != nil {
		return err
	}
	return s.afterWrite()
}

func (s *session) update(key, value string) error {
	err := s.store.Update([]byte(key), []byte(value))
	if errors.Is(err, store.ErrKeyNotFound) {
		s.notFound(key)
		return nil
	}
	if err != nil {
		return err
	}
	return s.afterWrite()
}

func (s *session) delete(key string) error {
	err := s.store.Delete([]byte(key))
	if errors.Is(err, store.ErrKeyNotFound) {
		s.notFound(key)
		return nil
	}
	if err != nil {
		return err
	}
	return s.afterWrite()
}

// afterWrite refreshes the persisted index in disk mode
func (s *session) afterWrite() error {
	if !s.diskMode() {
		return nil
	}
	_, err := s.snapshotAndReload()
	return err
}

// snapshotAndReload persists the index and replays the log, since taking a
// snapshot leaves only the index key in memory
func (s *session) snapshotAndReload() (*store.IndexSnapshot, error) {
	snap, err := s.store.SnapshotIndex()
	if err != nil {
		return nil, err
	}
	if err := s.store.Load(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *session) find(key string) error {
	offset, value, found, err := s.store.Find([]byte(key))
	if err != nil {
		return err
	}
	if !found {
		s.notFound(key)
		return nil
	}

	fmt.Fprintf(s.out, "%d\t%s\n", offset, value)
	return nil
}

func (s *session) keys(prefix string) error {
	indexKey := string(s.store.IndexKey())
	for _, key := range s.store.Keys() {
		if key != indexKey && strings.HasPrefix(key, prefix) {
			fmt.Fprintf(s.out, "%q\n", key)
		}
	}
	return nil
}

func (s *session) dump(showValues bool) error {
	iterator, err := s.store.Scan()
	if err != nil {
		return err
	}
	defer iterator.Close()

	for iterator.Next() {
		record := iterator.Record()
		kind := "put"
		if record.IsTombstone() {
			kind = "del"
		}
		fmt.Fprintf(s.out, "%d\t%s\t%q\t%d", iterator.Offset(), kind, record.Key, record.ValueSize)
		if showValues {
			fmt.Fprintf(s.out, "\t%q", record.Value)
		}
		fmt.Fprintln(s.out)
	}
	return iterator.Err()
}

func (s *session) verify() error {
	report, err := s.store.Verify()
	if report == nil {
		return err
	}

	fmt.Fprintf(s.out, "records:    %d\n", report.Records)
	fmt.Fprintf(s.out, "tombstones: %d\n", report.Tombstones)
	fmt.Fprintf(s.out, "keys:       %d\n", report.Keys)
	fmt.Fprintf(s.out, "valid size: %d / %d bytes\n", report.ValidSize, report.LogSize)
	fmt.Fprintf(s.out, "duration:   %s\n", report.Duration)

	if err != nil {
		fmt.Fprintf(s.out, "status:     corrupt at offset %d\n", report.ErrOffset)
		return err
	}
	if !report.OK() {
		fmt.Fprintf(s.out, "status:     %d trailing bytes after last record\n", report.LogSize-report.ValidSize)
		return errors.Newf("log has %d unreadable trailing bytes", report.LogSize-report.ValidSize)
	}
	fmt.Fprintln(s.out, "status:     ok")
	return nil
}

func (s *session) snapshot() error {
	snap, err := s.snapshotAndReload()
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "snapshot %s: %d keys, log size %d\n", snap.ID, snap.Len(), snap.LogSize)
	return nil
}

func (s *session) stats() error {
	stats := s.store.Stats()
	fmt.Fprintf(s.out, "file:       %s\n", s.store.Path())
	fmt.Fprintf(s.out, "index mode: %s\n", s.config.IndexMode)
	fmt.Fprintf(s.out, "keys:       %d\n", stats.Keys)
	fmt.Fprintf(s.out, "log size:   %d bytes\n", stats.LogSize)

	if s.diskMode() {
		snap, err := s.store.LoadSnapshot()
		switch {
		case errors.Is(err, store.ErrNoSnapshot):
			fmt.Fprintln(s.out, "snapshot:   none")
		case err != nil:
			return err
		default:
			fmt.Fprintf(s.out, "snapshot:   %s (%d keys, stale: %t)\n", snap.ID, snap.Len(), s.store.SnapshotStale(snap))
		}
	}

	if s.registry == nil {
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	fmt.Fprintln(s.out)
	for _, line := range formatMetrics(families) {
		fmt.Fprintln(s.out, line)
	}
	return nil
}

// formatMetrics renders counters, gauges and histogram counts one sample per line
func formatMetrics(families []*dto.MetricFamily) []string {
	var lines []string
	for _, family := range families {
		for _, m := range family.GetMetric() {
			name := family.GetName() + formatLabels(m.GetLabel())
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%gs", name, h.GetSampleCount(), h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	return lines
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
