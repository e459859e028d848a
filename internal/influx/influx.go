// Package influx writes territory events to InfluxDB as a time series. When the
// server cannot be reached, points go to a gzip'd line protocol backup file
// that can be replayed later.
package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/queue"
	"github.com/sportsin/territory/pkg/core"
)

// Measurement is the measurement name of every territory event point.
const Measurement = "territory_event"

// ErrDisabled is returned by Connect when influx is switched off in the config.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
	}
}

// Connect establishes a connection to InfluxDB, falling back to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) ensureBucket(ctx context.Context) error {
	orgName := m.cfg.Org

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}

	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 90, // 90 days
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	lineProtocol = strings.TrimRight(lineProtocol, "\n") + "\n"
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteEvents converts and writes a batch of events. The first error stops the
// batch; the returned count says how many were written before it.
func (m *Manager) WriteEvents(events []core.Event) (int, error) {
	for i, e := range events {
		if err := m.WritePoint(EventPoint(e)); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	var err error
	if m.BackupWriter != nil {
		err = m.BackupWriter.Close()
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		if closeErr := m.backupFile.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.backupFile = nil
	}
	return err
}

// EventPoint maps an engine event to a point. Identifiers become tags; the
// numeric payload becomes fields.
func EventPoint(e core.Event) *influxdb2_write.Point {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	point := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("kind", string(e.Kind)).
		SetTime(ts)

	if e.Team != core.NoTeam {
		point.AddTag("team", strconv.FormatInt(int64(e.Team), 10))
	}
	if e.Point != "" {
		point.AddTag("point", string(e.Point))
	}
	if e.Zone != 0 {
		point.AddTag("zone", strconv.FormatInt(int64(e.Zone), 10))
	}
	if e.Route != 0 {
		point.AddTag("route", strconv.FormatInt(int64(e.Route), 10))
	}
	if e.Perk != "" {
		point.AddTag("perk", e.Perk)
	}

	point.AddField("previous", int64(e.Previous))
	point.AddField("value", e.Value)
	point.AddField("count", e.Count)
	return point
}

// Sink buffers events in a queue until a flusher writes them out.
type Sink struct {
	Queue *queue.Queue[core.Event]
}

// NewSink creates a sink holding at most limit pending events; limit <= 0 is unbounded.
func NewSink(limit int) *Sink {
	return &Sink{Queue: queue.NewBounded[core.Event](limit)}
}

// Publish implements core.EventSink.
func (s *Sink) Publish(e core.Event) {
	s.Queue.Push(e)
}

// Flush drains up to max pending events into m. Events not written are put
// back at the front of the queue for the next flush.
func (s *Sink) Flush(m *Manager, max int) (int, error) {
	events := s.Queue.Drain(max)
	if len(events) == 0 {
		return 0, nil
	}
	n, err := m.WriteEvents(events)
	if err != nil {
		s.Queue.Requeue(events[n:]...)
		return n, err
	}
	return n, nil
}
