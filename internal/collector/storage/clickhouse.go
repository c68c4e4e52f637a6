package storage

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/gosight/gosight/websee/internal/collector/config"
)

type ClickHouse struct {
	conn driver.Conn
}

// ReportRow represents a row in the reports table
type ReportRow struct {
	EventID        string
	ProjectID      string
	SessionID      string
	UserID         string
	EventType      string
	Status         string
	Timestamp      time.Time
	Message        string
	PageURL        string
	SDKVersion     string
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
	Country        string
	City           string
	RecordScreenID string
	Payload        string
}

// RecordingRow represents a row in the recordings table
type RecordingRow struct {
	ProjectID      string
	SessionID      string
	RecordScreenID string
	Timestamp      time.Time
	PageURL        string
	Events         string
}

func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) InsertReports(ctx context.Context, rows []ReportRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO reports (
			event_id, project_id, session_id, user_id, event_type, status, timestamp,
			message, page_url, sdk_version,
			browser, browser_version, os, device_type,
			country, city, record_screen_id, payload
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.EventID, r.ProjectID, r.SessionID, r.UserID, r.EventType, r.Status, r.Timestamp,
			r.Message, r.PageURL, r.SDKVersion,
			r.Browser, r.BrowserVersion, r.OS, r.DeviceType,
			r.Country, r.City, r.RecordScreenID, r.Payload,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) InsertRecordings(ctx context.Context, rows []RecordingRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO recordings (
			project_id, session_id, record_screen_id, timestamp, page_url, events
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		if err := batch.Append(r.ProjectID, r.SessionID, r.RecordScreenID, r.Timestamp, r.PageURL, r.Events); err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
