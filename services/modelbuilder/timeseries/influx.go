// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timeseries

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DefaultMeasurement is the InfluxDB measurement daily values are written to.
const DefaultMeasurement = "daily_emissions"

// InfluxConfig locates the InfluxDB bucket daily series are exported to.
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// InfluxExporter writes daily series to InfluxDB.
//
// Thread Safety: Safe for concurrent use; the blocking write API is.
type InfluxExporter struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
}

// NewInfluxExporter creates an exporter. It does not contact the server.
func NewInfluxExporter(cfg InfluxConfig) (*InfluxExporter, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx exporter: url, org and bucket are required")
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxExporter{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.Measurement,
	}, nil
}

// Export writes one point per day tagged with the series name.
func (e *InfluxExporter) Export(ctx context.Context, name string, d DailySeries) error {
	points := DailyPoints(e.measurement, name, d)
	if len(points) == 0 {
		return nil
	}
	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d daily points for %s: %w", len(points), name, err)
	}
	return nil
}

// Close releases the client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// DailyPoints converts a daily series to InfluxDB points, one per day.
func DailyPoints(measurement, name string, d DailySeries) []*write.Point {
	points := make([]*write.Point, 0, len(d.Values))
	for i, day := range d.Dates() {
		p := influxdb2.NewPointWithMeasurement(measurement).
			AddTag("series", name).
			AddTag("unit", d.Unit).
			AddTag("aggregation", d.Aggregation).
			AddField("value", d.Values[i]).
			SetTime(day)
		points = append(points, p)
	}
	return points
}
