// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import "sync"

// Standard class names.
const (
	ClassSystem           = "System"
	ClassUsagePattern     = "UsagePattern"
	ClassEdgeUsagePattern = "EdgeUsagePattern"
	ClassUsageJourney     = "UsageJourney"
	ClassUsageJourneyStep = "UsageJourneyStep"
	ClassJob              = "Job"
	ClassGPUJob           = "GPUJob"
	ClassServer           = "Server"
	ClassGPUServer        = "GPUServer"
	ClassStorage          = "Storage"
	ClassService          = "Service"
	ClassDevice           = "Device"
	ClassNetwork          = "Network"
	ClassCountry          = "Country"
	ClassEdgeUsageJourney = "EdgeUsageJourney"
	ClassEdgeFunction     = "EdgeFunction"
	ClassEdgeDevice       = "EdgeDevice"
)

// Attribute names shared with validation and timeseries aggregation.
const (
	AttrUsagePatterns         = "usage_patterns"
	AttrEdgeUsagePatterns     = "edge_usage_patterns"
	AttrUsageJourney          = "usage_journey"
	AttrUJSteps               = "uj_steps"
	AttrJobs                  = "jobs"
	AttrHourlyStarts          = "hourly_usage_journey_starts"
	AttrHourlyEdgeStarts      = "hourly_edge_usage_journey_starts"
	AttrEdgeUsageJourney      = "edge_usage_journey"
	AttrEdgeFunctions         = "edge_functions"
	AttrEdgeDevices           = "edge_devices"
	AttrServer                = "server"
	AttrStorage               = "storage"
	AttrDevices               = "devices"
	AttrNetwork               = "network"
	AttrCountry               = "country"
	UnitOccurrence            = "occurrence"
	calcUsagePatternCount     = "usage_pattern_count"
	calcEdgeUsagePatternCount = "edge_usage_pattern_count"
)

var (
	standardOnce   sync.Once
	standardSchema *Schema
)

// StandardSchema returns the shared schema of the model builder classes.
//
// Hardware, services, networks and countries are shared infrastructure:
// they survive when the last object using them goes away. Everything
// describing usage is deleted with its last container.
func StandardSchema() *Schema {
	standardOnce.Do(func() {
		standardSchema = NewSchema().MustRegister(
			Class{Name: ClassCountry, Label: "Country", Attrs: []AttrSpec{
				{Name: "average_carbon_intensity", Unit: "gCO2e/kWh"},
				{Name: "timezone", Text: true},
			}},
			Class{Name: ClassNetwork, Label: "Network", Attrs: []AttrSpec{
				{Name: "bandwidth_energy_intensity", Unit: "kWh/GB"},
			}},
			Class{Name: ClassDevice, Label: "Device", Attrs: hardwareAttrs()},
			Class{Name: ClassStorage, Label: "Storage", Attrs: []AttrSpec{
				{Name: "storage_capacity", Unit: "GB"},
				{Name: "carbon_footprint_fabrication", Unit: "kg"},
				{Name: "lifespan", Unit: "year"},
			}, Compute: countContainers},
			Class{Name: ClassServer, Label: "Server", Attrs: append(hardwareAttrs(),
				AttrSpec{Name: "server_utilization_rate", Max: 1},
				AttrSpec{Name: AttrStorage, Kind: KindReference, ElemClass: ClassStorage},
			), Compute: countContainers},
			Class{Name: ClassGPUServer, Base: ClassServer, Label: "GPU server", Attrs: []AttrSpec{
				{Name: "gpu_count"},
			}},
			Class{Name: ClassService, Label: "Service", Attrs: []AttrSpec{
				{Name: AttrServer, Kind: KindReference, ElemClass: ClassServer},
			}},
			Class{Name: ClassJob, Label: "Job", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: AttrServer, Kind: KindReference, ElemClass: ClassServer},
				{Name: "data_transferred", Unit: "MB"},
				{Name: "data_stored", Unit: "MB"},
				{Name: "request_duration", Unit: "s"},
				{Name: "compute_needed", Unit: "cpu_core"},
				{Name: "ram_needed", Unit: "GB_ram"},
			}},
			Class{Name: ClassGPUJob, Base: ClassJob, Label: "GPU job", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: "gpu_needed", Unit: "gpu"},
			}},
			Class{Name: ClassUsageJourneyStep, Label: "Usage journey step", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: "user_time_spent", Unit: "min"},
				{Name: AttrJobs, Kind: KindList, ElemClass: ClassJob},
			}, Compute: computeStep},
			Class{Name: ClassUsageJourney, Label: "Usage journey", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: AttrUJSteps, Kind: KindList, ElemClass: ClassUsageJourneyStep},
			}, Compute: computeJourney},
			Class{Name: ClassUsagePattern, Label: "Usage pattern", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: AttrUsageJourney, Kind: KindReference, ElemClass: ClassUsageJourney},
				{Name: AttrDevices, Kind: KindList, ElemClass: ClassDevice},
				{Name: AttrNetwork, Kind: KindReference, ElemClass: ClassNetwork},
				{Name: AttrCountry, Kind: KindReference, ElemClass: ClassCountry},
				{Name: AttrHourlyStarts, Kind: KindTimeseries, Unit: UnitOccurrence},
			}, Compute: computePattern(AttrHourlyStarts)},
			Class{Name: ClassEdgeDevice, Label: "Edge device", Attrs: hardwareAttrs()},
			Class{Name: ClassEdgeFunction, Label: "Edge function", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: AttrEdgeDevices, Kind: KindList, ElemClass: ClassEdgeDevice},
			}},
			Class{Name: ClassEdgeUsageJourney, Label: "Edge usage journey", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: "usage_span", Unit: "year"},
				{Name: AttrEdgeFunctions, Kind: KindList, ElemClass: ClassEdgeFunction},
			}},
			Class{Name: ClassEdgeUsagePattern, Label: "Edge usage pattern", DeletableIfOrphaned: true, Attrs: []AttrSpec{
				{Name: AttrEdgeUsageJourney, Kind: KindReference, ElemClass: ClassEdgeUsageJourney},
				{Name: AttrCountry, Kind: KindReference, ElemClass: ClassCountry},
				{Name: AttrHourlyEdgeStarts, Kind: KindTimeseries, Unit: UnitOccurrence},
			}, Compute: computePattern(AttrHourlyEdgeStarts)},
			Class{Name: ClassSystem, Label: "System", Attrs: []AttrSpec{
				{Name: AttrUsagePatterns, Kind: KindList, ElemClass: ClassUsagePattern},
				{Name: AttrEdgeUsagePatterns, Kind: KindList, ElemClass: ClassEdgeUsagePattern},
			}, Compute: computeSystem},
		)
	})
	return standardSchema
}

func hardwareAttrs() []AttrSpec {
	return []AttrSpec{
		{Name: "carbon_footprint_fabrication", Unit: "kg"},
		{Name: "power", Unit: "W"},
		{Name: "lifespan", Unit: "year"},
	}
}

func countContainers(n *Node) map[string]any {
	return map[string]any{"container_count": len(n.ContainerNodes())}
}

func computeStep(n *Node) map[string]any {
	return map[string]any{"job_count": len(n.lists[AttrJobs])}
}

func computeJourney(n *Node) map[string]any {
	jobs := 0
	for _, step := range n.lists[AttrUJSteps] {
		jobs += len(step.lists[AttrJobs])
	}
	return map[string]any{
		"step_count": len(n.lists[AttrUJSteps]),
		"job_count":  jobs,
	}
}

func computePattern(seriesAttr string) CalcFunc {
	return func(n *Node) map[string]any {
		total := 0.0
		if s, ok := n.series[seriesAttr]; ok {
			for _, v := range s.Values {
				total += v
			}
		}
		return map[string]any{"total_journey_starts": total}
	}
}

func computeSystem(n *Node) map[string]any {
	total := 0.0
	for _, attr := range []string{AttrUsagePatterns, AttrEdgeUsagePatterns} {
		for _, p := range n.lists[attr] {
			if v, ok := p.calculated["total_journey_starts"].(float64); ok {
				total += v
			}
		}
	}
	return map[string]any{
		calcUsagePatternCount:     len(n.lists[AttrUsagePatterns]),
		calcEdgeUsagePatternCount: len(n.lists[AttrEdgeUsagePatterns]),
		"total_journey_starts":    total,
	}
}
