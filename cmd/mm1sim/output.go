package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/miretskiy/mm1sim/simulator"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", usageErrorf("invalid format: %s (must be 'text', 'json' or 'yaml')", s)
	}
}

func writeReport(w io.Writer, format outputFormat, r *simulator.Report) error {
	switch format {
	case formatJSON:
		return writeJSON(w, r)
	case formatYAML:
		return writeYAML(w, r)
	}

	lines := []struct {
		label string
		value interface{}
	}{
		{"Jobs arrived", r.Arrivals},
		{"Jobs departed", r.Departures},
		{"Total empty-queue time", r.EmptyQueueTime},
		{"Maximum queue length", r.MaxQueueLength},
		{"Time at maximum queue length", r.TimeAtMaxQueueLength},
		{"Computed utilization", r.Utilization},
		{"Theoretical utilization", r.Theory.Utilization},
		{"Computed mean queue length", r.MeanQueueLength},
		{"Theoretical mean queue length", r.Theory.MeanQueueLength},
		{"Computed mean residence time", r.MeanResidenceTime},
		{"Theoretical mean residence time", r.Theory.MeanResidenceTime},
		{"", nil},
		{"Server idle time", r.IdleTime},
		{"Computed mean waiting time", r.MeanWaitingTime},
		{"Theoretical mean waiting time", r.Theory.MeanWaitingTime},
		{"Computed mean jobs in system", r.MeanSystemSize},
		{"Theoretical mean jobs in system", r.Theory.MeanSystemSize},
		{"Throughput", r.Throughput},
		{"Normalization", fmt.Sprintf("%s (%.6f)", r.Config.Normalization, r.Denominator)},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, line := range lines {
		switch v := line.value.(type) {
		case nil:
			fmt.Fprintln(tw)
		case float64:
			fmt.Fprintf(tw, "%s:\t%.6f\n", line.label, v)
		default:
			fmt.Fprintf(tw, "%s:\t%v\n", line.label, v)
		}
	}
	return tw.Flush()
}

func writeSummary(w io.Writer, format outputFormat, s *simulator.ReplicationSummary) error {
	switch format {
	case formatJSON:
		return writeJSON(w, s)
	case formatYAML:
		return writeYAML(w, s)
	}

	fmt.Fprintf(w, "Replications: %d (lambda=%g, mu=%g, T=%g)\n\n",
		s.Replications, s.Config.ArrivalRate, s.Config.ServiceRate, s.Config.EndTime)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Measure\tMean\tStdDev\t95% CI\tTheoretical\tIn CI")
	rows := []struct {
		name    string
		summary simulator.MetricSummary
	}{
		{"Utilization", s.Utilization},
		{"Mean queue length", s.MeanQueueLength},
		{"Mean jobs in system", s.MeanSystemSize},
		{"Mean residence time", s.MeanResidenceTime},
		{"Mean waiting time", s.MeanWaitingTime},
	}
	for _, row := range rows {
		inCI := "no"
		if row.summary.ContainsTheory() {
			inCI = "yes"
		}
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t[%.6f, %.6f]\t%.6f\t%s\n",
			row.name, row.summary.Mean, row.summary.StdDev,
			row.summary.Lower(), row.summary.Upper(), row.summary.Theoretical, inCI)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error marshaling results: %w", err)
	}
	return enc.Close()
}
