package main

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/instrument_downloader/internal/collector"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderReports(reports []collector.Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Instrument", "Results", "Written", "Failed", "Unsupported", "Size", "Duration", "Error"})

	var total collector.Report

	for _, r := range reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}

		tw.AppendRow(table.Row{
			r.Instrument,
			r.Results,
			r.Summary.Written,
			r.Summary.Failed,
			r.Summary.Unsupported,
			humanize.Bytes(uint64(r.Summary.Bytes)),
			r.Duration.Round(time.Second).String(),
			errText,
		})

		total.Results += r.Results
		total.Summary.Written += r.Summary.Written
		total.Summary.Failed += r.Summary.Failed
		total.Summary.Unsupported += r.Summary.Unsupported
		total.Summary.Bytes += r.Summary.Bytes
		total.Duration += r.Duration
	}

	tw.AppendFooter(table.Row{
		"Total",
		total.Results,
		total.Summary.Written,
		total.Summary.Failed,
		total.Summary.Unsupported,
		humanize.Bytes(uint64(total.Summary.Bytes)),
		total.Duration.Round(time.Second).String(),
		"",
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	return tw.Render()
}

func renderValidation(dirs []string, counts map[string]int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Directory", "RGB images"})

	for _, dir := range dirs {
		tw.AppendRow(table.Row{dir, strconv.Itoa(counts[dir])})
	}

	return tw.Render()
}
