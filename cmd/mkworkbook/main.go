// Command mkworkbook writes a sample .xlsx workbook from one of the mock data
// templates. Useful for exercising the excel source path end to end without
// hunting for a real spreadsheet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/denso-Innovation-team/excel-to-db-ssms-sub002/internal/source"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("mkworkbook", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		out      string
		template string
		rows     int
		seed     int64
		sheet    string
	)
	fs.StringVar(&out, "out", "sample.xlsx", "output workbook path")
	fs.StringVar(&template, "template", source.TemplateEmployees, "mock template (employees, sales, inventory, financial)")
	fs.IntVar(&rows, "rows", 100, "rows to generate")
	fs.Int64Var(&seed, "seed", 0, "RNG seed (0 seeds from the clock)")
	fs.StringVar(&sheet, "sheet", "Sheet1", "worksheet name")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	if err := writeWorkbook(ctx, out, sheet, source.MockOptions{
		Template:  template,
		Rows:      rows,
		ChunkSize: 1000,
		Seed:      seed,
	}); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stderr, "wrote %d rows to %s\n", rows, out)
	return 0
}

// writeWorkbook streams the generated rows into a workbook, header first.
func writeWorkbook(ctx context.Context, path, sheet string, opts source.MockOptions) error {
	src := source.NewMock(opts)
	info, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	f.SetSheetName(f.GetSheetName(0), sheet)

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := make([]any, len(info.Columns))
	for i, col := range info.Columns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	rowNum := 2
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		for _, record := range chunk.Rows {
			cells := make([]any, len(info.Columns))
			for i, col := range info.Columns {
				cells[i] = record[col]
			}
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, cells); err != nil {
				return err
			}
			rowNum++
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
