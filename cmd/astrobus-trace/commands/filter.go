package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
)

// FilterOptions specifies criteria for the filter command.
type FilterOptions struct {
	Output    string
	ConnID    string
	Device    string
	Layer     string
	Direction string
	Category  string
}

// RunFilter copies events matching the options into a new trace file.
func RunFilter(path string, opts FilterOptions) error {
	var filter ViewFilter

	if opts.Layer != "" {
		l, err := ParseLayerFlag(opts.Layer)
		if err != nil {
			return err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := ParseDirectionFlag(opts.Direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}
	filter.Device = opts.Device

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer in.Close()

	out, err := buslog.OpenFileLogger(opts.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	reader := buslog.NewReader(in)
	kept := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		if !filter.matches(event) {
			continue
		}
		if opts.ConnID != "" && !strings.HasPrefix(event.ConnectionID, opts.ConnID) {
			continue
		}

		out.Log(*event)
		kept++
	}

	fmt.Printf("Wrote %d events to %s\n", kept, opts.Output)
	return nil
}
