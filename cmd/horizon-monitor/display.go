package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/fatih/color"

	"github.com/ethpandaops/horizon-monitor/types"
	"github.com/ethpandaops/horizon-monitor/utils"
)

const (
	displayWidth = 50
	keyWidth     = 30
)

var (
	lineColor     = color.New(color.FgCyan)
	titleColor    = color.New(color.Bold)
	sectionColor  = color.New(color.FgMagenta)
	dimColor      = color.New(color.Faint)
	keyColor      = color.New(color.FgCyan)
	totalKeyColor = color.New(color.FgCyan, color.Bold)
	valueColor    = color.New(color.FgWhite)
	totalColor    = color.New(color.Bold)
	successColor  = color.New(color.FgGreen)
	infoColor     = color.New(color.FgBlue)
	warningColor  = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	shareColor    = color.New(color.FgBlue)
	stakeColor    = color.New(color.FgGreen)
)

// Display renders command output as colored key/value sections.
type Display struct {
	out io.Writer
}

func NewDisplay(out io.Writer) *Display {
	return &Display{out: out}
}

func (d *Display) Header(title string) {
	line := strings.Repeat("═", displayWidth)
	fmt.Fprintln(d.out)
	lineColor.Fprintln(d.out, line)
	titleColor.Fprintln(d.out, "  "+title)
	lineColor.Fprintln(d.out, line)
}

func (d *Display) Section(title string) {
	fmt.Fprintln(d.out)
	sectionColor.Fprintln(d.out, "▸ "+title)
	dimColor.Fprintln(d.out, strings.Repeat("─", keyWidth))
}

func (d *Display) Divider() {
	fmt.Fprintln(d.out)
	dimColor.Fprintln(d.out, strings.Repeat("▔", displayWidth))
}

func (d *Display) KeyValue(key string, value interface{}) {
	fmt.Fprintf(d.out, "  %v %v\n", keyColor.Sprint(padRight(key, keyWidth)), valueColor.Sprint(value))
}

func (d *Display) Total(key string, value interface{}) {
	fmt.Fprintf(d.out, "  %v %v\n", totalKeyColor.Sprint(padRight(key, keyWidth)), totalColor.Sprint(value))
}

func (d *Display) Tokens(key string, amount *big.Int) {
	d.KeyValue(key, utils.FormatGRT(amount))
}

func (d *Display) TotalTokens(key string, amount *big.Int) {
	d.Total(key, utils.FormatGRT(amount))
}

func (d *Display) Success(message string) {
	successColor.Fprintln(d.out, "✔ "+message)
}

func (d *Display) Info(message string) {
	infoColor.Fprintln(d.out, "ℹ "+message)
}

func (d *Display) Warning(message string) {
	warningColor.Fprintln(d.out, "⚠ "+message)
}

func (d *Display) Error(message string) {
	errorColor.Fprintln(d.out, "✖ "+message)
}

// IndexerRow prints one indexer line of the migration report.
func (d *Display) IndexerRow(id, queryShare, stakeCoverage, staked, url string) {
	fmt.Fprintf(d.out, "    %v %v %v %v %v\n",
		keyColor.Sprint(padRight(id, 44)),
		shareColor.Sprint(padRight(queryShare, 8)),
		stakeColor.Sprint(padRight(stakeCoverage, 8)),
		valueColor.Sprint(padRight(staked, 16)),
		dimColor.Sprint(url),
	)
}

// Mismatches prints the mismatch section of a reconciled command.
func (d *Display) Mismatches(mismatches []types.Mismatch) {
	d.Divider()
	if len(mismatches) == 0 {
		d.Success("All data sources match, validation successful!")
		d.Divider()
		return
	}

	d.Error(fmt.Sprintf("CRITICAL: found %v data mismatch(es) between RPC and subgraph!", len(mismatches)))
	for _, mismatch := range mismatches {
		d.Warning(mismatch.Key)
		d.KeyValue("  RPC value", formatMismatchValue(mismatch.RPCValue))
		d.KeyValue("  Subgraph value", formatMismatchValue(mismatch.SubgraphValue))
	}
	d.Divider()
}

func formatMismatchValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "<missing>"
	case map[string]interface{}, []interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

func padRight(text string, width int) string {
	if n := len([]rune(text)); n < width {
		return text + strings.Repeat(" ", width-n)
	}
	return text
}

func plural(count int, singular string) string {
	if count == 1 {
		return fmt.Sprintf("%v %v", count, singular)
	}
	return fmt.Sprintf("%v %vs", count, singular)
}
