package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/swarmpace/internal/pattern"
)

// Format selects a rendering for sampled timelines.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want text, json or yaml)", s)
	}
}

// SamplePoint is one row of a sampled timeline.
type SamplePoint struct {
	Offset     string  `json:"offset" yaml:"offset"`
	OffsetMs   int64   `json:"offsetMs" yaml:"offsetMs"`
	Step       string  `json:"step" yaml:"step"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	TargetRPS  float64 `json:"targetRps" yaml:"targetRps"`
}

// SampleTable is a timeline sampled over one cycle.
type SampleTable struct {
	Duration              string        `json:"duration" yaml:"duration"`
	BaseRPS               float64       `json:"baseRps" yaml:"baseRps"`
	NormalizationConstant float64       `json:"normalizationConstant" yaml:"normalizationConstant"`
	Points                []SamplePoint `json:"points" yaml:"points"`
}

// SampleTimeline evaluates tl every step across one cycle, end inclusive.
func SampleTimeline(tl *pattern.Timeline, baseRPS float64, step time.Duration) SampleTable {
	if step <= 0 {
		step = tl.Duration() / 20
	}
	if step <= 0 {
		step = time.Millisecond
	}
	table := SampleTable{
		Duration:              tl.Duration().String(),
		BaseRPS:               baseRPS,
		NormalizationConstant: tl.NormalizationConstant(),
	}
	for at := time.Duration(0); ; at += step {
		if at > tl.Duration() {
			at = tl.Duration()
		}
		s := tl.SampleElapsed(at)
		table.Points = append(table.Points, SamplePoint{
			Offset:     at.String(),
			OffsetMs:   at.Milliseconds(),
			Step:       s.StepID,
			Multiplier: s.Multiplier,
			TargetRPS:  baseRPS * s.Multiplier,
		})
		if at == tl.Duration() {
			break
		}
	}
	return table
}

// PrintSamples renders table in the given format.
func PrintSamples(w io.Writer, table SampleTable, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(table); err != nil {
			return err
		}
		return enc.Close()
	default:
		fmt.Fprintf(w, "Pattern duration %s, base %.2f rps, normalization %.6f\n\n",
			table.Duration, table.BaseRPS, table.NormalizationConstant)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "OFFSET\tSTEP\tMULTIPLIER\tTARGET RPS\t")
		for _, p := range table.Points {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.2f\t%s\n", p.Offset, p.Step, p.Multiplier, p.TargetRPS, bar(p.Multiplier))
		}
		return tw.Flush()
	}
}

func bar(multiplier float64) string {
	n := int(multiplier * 20)
	if n < 0 {
		n = 0
	}
	if n > 60 {
		n = 60
	}
	return strings.Repeat("#", n)
}
