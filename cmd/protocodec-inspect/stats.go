package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/anirudhraja/protocodec/protofile"
	"github.com/anirudhraja/protocodec/wire"
)

// statsCommand prints per-field size statistics for payloads.
type statsCommand struct {
	g     *globalFlags
	files *[]string
}

type fieldStats struct {
	number      wire.FieldNumber
	wireTypes   map[wire.WireType]int
	occurrences int
	bytes       uint64
}

func (cmd *statsCommand) run(*kingpin.ParseContext) error {
	cfg := cmd.g.config()
	codec := protofile.RawCodec{MaxLength: cfg.MaxLength}
	for _, name := range *cmd.files {
		var (
			messages int
			total    uint64
			byNumber = make(map[wire.FieldNumber]*fieldStats)
		)
		cmd.g.forEachPayload(context.Background(), name, cfg, func(_ int, payload []byte) error {
			fields, err := codec.Decode(payload)
			if err != nil {
				return err
			}
			messages++
			total += uint64(len(payload))
			for _, f := range fields {
				st, ok := byNumber[f.Number]
				if !ok {
					st = &fieldStats{number: f.Number, wireTypes: make(map[wire.WireType]int)}
					byNumber[f.Number] = st
				}
				st.occurrences++
				st.wireTypes[f.WireType]++
				st.bytes += uint64(codec.EncodedSize([]protofile.RawField{f}))
			}
			return nil
		})
		printStats(name, messages, total, byNumber)
	}
	return nil
}

func printStats(name string, messages int, total uint64, byNumber map[wire.FieldNumber]*fieldStats) {
	stats := make([]*fieldStats, 0, len(byNumber))
	for _, st := range byNumber {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].bytes > stats[j].bytes })

	bold := color.New(color.Bold)
	bold.Printf("%s:\n", name)
	fmt.Printf("\tmessages: %d, total size: %v\n", messages, humanize.Bytes(total))
	if messages > 0 {
		fmt.Printf("\taverage message size: %v\n", humanize.Bytes(total/uint64(messages)))
	}
	bold.Println("\tFields (by encoded size):")
	for _, st := range stats {
		share := 0.0
		if total > 0 {
			share = 100 * float64(st.bytes) / float64(total)
		}
		fmt.Printf("\t\t#%-6d %8s %5.1f%%  occurrences: %s  wire types: %s\n",
			st.number,
			humanize.Bytes(st.bytes),
			share,
			humanize.Comma(int64(st.occurrences)),
			wireTypeSummary(st.wireTypes),
		)
	}
}

func wireTypeSummary(counts map[wire.WireType]int) string {
	types := make([]wire.WireType, 0, len(counts))
	for wt := range counts {
		types = append(types, wt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	out := ""
	for i, wt := range types {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%d", wt, counts[wt])
	}
	return out
}

func addStatsCommand(app *kingpin.Application, g *globalFlags) {
	cmd := &statsCommand{g: g}
	stats := app.Command("stats", "Print per-field size statistics.").Action(cmd.run)
	cmd.files = stats.Arg("file", "Files to summarize, - for standard input.").Required().Strings()
}
