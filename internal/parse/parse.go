/*
PURPOSE:
  Converts raw benchmark tool stdout into a typed MetricsRecord.

REQUIREMENTS:
  User-specified:
  - Missing throughput line => parse status "failed", all fields unset.
    Zero and absent must never be conflated.
  - Throughput present but latency lines missing => "partial".

  Implementation-discovered:
  - Device logs interleave freely with tool output; match labelled lines
    anywhere and ignore everything else.
  - Values carry explicit units (FPS, ms, MB, %); the unit is part of the
    pattern so stray numbers are not picked up.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/driver.go
  - Uses: internal/model

ERROR HANDLING:
  - Pure function; never errors. Unparseable output is a classified record,
    not a failure of the parser.

IMPLEMENTATION RULES:
  - Keep this free of device/engine imports. Text in, record out.

USAGE:
  rec := parse.Metrics(stdout)

SELF-HEALING INSTRUCTIONS:
  - New tool output lines get a new regexp and a new pointer field.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Patterns track the benchmark tool's report format; update on tool
    upgrades.
*/

package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/edge-bench/edge-runner/internal/model"
)

const number = `([0-9]+(?:\.[0-9]+)?)`

var (
	reThroughput = regexp.MustCompile(`Throughput:\s*` + number + `\s*FPS`)
	reLatAvg     = regexp.MustCompile(`Average:\s*` + number + `\s*ms`)
	reLatMed     = regexp.MustCompile(`Median:\s*` + number + `\s*ms`)
	reLatMin     = regexp.MustCompile(`Min:\s*` + number + `\s*ms`)
	reLatMax     = regexp.MustCompile(`Max:\s*` + number + `\s*ms`)
	reDevMem     = regexp.MustCompile(`Device memory:\s*` + number + `\s*MB`)
	reDevUtil    = regexp.MustCompile(`Device utilization:\s*` + number + `\s*%`)

	// reToolError matches the tool's own structured failure lines.
	reToolError = regexp.MustCompile(`(?m)^\s*(?:\[\s*ERROR\s*\]|ERROR:)`)
)

// Metrics parses benchmark tool output. The returned record's ParseStatus is
// "failed" when the mandatory throughput line is absent, "partial" when any
// latency field is missing, and "ok" otherwise.
func Metrics(stdout string) model.MetricsRecord {
	rec := model.MetricsRecord{ParseStatus: model.ParseFailed}

	throughput := matchValue(reThroughput, stdout)
	if throughput == nil {
		return rec
	}
	rec.Throughput = throughput

	rec.LatencyAvg = matchValue(reLatAvg, stdout)
	rec.LatencyMed = matchValue(reLatMed, stdout)
	rec.LatencyMin = matchValue(reLatMin, stdout)
	rec.LatencyMax = matchValue(reLatMax, stdout)
	rec.DeviceMemMB = matchValue(reDevMem, stdout)
	rec.DeviceUtil = matchValue(reDevUtil, stdout)

	if rec.LatencyAvg != nil && rec.LatencyMed != nil &&
		rec.LatencyMin != nil && rec.LatencyMax != nil {
		rec.ParseStatus = model.ParseOK
	} else {
		rec.ParseStatus = model.ParsePartial
	}
	return rec
}

// ToolReportedError reports whether the output contains the tool's own
// error marker, which classifies the run as a process error even on exit 0.
func ToolReportedError(stdout, stderr string) bool {
	return reToolError.MatchString(stdout) || reToolError.MatchString(stderr)
}

// ErrorLine returns the first tool error line for diagnostics, or "".
func ErrorLine(stdout, stderr string) string {
	for _, text := range []string{stdout, stderr} {
		for _, line := range strings.Split(text, "\n") {
			if reToolError.MatchString(line) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}

func matchValue(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
