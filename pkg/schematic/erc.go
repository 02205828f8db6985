package schematic

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ercSummaryCap bounds how many violations the summary lists.
const ercSummaryCap = 15

var violationCountPattern = regexp.MustCompile(`(?i)Found\s+(\d+)\s+violations`)

// ERCResult is the outcome of one external rule-checker invocation.
// Available=false means the tool was not found on the system path: the
// phase was skipped and no violation data exists, which denies acceptance
// downstream. A nil ViolationCount means the checker ran but the count
// could not be determined; that also denies acceptance.
type ERCResult struct {
	Available      bool
	ExitCode       *int
	ViolationCount *int
	Summary        []string
}

// RuleChecker invokes the external schematic rule checker. Implemented by
// the kicad-cli runner; tests substitute a scripted double.
type RuleChecker interface {
	Run(schematicPath string) *ERCResult
}

// KicadERC shells out to kicad-cli. The invocation is blocking and
// synchronous with no timeout: a hang in the external tool hangs the loop.
type KicadERC struct {
	logger *zap.Logger
}

// NewKicadERC creates the kicad-cli rule checker.
func NewKicadERC(logger *zap.Logger) *KicadERC {
	return &KicadERC{logger: logger.Named("erc")}
}

// findChecker locates the ERC executable on the system path.
func findChecker() string {
	for _, name := range []string{"kicad-cli", "kicad-sch"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// Run executes ERC against the schematic, preferring the structured JSON
// report and falling back to parsing the tool's text output for a
// violation count. Absence of the tool is not an error.
func (k *KicadERC) Run(schematicPath string) *ERCResult {
	exe := findChecker()
	if exe == "" {
		k.logger.Info("rule checker not found on path, skipping ERC")
		return &ERCResult{Available: false}
	}

	result := &ERCResult{Available: true}

	report, err := os.CreateTemp("", "erc-*.json")
	if err == nil {
		reportPath := report.Name()
		report.Close()
		defer os.Remove(reportPath)

		exitCode, output := k.invoke(exe, "sch", "erc", schematicPath, "--format", "json", "--report", reportPath)
		result.ExitCode = &exitCode

		if data, readErr := os.ReadFile(reportPath); readErr == nil && len(data) > 0 {
			if count, summary, ok := summarizeJSONReport(data); ok {
				result.ViolationCount = &count
				result.Summary = summary
				return result
			}
		}
		if count, ok := parseViolationCount(output); ok {
			result.ViolationCount = &count
		}
		result.Summary = summarizeText(output)
		return result
	}

	// No temp file available; plain text invocation.
	exitCode, output := k.invoke(exe, "sch", "erc", schematicPath)
	result.ExitCode = &exitCode
	if count, ok := parseViolationCount(output); ok {
		result.ViolationCount = &count
	}
	result.Summary = summarizeText(output)
	return result
}

// invoke runs the tool and returns its exit code plus combined output.
func (k *KicadERC) invoke(exe string, args ...string) (int, string) {
	cmd := exec.Command(exe, args...)
	output, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			k.logger.Warn("rule checker invocation failed", zap.Error(err))
			exitCode = -1
		}
	}
	return exitCode, string(output)
}

// ercReport is the structured JSON report shape: a flat violations array,
// each with severity, message and offending references.
type ercReport struct {
	Violations []struct {
		Severity   string `json:"severity"`
		Message    string `json:"message"`
		References []struct {
			Ref  string `json:"ref"`
			UUID string `json:"uuid"`
		} `json:"references"`
	} `json:"violations"`
}

// summarizeJSONReport extracts the violation count and human-readable
// summary lines from a structured report.
func summarizeJSONReport(data []byte) (count int, summary []string, ok bool) {
	var report ercReport
	if err := json.Unmarshal(data, &report); err != nil {
		return 0, nil, false
	}

	count = len(report.Violations)
	summary = append(summary, fmt.Sprintf("ERC JSON violations: %d", count))
	for i, v := range report.Violations {
		if i >= ercSummaryCap {
			break
		}
		sev := v.Severity
		if sev == "" {
			sev = "?"
		}
		var refs []string
		for _, r := range v.References {
			designator := r.Ref
			if designator == "" {
				designator = r.UUID
			}
			if designator != "" {
				refs = append(refs, designator)
			}
		}
		summary = append(summary, fmt.Sprintf("- %s: %s [%s]", sev, v.Message, strings.Join(refs, ",")))
	}
	return count, summary, true
}

// parseViolationCount scans tool output for the fixed violation-count
// pattern. ok=false means the count could not be determined.
func parseViolationCount(output string) (int, bool) {
	m := violationCountPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// summarizeText turns raw tool output into trimmed summary lines.
func summarizeText(output string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= ercSummaryCap {
			break
		}
	}
	return lines
}
