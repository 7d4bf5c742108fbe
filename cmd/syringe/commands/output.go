package commands

import (
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/openfroyo/syringe/pkg/policy"
	"github.com/openfroyo/syringe/pkg/stores"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// configureColors disables color when asked to or when NO_COLOR is set.
// Otherwise color follows terminal detection.
func configureColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

func statusColor(status stores.RunStatus) string {
	switch status {
	case stores.RunStatusCompleted:
		return green(status)
	case stores.RunStatusFailed:
		return red(status)
	default:
		return yellow(status)
	}
}

func severityColor(sev policy.Severity) string {
	label := strings.ToUpper(string(sev))
	switch sev {
	case policy.SeverityError:
		return red(label)
	case policy.SeverityWarning:
		return yellow(label)
	default:
		return label
	}
}
