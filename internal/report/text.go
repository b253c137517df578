package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/monobuild/internal/run"
)

var title = cases.Title(language.English)

// Text renders a plain listing for terminals.
func Text(res *run.Result) string {
	var b strings.Builder
	header := "Run"
	if res.DryRun {
		header = "Plan"
	}
	fmt.Fprintf(&b, "%s %s", header, res.RunID)
	if res.Branch != "" {
		fmt.Fprintf(&b, " on %s", res.Branch)
	}
	if res.Revision != "" {
		fmt.Fprintf(&b, " at %s", short(res.Revision))
	}
	fmt.Fprintf(&b, ": %s\n", statusWord(res))

	for _, sr := range res.Stages {
		fmt.Fprintf(&b, "%s:", title.String(sr.Stage.String()))
		if len(sr.Steps) == 0 {
			b.WriteString(" nothing to do\n")
			continue
		}
		b.WriteString("\n")
		for _, s := range sr.Steps {
			fmt.Fprintf(&b, "  %-24s %-9s %s\n", s.Project, s.Status, reason(s))
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}

func statusWord(res *run.Result) string {
	switch {
	case !res.Success():
		return "failed"
	case res.IsEmpty():
		return "nothing to do"
	case res.DryRun:
		return "planned"
	default:
		return "succeeded"
	}
}

func reason(s run.StepResult) string {
	switch {
	case s.Status == run.StatusFailed && s.Message != "":
		return s.Message
	case s.Forced:
		return "(forced)"
	case len(s.ChangedFiles) == 1:
		return s.ChangedFiles[0]
	default:
		return fmt.Sprintf("%d changed files", len(s.ChangedFiles))
	}
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
