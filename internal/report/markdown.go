package report

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/monobuild/internal/run"
	"git.home.luguber.info/inful/monobuild/internal/stage"
)

// StatusLine summarises the run in one line.
func StatusLine(res *run.Result) string {
	switch {
	case !res.Success():
		return "❌ Failed"
	case res.IsEmpty():
		return "🤷 Nothing to do"
	case res.DryRun:
		return "📋 Planned"
	default:
		return "✅ Successful"
	}
}

func stageIcon(s stage.Stage) string {
	switch s {
	case stage.Build:
		return "🏗️"
	case stage.Test:
		return "🧪"
	case stage.Deploy:
		return "🚀"
	default:
		return "➡️"
	}
}

// Markdown renders the status line, the first failure and one line per stage
// listing its projects: *succeeded*, ~~failed~~, _planned or skipped_.
func Markdown(res *run.Result) string {
	var b strings.Builder
	b.WriteString(StatusLine(res) + "  \n")

	if failed := res.Failed(); len(failed) > 0 {
		f := failed[0]
		fmt.Fprintf(&b, "For _%s_ at _%s_\n", f.Project, f.Stage)
		if f.Message != "" {
			fmt.Fprintf(&b, "\n```\n%s\n```\n\n", f.Message)
		}
	}

	for _, sr := range res.Stages {
		if len(sr.Steps) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s  %s  \n", stageIcon(sr.Stage), oneLiner(sr.Steps))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\n> ⚠️ %s\n", w)
	}
	return b.String()
}

func oneLiner(steps []run.StepResult) string {
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		switch s.Status {
		case run.StatusSucceeded:
			names = append(names, "*"+s.Project+"*")
		case run.StatusFailed:
			names = append(names, "~~"+s.Project+"~~")
		default:
			names = append(names, "_"+s.Project+"_")
		}
	}
	return strings.Join(names, ", ")
}
