// Package stage defines the pipeline stages projects can take part in.
package stage

import (
	"git.home.luguber.info/inful/monobuild/internal/foundation/normalization"
)

// Stage names one step of the pipeline.
type Stage string

const (
	Build      Stage = "build"
	Test       Stage = "test"
	Deploy     Stage = "deploy"
	PostDeploy Stage = "postdeploy"
)

// All returns the stages in pipeline order.
func All() []Stage {
	return []Stage{Build, Test, Deploy, PostDeploy}
}

// String implements fmt.Stringer.
func (s Stage) String() string { return string(s) }

// IsDeploy reports whether the stage is the deploy stage. Deploy is the one
// stage that is not gated by a recorded artifact.
func (s Stage) IsDeploy() bool { return s == Deploy }

// Index returns the position of s in the pipeline, or -1 for unknown stages.
func (s Stage) Index() int {
	for i, st := range All() {
		if st == s {
			return i
		}
	}
	return -1
}

var stageNormalizer = normalization.NewNormalizer(map[string]Stage{
	"build":       Build,
	"test":        Test,
	"deploy":      Deploy,
	"postdeploy":  PostDeploy,
	"post-deploy": PostDeploy,
	"post_deploy": PostDeploy,
}, "")

// Parse converts user input into a Stage.
func Parse(raw string) (Stage, error) {
	return stageNormalizer.NormalizeWithError(raw)
}

// ValidNames lists accepted spellings, for help texts.
func ValidNames() []string {
	return stageNormalizer.ValidKeys()
}
