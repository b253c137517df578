// Package artifact records and looks up the last result of running a
// project's stage.
package artifact

import "time"

// ArtifactType classifies what a successful stage produced.
type ArtifactType string

const (
	TypeNone          ArtifactType = "none"
	TypeDockerImage   ArtifactType = "docker_image"
	TypeJUnitTests    ArtifactType = "junit_tests"
	TypeDeployedApp   ArtifactType = "deployed_app"
	TypeBuildArtifact ArtifactType = "build_artifact"
)

// Artifact is what a successful stage produced. Revision must be the hash of
// the revision the artifact was built from; staleness detection compares
// against it.
type Artifact struct {
	Revision string            `json:"revision"`
	Type     ArtifactType      `json:"type"`
	Spec     map[string]string `json:"spec,omitempty"`
}

// Output is the last recorded result of a (project, stage) pair. It is one of
// NotFound, Failed or Succeeded.
type Output interface {
	isOutput()
}

// NotFound means nothing was ever recorded.
type NotFound struct{}

// Failed means the last execution failed.
type Failed struct {
	Message    string
	RecordedAt time.Time
}

// Succeeded means the last execution succeeded. Artifact is nil when the step
// produced nothing that can be tied to a revision.
type Succeeded struct {
	Message    string
	Artifact   *Artifact
	RecordedAt time.Time
}

func (NotFound) isOutput()  {}
func (Failed) isOutput()    {}
func (Succeeded) isOutput() {}

// TrustedRevision returns the revision of the produced artifact when the
// output is a success with an artifact. Any other output is not trustworthy.
func TrustedRevision(out Output) (string, bool) {
	switch o := out.(type) {
	case Succeeded:
		if o.Artifact != nil {
			return o.Artifact.Revision, true
		}
	}
	return "", false
}

// Describe renders an output for status listings.
func Describe(out Output) string {
	switch o := out.(type) {
	case Succeeded:
		if o.Artifact == nil {
			return "succeeded (no artifact)"
		}
		return "succeeded at " + shortHash(o.Artifact.Revision)
	case Failed:
		if o.Message == "" {
			return "failed"
		}
		return "failed: " + o.Message
	default:
		return "never run"
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// record is the persisted JSON shape shared by the stores.
type record struct {
	Success          bool      `json:"success"`
	Message          string    `json:"message,omitempty"`
	ProducedArtifact *Artifact `json:"produced_artifact,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

func toRecord(out Output, now time.Time) (record, bool) {
	switch o := out.(type) {
	case Succeeded:
		at := o.RecordedAt
		if at.IsZero() {
			at = now
		}
		return record{Success: true, Message: o.Message, ProducedArtifact: o.Artifact, RecordedAt: at}, true
	case Failed:
		at := o.RecordedAt
		if at.IsZero() {
			at = now
		}
		return record{Success: false, Message: o.Message, RecordedAt: at}, true
	default:
		return record{}, false
	}
}

func (r record) output() Output {
	if r.Success {
		return Succeeded{Message: r.Message, Artifact: r.ProducedArtifact, RecordedAt: r.RecordedAt}
	}
	return Failed{Message: r.Message, RecordedAt: r.RecordedAt}
}
