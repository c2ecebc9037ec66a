package api

import (
	"github.com/scrivenerhq/scrivener/internal/compliance"
	"github.com/scrivenerhq/scrivener/internal/highlight"
	"github.com/scrivenerhq/scrivener/internal/nlp"
	"github.com/scrivenerhq/scrivener/internal/sessions"
	"github.com/scrivenerhq/scrivener/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Sessions   sessions.System
	Compliance compliance.System
	Highlight  *highlight.Relay
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	recognizer := nlp.New(
		runtime.Config.NLP.Agent,
		runtime.Config.NLP.Options(),
		runtime.Logger,
	)

	extractionRuntime := &workflow.Runtime{
		Recognizer: recognizer,
		Logger:     runtime.Logger,
	}

	sessionsSystem := sessions.New(
		runtime.Database.Connection(),
		runtime.Storage,
		extractionRuntime,
		runtime.Logger,
		runtime.Pagination,
		runtime.Config.Sessions.WorkDir,
		runtime.Config.Sessions.LockWaitDuration(),
	)

	complianceSystem := compliance.New(
		runtime.Database.Connection(),
		sessionsSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Sessions:   sessionsSystem,
		Compliance: complianceSystem,
		Highlight:  highlight.New(),
	}
}
