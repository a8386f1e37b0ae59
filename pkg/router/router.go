// Package router implements the Execution Router: it walks a ranked
// candidate list, checks each candidate's availability and dependencies
// against the registry, resolves a backend and effective prompt, and
// dispatches through the Backend Orchestrator, recording per-candidate
// feedback along the way.
package router

import (
	"context"
	"strings"

	"github.com/ternarybob/relay/pkg/backend"
	"github.com/ternarybob/relay/pkg/registry"
	"github.com/ternarybob/relay/pkg/resource"
	"github.com/ternarybob/relay/pkg/stream"
)

// Intent names what the caller wants executed: a ranked list of resource
// namespaces ("<type>:<name>") to try, or a single fallback entity
// namespace when no ranking was given.
type Intent struct {
	Candidates []string
	Entity     string
}

// candidates assembles the walk order per spec: intent.candidates if
// non-empty, else [intent.entity], else the empty list.
func (i Intent) candidates() []string {
	if len(i.Candidates) > 0 {
		return i.Candidates
	}
	if i.Entity != "" {
		return []string{i.Entity}
	}
	return nil
}

// CandidateReason records why a candidate was skipped or how it fared.
type CandidateReason struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Decision is the router's record of a routing attempt, independent of
// whether it ultimately succeeded.
type Decision struct {
	Chosen  string            `json:"chosen,omitempty"`
	Reasons []CandidateReason `json:"reasons"`
}

// Router resolves intents against a resource registry and dispatches
// through a Backend Orchestrator.
type Router struct {
	registry       *registry.Registry
	orchestrator   *backend.Orchestrator
	defaultBackend string
}

// New returns a Router backed by reg and dispatching through orch.
// defaultBackend is used when a resource declares no backend hint.
func New(reg *registry.Registry, orch *backend.Orchestrator, defaultBackend string) *Router {
	if defaultBackend == "" {
		defaultBackend = "A"
	}
	return &Router{registry: reg, orchestrator: orch, defaultBackend: defaultBackend}
}

// Route walks the intent's candidates in order, dispatching the first
// one that is available, has its dependencies satisfied, and succeeds.
// Each candidate is a full namespace ("<type>:<name>"), so a single
// candidate list may freely mix skills, commands, agents, and prompts.
func (r *Router) Route(ctx context.Context, intent Intent, request string, sink stream.Sink) (*backend.TaskResult, Decision) {
	decision := Decision{}

	for _, name := range intent.candidates() {
		res, ok := r.lookup(name)
		if !ok {
			decision.Reasons = append(decision.Reasons, CandidateReason{Name: name, Reason: "not_available"})
			continue
		}

		if missing := r.missingDependency(res); missing != "" {
			decision.Reasons = append(decision.Reasons, CandidateReason{Name: name, Reason: "dependency_missing"})
			continue
		}

		backendID := r.resolveBackend(res)
		prompt := r.effectivePrompt(res, request)

		task := backend.Task{Backend: backendID, Prompt: prompt}
		result, err := r.orchestrator.RunTask(ctx, task, sink)
		if err != nil {
			decision.Reasons = append(decision.Reasons, CandidateReason{Name: name, Reason: err.Error()})
			continue
		}
		if result.Success {
			decision.Chosen = name
			decision.Reasons = append(decision.Reasons, CandidateReason{Name: name, Reason: "ok"})
			return result, decision
		}
		decision.Reasons = append(decision.Reasons, CandidateReason{Name: name, Reason: "fail: " + result.Error})
	}

	return &backend.TaskResult{Success: false, Error: "no viable candidate"}, decision
}

func (r *Router) lookup(namespace string) (*resource.Resource, bool) {
	return r.registry.Get(namespace)
}

// missingDependency returns the namespace of the first declared
// dependency that does not resolve to an enabled resource, or "" if all
// resolve.
func (r *Router) missingDependency(res *resource.Resource) string {
	for _, dep := range res.Dependencies {
		if _, ok := r.lookup(dep); !ok {
			return dep
		}
	}
	return ""
}

func (r *Router) resolveBackend(res *resource.Resource) string {
	if res.Backend != "" {
		return res.Backend
	}
	return r.defaultBackend
}

// effectivePrompt concatenates the resource's System Prompt and User
// Prompt Template sections, substituting {{request}} in the template. If
// neither section exists, the raw request is used verbatim.
func (r *Router) effectivePrompt(res *resource.Resource, request string) string {
	system := res.Sections["System Prompt"]
	template := res.Sections["User Prompt Template"]

	if system == "" && template == "" {
		return request
	}

	userPrompt := strings.ReplaceAll(template, "{{request}}", request)

	var b strings.Builder
	if system != "" {
		b.WriteString(strings.TrimSpace(system))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(userPrompt))
	return b.String()
}
