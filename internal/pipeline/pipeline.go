// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives a generation job through its state machine:
// decompose the topic into sub-questions, research evidence for each,
// synthesize a draft, validate it, and persist the parsed document.
//
// The pipeline favors availability over strictness. A draft that never
// passes validation within the retry budget is still accepted, parsed,
// and saved, with every unresolved issue logged as a warning. Only a
// broken model client or missing configuration fails a job.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/coursegen/internal/diagram"
	"github.com/pdiddy/coursegen/internal/docparse"
	"github.com/pdiddy/coursegen/internal/llm"
	"github.com/pdiddy/coursegen/internal/mathfix"
	"github.com/pdiddy/coursegen/internal/refcheck"
	"github.com/pdiddy/coursegen/internal/search"
	"github.com/pdiddy/coursegen/pkg/types"
)

// JobStore receives job state transitions and progress checkpoints.
// Progress writes are fire-and-forget; only terminal transitions must
// land.
type JobStore interface {
	UpdateProgress(ctx context.Context, jobID string, fraction float64, message string) error
	SetStatus(ctx context.Context, jobID string, status types.JobStatus, errorMessage string) error
	RecordAttempt(ctx context.Context, jobID string, attempts int) error
}

// DocumentStore persists finished documents. SaveDocument has upsert
// semantics: it replaces any prior document for the same target.
type DocumentStore interface {
	SaveDocument(ctx context.Context, targetID string, doc *types.StructuredDocument) error
}

// Completer issues one language model completion. *llm.Retrier
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

const (
	subQuestionCount = 4

	defaultMaxRetries    = 2
	defaultRetryDelay    = 2 * time.Second
	defaultMinDraftChars = 200
	defaultTargetWords   = 800

	// Progress checkpoints. The fraction only ever moves forward; retry
	// cycles report the synthesis checkpoint again with a new message.
	progressDecomposed   = 0.1
	progressResearched   = 0.3
	progressSynthesizing = 0.8
	progressDone         = 1.0
)

const decomposeSystemPrompt = `You are a curriculum planner. Split the study topic you are given into exactly 4 focused sub-questions that together cover the topic. Respond with a JSON array of 4 strings and nothing else.`

const synthesisSystemPrompt = `You are an educational content writer. Write a complete study document in Markdown for the topic and evidence you are given. Requirements:
- Use # and ## headings to structure the document.
- Include at least one mermaid diagram in a fenced ` + "```mermaid" + ` block using flowchart or graph syntax with plain alphanumeric node identifiers.
- Write all mathematical expressions between $$ delimiters.
- End with a "## References" section of at least 5 numbered entries citing academic or institutional sources with their URLs.`

// Pipeline runs generation jobs to a terminal state. One Pipeline may
// run many jobs, but each RunJob call drives a single job sequentially
// on the calling goroutine.
type Pipeline struct {
	model  Completer
	search search.Provider
	jobs   JobStore
	docs   DocumentStore
	cfg    types.Config
	logger *zap.Logger
}

// New builds a Pipeline. All collaborators are required except logger,
// which defaults to a no-op.
func New(model Completer, provider search.Provider, jobs JobStore, docs DocumentStore, cfg types.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Pipeline.MaxRetries <= 0 {
		cfg.Pipeline.MaxRetries = defaultMaxRetries
	}
	if cfg.Pipeline.RetryDelay <= 0 {
		cfg.Pipeline.RetryDelay = defaultRetryDelay
	}
	if cfg.Pipeline.MinDraftChars <= 0 {
		cfg.Pipeline.MinDraftChars = defaultMinDraftChars
	}
	if cfg.Pipeline.TargetWords <= 0 {
		cfg.Pipeline.TargetWords = defaultTargetWords
	}
	return &Pipeline{
		model:  model,
		search: provider,
		jobs:   jobs,
		docs:   docs,
		cfg:    cfg,
		logger: logger,
	}
}

// RunJob drives one job to COMPLETED or FAILED. Calling it on a job
// already in a terminal state is a no-op. The job struct is updated in
// place alongside the job store writes.
func (p *Pipeline) RunJob(ctx context.Context, job *types.GenerationJob) error {
	if job.Status.Terminal() {
		p.logger.Info("job already terminal, skipping",
			zap.String("job_id", job.ID),
			zap.String("status", string(job.Status)))
		return nil
	}

	if p.cfg.AI.Model == "" {
		return p.fail(ctx, job, fmt.Errorf("no synthesis model configured"))
	}

	log := p.logger.With(zap.String("job_id", job.ID), zap.String("topic", job.Topic))

	// Decompose.
	p.setStatus(ctx, job, types.StatusDecomposing)
	questions, err := p.decompose(ctx, job.Topic)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("decomposing topic: %w", err))
	}
	log.Info("topic decomposed", zap.Int("sub_questions", len(questions)))
	p.progress(ctx, job, progressDecomposed, "topic decomposed")

	// Research.
	p.setStatus(ctx, job, types.StatusResearching)
	research := search.Research(ctx, p.search, questions, p.cfg.Search, p.logger)
	log.Info("evidence collected",
		zap.Int("snippets", len(research.Snippets)),
		zap.Int("failed_questions", len(research.Failed)))
	p.progress(ctx, job, progressResearched, "evidence collected")
	evidence := search.BuildContext(research.Snippets)

	// Synthesize and validate, retrying on validation failure.
	draft, warnings, err := p.synthesizeLoop(ctx, job, questions, evidence, log)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	// Post-process and persist.
	normalized := mathfix.Normalize(draft)
	doc, err := docparse.Parse(normalized, docparse.Options{
		FormatReferences: p.cfg.Pipeline.FormatReferences,
	})
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("parsing draft: %w", err))
	}
	if doc.Title == "" {
		doc.Title = job.Topic
	}

	if err := p.docs.SaveDocument(ctx, job.TargetID, doc); err != nil {
		return p.fail(ctx, job, fmt.Errorf("saving document: %w", err))
	}

	message := "completed"
	if len(warnings) > 0 {
		message = fmt.Sprintf("completed with %d warnings: %s", len(warnings), strings.Join(warnings, "; "))
	}
	p.progress(ctx, job, progressDone, message)
	if err := p.jobs.SetStatus(ctx, job.ID, types.StatusCompleted, ""); err != nil {
		return fmt.Errorf("recording completion of job %s: %w", job.ID, err)
	}
	job.Status = types.StatusCompleted
	job.Progress = progressDone
	job.ProgressMessage = message
	log.Info("job completed",
		zap.Int("blocks", len(doc.Blocks)),
		zap.Int("warnings", len(warnings)))
	return nil
}

// decompose asks the model to split the topic into sub-questions. A
// response that cannot be parsed as a JSON string array falls back to
// the whole topic as a single question; only a model client failure is
// an error.
func (p *Pipeline) decompose(ctx context.Context, topic string) ([]string, error) {
	raw, err := p.model.Complete(ctx, llm.Request{
		Model:        p.cfg.AI.Model,
		SystemPrompt: decomposeSystemPrompt,
		UserPrompt:   topic,
	})
	if err != nil {
		return nil, err
	}

	questions, err := parseQuestions(raw)
	if err != nil {
		p.logger.Warn("decomposition response unparseable, using whole topic",
			zap.String("topic", topic),
			zap.Error(err))
		return []string{topic}, nil
	}
	return questions, nil
}

// parseQuestions extracts a JSON string array from a model response,
// tolerating surrounding prose and code fences.
func parseQuestions(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var questions []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &questions); err != nil {
		return nil, fmt.Errorf("decoding question array: %w", err)
	}

	out := questions[:0]
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("question array is empty")
	}
	return out, nil
}

// synthesizeLoop runs up to 1+MaxRetries synthesize-and-validate
// cycles. It returns the accepted draft and, when acceptance happened
// through the accept-with-warnings policy, the unresolved issues.
func (p *Pipeline) synthesizeLoop(ctx context.Context, job *types.GenerationJob, questions []string, evidence string, log *zap.Logger) (string, []string, error) {
	maxAttempts := 1 + p.cfg.Pipeline.MaxRetries

	var draft string
	var issues []string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		p.setStatus(ctx, job, types.StatusSynthesizing)
		p.progress(ctx, job, progressSynthesizing,
			fmt.Sprintf("synthesizing draft (attempt %d of %d)", attempt, maxAttempts))
		job.Attempts = attempt
		if err := p.jobs.RecordAttempt(ctx, job.ID, attempt); err != nil {
			log.Warn("recording attempt failed", zap.Error(err))
		}

		var err error
		draft, err = p.synthesize(ctx, job.Topic, questions, evidence, issues)
		if err != nil {
			return "", nil, fmt.Errorf("synthesizing draft: %w", err)
		}

		p.setStatus(ctx, job, types.StatusValidating)
		issues = p.validate(draft, attempt)
		if len(issues) == 0 {
			log.Info("draft accepted", zap.Int("attempt", attempt))
			return draft, nil, nil
		}

		log.Warn("draft failed validation",
			zap.Int("attempt", attempt),
			zap.Strings("issues", issues))

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(p.cfg.Pipeline.RetryDelay):
		}
	}

	return draft, p.acceptWithWarnings(job, issues, log), nil
}

// acceptWithWarnings is the retry-exhaustion policy: the last draft is
// accepted as-is and every unresolved validation issue is logged, so
// the job completes with an auditable quality record instead of
// failing.
func (p *Pipeline) acceptWithWarnings(job *types.GenerationJob, issues []string, log *zap.Logger) []string {
	for _, issue := range issues {
		log.Warn("accepting draft despite validation failure",
			zap.String("job_id", job.ID),
			zap.String("issue", issue))
	}
	return issues
}

// synthesize produces one draft. A response below MinDraftChars makes
// one escalation to the fallback model; if that is also short, the
// longer of the two is returned and left to validation.
func (p *Pipeline) synthesize(ctx context.Context, topic string, questions []string, evidence string, priorIssues []string) (string, error) {
	prompt := buildPrompt(topic, questions, evidence, priorIssues)

	draft, err := p.model.Complete(ctx, llm.Request{
		Model:        p.cfg.AI.Model,
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(draft)) >= p.cfg.Pipeline.MinDraftChars || p.cfg.AI.FallbackModel == "" {
		return draft, nil
	}

	p.logger.Warn("draft below minimum length, escalating to fallback model",
		zap.String("model", p.cfg.AI.Model),
		zap.String("fallback_model", p.cfg.AI.FallbackModel),
		zap.Int("draft_chars", len(draft)))

	escalated, err := p.model.Complete(ctx, llm.Request{
		Model:        p.cfg.AI.FallbackModel,
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return "", err
	}
	if len(escalated) > len(draft) {
		return escalated, nil
	}
	return draft, nil
}

// buildPrompt renders the synthesis user prompt. Retry attempts carry
// the previous cycle's validation issues so the model can correct them.
func buildPrompt(topic string, questions []string, evidence string, priorIssues []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nCover these sub-questions:\n", topic)
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	if evidence != "" {
		b.WriteString("\nUse this evidence from web research:\n\n")
		b.WriteString(evidence)
		b.WriteString("\n")
	}
	if len(priorIssues) > 0 {
		b.WriteString("\nA previous draft was rejected for these problems. Fix all of them and write a longer, more complete document:\n")
		for _, issue := range priorIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	return b.String()
}

// validate runs the reference and diagram validators plus a word-count
// heuristic. An empty result means the draft passed.
func (p *Pipeline) validate(draft string, attempt int) []string {
	var issues []string

	if strings.TrimSpace(draft) == "" {
		return []string{"draft is empty"}
	}

	refs := refcheck.Check(draft)
	issues = append(issues, refs.Errors...)

	issues = append(issues, diagram.CheckDraft(draft)...)

	// A first attempt far below the target length retries even when the
	// formal validators pass.
	words := len(strings.Fields(draft))
	if attempt == 1 && words < p.cfg.Pipeline.TargetWords/2 {
		issues = append(issues,
			fmt.Sprintf("draft has %d words, target is %d", words, p.cfg.Pipeline.TargetWords))
	}

	return issues
}

// fail moves the job to FAILED with the error message attached. No
// partial document is ever persisted on this path.
func (p *Pipeline) fail(ctx context.Context, job *types.GenerationJob, jobErr error) error {
	p.logger.Error("job failed",
		zap.String("job_id", job.ID),
		zap.Error(jobErr))
	if err := p.jobs.SetStatus(ctx, job.ID, types.StatusFailed, jobErr.Error()); err != nil {
		p.logger.Error("recording job failure", zap.String("job_id", job.ID), zap.Error(err))
	}
	job.Status = types.StatusFailed
	job.Error = jobErr.Error()
	return jobErr
}

// setStatus records a non-terminal transition. Failures are logged and
// ignored; only terminal transitions must be durable.
func (p *Pipeline) setStatus(ctx context.Context, job *types.GenerationJob, status types.JobStatus) {
	if err := p.jobs.SetStatus(ctx, job.ID, status, ""); err != nil {
		p.logger.Warn("status update failed",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
	job.Status = status
}

// progress records a checkpoint, fire-and-forget.
func (p *Pipeline) progress(ctx context.Context, job *types.GenerationJob, fraction float64, message string) {
	if err := p.jobs.UpdateProgress(ctx, job.ID, fraction, message); err != nil {
		p.logger.Warn("progress update failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
	job.Progress = fraction
	job.ProgressMessage = message
}
