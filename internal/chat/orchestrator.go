package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/internal/capture"
	"frameworks/almanac/internal/confidence"
	"frameworks/almanac/internal/intent"
	"frameworks/almanac/internal/investigation"
	"frameworks/almanac/internal/prompt"
	"frameworks/almanac/internal/retrieval"
	"frameworks/almanac/internal/routing"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"
)

const defaultMaxHistoryMessages = 20

var ErrEmptyMessage = errors.New("message is required")

// Retriever searches the knowledge base. *retrieval.Service satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) retrieval.Result
}

// Investigator searches the web. *investigation.Service satisfies it.
type Investigator interface {
	InvestigateTopic(ctx context.Context, topic string, questions []string) investigation.Result
}

// ProviderSource hands out a model client per profile. *routing.Pool
// satisfies it.
type ProviderSource interface {
	Provider(profile routing.ModelProfile) (llm.Provider, error)
}

type OrchestratorConfig struct {
	Routes       *routing.Table
	Providers    ProviderSource
	Evaluator    confidence.Evaluator
	Retriever    Retriever
	Investigator Investigator
	Assembler    prompt.Assembler
	Logger       logging.Logger
	// HighQualitySimilarity is the similarity below which the knowledge base
	// is considered too weak and the web is searched as well.
	HighQualitySimilarity float64
	MaxHistoryMessages    int
}

type Orchestrator struct {
	routes       *routing.Table
	providers    ProviderSource
	evaluator    confidence.Evaluator
	retriever    Retriever
	investigator Investigator
	assembler    prompt.Assembler
	logger       logging.Logger
	highQuality  float64
	maxHistory   int
}

// Turn is one user message. Conversation is optional and is mutated in place;
// the caller decides whether to persist it.
type Turn struct {
	Message      string
	History      []llm.Message
	Conversation *capture.Context
}

type SearchType string

const (
	SearchKnowledgeBase SearchType = "knowledge_base"
	SearchWeb           SearchType = "web"
	SearchNone          SearchType = "none"
)

type Source struct {
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Score    float64 `json:"score"`
	Type     string  `json:"type"`
	Reliable bool    `json:"reliable"`
}

type TokenCounts struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type Metadata struct {
	Category          intent.TaskCategory `json:"category"`
	Model             string              `json:"model"`
	Provider          string              `json:"provider"`
	Tier              routing.ModelTier   `json:"tier"`
	Escalated         bool                `json:"escalated"`
	EscalationReasons []string            `json:"escalation_reasons,omitempty"`
	FallbackUsed      bool                `json:"fallback_used,omitempty"`
	SearchType        SearchType          `json:"search_type"`
	Sources           []Source            `json:"sources"`
	Degraded          []string            `json:"degraded,omitempty"`
	ReadyToDraft      bool                `json:"ready_to_draft"`
	TokenCounts       TokenCounts         `json:"token_counts"`
	EstimatedCostUSD  float64             `json:"estimated_cost_usd"`
}

type TurnResult struct {
	Answer   string   `json:"answer"`
	Metadata Metadata `json:"metadata"`
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Routes == nil {
		return nil, errors.New("routing table is required")
	}
	if cfg.Providers == nil {
		return nil, errors.New("provider source is required")
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = confidence.NewHeuristic(confidence.DefaultThresholds())
	}
	if cfg.Assembler == nil {
		cfg.Assembler = prompt.DefaultAssembler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	if cfg.HighQualitySimilarity <= 0 {
		cfg.HighQualitySimilarity = retrieval.DefaultHighQualitySimilarity
	}
	if cfg.MaxHistoryMessages <= 0 {
		cfg.MaxHistoryMessages = defaultMaxHistoryMessages
	}
	return &Orchestrator{
		routes:       cfg.Routes,
		providers:    cfg.Providers,
		evaluator:    cfg.Evaluator,
		retriever:    cfg.Retriever,
		investigator: cfg.Investigator,
		assembler:    cfg.Assembler,
		logger:       cfg.Logger,
		highQuality:  cfg.HighQualitySimilarity,
		maxHistory:   cfg.MaxHistoryMessages,
	}, nil
}

// escalationStage caps regeneration at one per turn.
type escalationStage int

const (
	stageInitial escalationStage = iota
	stageEscalated
)

// Run answers one message: classify, gather context, generate, evaluate and
// regenerate at most once on a stronger model.
func (o *Orchestrator) Run(ctx context.Context, turn Turn) (TurnResult, error) {
	message := strings.TrimSpace(turn.Message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	category := intent.Classify(message)
	classificationsTotal.WithLabelValues(string(category)).Inc()

	profile, err := o.routes.SelectModel(category, false)
	if err != nil {
		turnsTotal.WithLabelValues(string(category), "error").Inc()
		return TurnResult{}, err
	}

	meta := Metadata{Category: category, SearchType: SearchNone, Sources: []Source{}}
	input := o.gather(ctx, message, turn.Conversation, &meta)
	input.Category = category

	messages := o.buildMessages(o.assembler.Assemble(input), turn.History, message)

	stage := stageInitial
	gen, err := o.generate(ctx, category, profile, messages, true)
	if err != nil {
		turnsTotal.WithLabelValues(string(category), "error").Inc()
		return TurnResult{}, err
	}
	meta.FallbackUsed = gen.fallback
	answer, updates, captureErr := capture.ExtractUpdates(gen.text)

	for {
		verdict := o.evaluator.Evaluate(answer, category)
		if !verdict.ShouldEscalate || stage == stageEscalated {
			break
		}
		stage = stageEscalated
		meta.EscalationReasons = verdict.Reasons
		escalated, ok := o.escalate(ctx, category, gen.profile, messages, &meta)
		if !ok {
			break
		}
		gen.add(escalated)
		meta.Escalated = true
		answer, updates, captureErr = capture.ExtractUpdates(escalated.text)
	}

	meta.Model = gen.profile.Model
	meta.Provider = gen.profile.Provider
	meta.Tier = gen.profile.Tier
	meta.TokenCounts = gen.tokens
	meta.EstimatedCostUSD = gen.cost
	for _, dir := range []struct {
		name  string
		count int
	}{{"input", gen.tokens.Input}, {"output", gen.tokens.Output}} {
		llmTokensTotal.WithLabelValues(gen.profile.Model, dir.name).Add(float64(dir.count))
	}

	if turn.Conversation != nil {
		o.applyCapture(turn.Conversation, updates, captureErr, &meta)
		meta.ReadyToDraft = turn.Conversation.ReadyToDraft()
	}

	turnsTotal.WithLabelValues(string(category), "ok").Inc()
	return TurnResult{Answer: answer, Metadata: meta}, nil
}

// gather runs retrieval and, when the knowledge base is weak or the
// conversation is investigating, a web investigation.
func (o *Orchestrator) gather(ctx context.Context, message string, conv *capture.Context, meta *Metadata) prompt.Input {
	in := prompt.Input{Conversation: conv}

	if o.retriever != nil {
		res := o.retriever.Retrieve(ctx, message)
		if res.Degraded != nil {
			meta.Degraded = append(meta.Degraded, "knowledge base unavailable: "+res.Degraded.Error())
		}
		in.Documents = res.Documents
	}

	investigating := conv != nil && conv.Mode() == capture.ModeInvestigation
	weak := !retrieval.HasHighQualityResults(in.Documents, o.highQuality)
	if o.investigator != nil && (weak || investigating) {
		topic := message
		var questions []string
		if conv != nil {
			if t := conv.Topic(); t != "" {
				topic = t
			}
			if investigating {
				questions = conv.MissingInfo()
			}
		}
		res := o.investigator.InvestigateTopic(ctx, topic, questions)
		meta.Degraded = append(meta.Degraded, res.Degraded...)
		if conv != nil && ctx.Err() == nil {
			conv.AddResearchedTopic(topic)
		}
		in.Investigation = &res
	}

	for _, doc := range in.Documents {
		meta.Sources = append(meta.Sources, Source{
			Title:    doc.Title,
			URL:      doc.SourceURL,
			Score:    doc.Similarity,
			Type:     string(SearchKnowledgeBase),
			Reliable: true,
		})
	}
	if in.Investigation != nil {
		for _, r := range in.Investigation.Sources {
			meta.Sources = append(meta.Sources, Source{
				Title:    r.Title,
				URL:      r.URL,
				Score:    r.Score,
				Type:     string(SearchWeb),
				Reliable: investigation.IsReliable(r.URL),
			})
		}
	}

	switch {
	case len(in.Documents) > 0:
		meta.SearchType = SearchKnowledgeBase
	case in.Investigation != nil && len(in.Investigation.Sources) > 0:
		meta.SearchType = SearchWeb
	}
	return in
}

func (o *Orchestrator) buildMessages(system string, history []llm.Message, message string) []llm.Message {
	if len(history) > o.maxHistory {
		history = history[len(history)-o.maxHistory:]
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return append(messages, llm.Message{Role: "user", Content: message})
}

type generation struct {
	text     string
	profile  routing.ModelProfile
	fallback bool
	tokens   TokenCounts
	cost     float64
}

// add accounts for a later generation; the later one's text and profile win.
func (g *generation) add(next generation) {
	g.text = next.text
	g.profile = next.profile
	g.tokens.Input += next.tokens.Input
	g.tokens.Output += next.tokens.Output
	g.cost += next.cost
}

// generate calls profile and, when allowFallback is set and the call fails
// for any reason other than cancellation, the category's fallback model.
func (o *Orchestrator) generate(ctx context.Context, category intent.TaskCategory, profile routing.ModelProfile, messages []llm.Message, allowFallback bool) (generation, error) {
	gen := generation{profile: profile}
	gen.tokens.Input = countTokensInMessages(messages)
	text, err := o.callModel(ctx, profile, messages)
	if err == nil {
		gen.text = text
		gen.tokens.Output = estimateTokens(text)
		gen.cost = profile.EstimateCost(gen.tokens.Input, gen.tokens.Output)
		return gen, nil
	}
	if ctx.Err() != nil || !allowFallback {
		return generation{}, err
	}

	fallback, fbErr := o.routes.Fallback(category)
	if fbErr != nil || fallback.Key == profile.Key {
		return generation{}, err
	}
	o.logger.WithError(err).WithFields(logging.Fields{
		"category": category,
		"primary":  profile.Key,
		"fallback": fallback.Key,
	}).Warn("Primary model failed, trying fallback")
	modelFallbacksTotal.WithLabelValues(string(category)).Inc()

	text, fbCallErr := o.callModel(ctx, fallback, messages)
	if fbCallErr != nil {
		return generation{}, fmt.Errorf("primary %s: %w; fallback %s: %w", profile.Key, err, fallback.Key, fbCallErr)
	}
	gen.profile = fallback
	gen.fallback = true
	gen.text = text
	// The failed primary call is not billed.
	gen.tokens.Output = estimateTokens(text)
	gen.cost = fallback.EstimateCost(gen.tokens.Input, gen.tokens.Output)
	return gen, nil
}

// escalate regenerates once at the category's escalation model. A failed
// escalation keeps the initial answer.
func (o *Orchestrator) escalate(ctx context.Context, category intent.TaskCategory, current routing.ModelProfile, messages []llm.Message, meta *Metadata) (generation, bool) {
	target, err := o.routes.SelectModel(category, true)
	if err != nil {
		escalationsTotal.WithLabelValues(string(category), "failed").Inc()
		o.logger.WithError(err).Warn("Escalation model lookup failed")
		return generation{}, false
	}
	if target.Key == current.Key {
		escalationsTotal.WithLabelValues(string(category), "same_model").Inc()
		return generation{}, false
	}
	gen, err := o.generate(ctx, category, target, messages, false)
	if err != nil {
		escalationsTotal.WithLabelValues(string(category), "failed").Inc()
		meta.Degraded = append(meta.Degraded, fmt.Sprintf("escalation to %s failed: %v", target.Key, err))
		o.logger.WithError(err).WithFields(logging.Fields{
			"category": category,
			"model":    target.Key,
		}).Warn("Escalation failed, keeping initial answer")
		return generation{}, false
	}
	escalationsTotal.WithLabelValues(string(category), "regenerated").Inc()
	return gen, true
}

func (o *Orchestrator) callModel(ctx context.Context, profile routing.ModelProfile, messages []llm.Message) (string, error) {
	start := time.Now()
	text, err := o.complete(ctx, profile, messages)
	modelCallDuration.WithLabelValues(profile.Model).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelCallsTotal.WithLabelValues(profile.Model, string(profile.Tier), status).Inc()
	return text, err
}

func (o *Orchestrator) complete(ctx context.Context, profile routing.ModelProfile, messages []llm.Message) (string, error) {
	provider, err := o.providers.Provider(profile)
	if err != nil {
		return "", err
	}
	stream, err := provider.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", profile.Key, err)
	}
	text, err := llm.Collect(ctx, stream)
	if err != nil {
		return "", fmt.Errorf("%s stream: %w", profile.Key, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s returned an empty response", profile.Key)
	}
	return text, nil
}

// applyCapture feeds extracted updates into the conversation. Only
// knowledge capture conversations accept them; a rejected update is
// reported and the rest still apply.
func (o *Orchestrator) applyCapture(conv *capture.Context, updates []capture.Update, extractErr error, meta *Metadata) {
	if conv.Mode() != capture.ModeKnowledgeCapture {
		if len(updates) > 0 {
			captureUpdatesTotal.WithLabelValues("ignored").Add(float64(len(updates)))
		}
		return
	}
	if extractErr != nil {
		captureUpdatesTotal.WithLabelValues("malformed").Inc()
		meta.Degraded = append(meta.Degraded, "capture block ignored: "+extractErr.Error())
		o.logger.WithError(extractErr).Warn("Malformed capture block in model output")
	}
	for _, u := range updates {
		if err := conv.Apply(u); err != nil {
			captureUpdatesTotal.WithLabelValues("rejected").Inc()
			meta.Degraded = append(meta.Degraded, "capture update rejected: "+err.Error())
			continue
		}
		captureUpdatesTotal.WithLabelValues("applied").Inc()
	}
}

func estimateTokens(text string) int {
	return len(strings.Fields(text))
}

func countTokensInMessages(messages []llm.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateTokens(msg.Content)
	}
	return total
}
