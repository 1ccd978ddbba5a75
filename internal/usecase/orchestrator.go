// Package usecase wires the pipeline stages into the per-turn conversation
// state machine.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/logger"
	"stylist-orchestrator/internal/usecase/pipeline"
)

const (
	trendsCacheKey = "global"

	// staticTrendsFallback is returned when the trends source is down.
	staticTrendsFallback = "Minimalist neutrals, relaxed tailoring, and lightweight layering pieces are in rotation this season."

	genderPromptQuestion = "Who am I styling for?"

	// normsQueryCap bounds dressing-norm mining per broad turn.
	normsQueryCap = 2
)

// OrchestratorConfig carries the turn-level tunables.
type OrchestratorConfig struct {
	ConfidenceThreshold float64
	SearchLimit         int
	MinValidForWeb      int
	WebSearchLimit      int
	OriginCap           int
	FinalBound          int
	TrendsTTL           time.Duration
	WeatherTTL          time.Duration
	WebResultsTTL       time.Duration
	CacheSize           int
}

// OrchestratorDeps bundles the collaborators a turn needs.
type OrchestratorDeps struct {
	Classifier domain.IntentClassifier
	Sessions   domain.SessionRepository
	Retriever  *pipeline.Retriever
	Reranker   *pipeline.Reranker
	Validator  *pipeline.Validator
	Planner    *pipeline.Planner
	Outfits    *pipeline.OutfitBuilder
	WebSearch  domain.WebSearcher
	NormMiner  domain.NormMiner
	Trends     domain.TrendsSource
	Weather    domain.WeatherClient
	Logger     *slog.Logger
}

// Orchestrator runs one conversational turn end to end: resolve pending
// prompts, classify intent, pick a pipeline branch, and persist session
// state. One orchestrator instance handles one thread's turn at a time.
type Orchestrator struct {
	deps OrchestratorDeps
	cfg  OrchestratorConfig

	trendsCache  *expirable.LRU[string, string]
	weatherCache *expirable.LRU[string, *domain.WeatherReport]
	webCache     *expirable.LRU[string, []domain.Candidate]

	logger *slog.Logger
}

// NewOrchestrator constructs an Orchestrator with process-scoped TTL caches
// for trends and weather.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	size := cfg.CacheSize
	if size <= 0 {
		size = 64
	}
	return &Orchestrator{
		deps:         deps,
		cfg:          cfg,
		trendsCache:  expirable.NewLRU[string, string](size, nil, cfg.TrendsTTL),
		weatherCache: expirable.NewLRU[string, *domain.WeatherReport](size, nil, cfg.WeatherTTL),
		webCache:     expirable.NewLRU[string, []domain.Candidate](size, nil, cfg.WebResultsTTL),
		logger:       deps.Logger,
	}
}

// RunTurn processes one user message for a thread and returns the structured
// turn result. External outages degrade the result; the only error paths are
// session store failures and state-machine invariant violations.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID, message string) (*TurnResult, error) {
	traceID := uuid.NewString()
	ctx = logger.WithThreadID(ctx, threadID)
	ctx = logger.WithTraceID(ctx, traceID)

	session, err := o.deps.Sessions.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.LastTraceID = traceID

	result := &TurnResult{ThreadID: threadID, TraceID: traceID}
	message = strings.TrimSpace(message)

	if len(session.History) == 0 && message == "" {
		result.Kind = TurnGreeting
		o.finishTurn(ctx, session, result)
		return result, o.deps.Sessions.Save(ctx, session)
	}

	session.LastMessage = message
	session.AppendHistory("user", message)

	// A pending prompt from the previous turn is resolved before anything
	// else. Unresolved prompts are re-issued and end the turn.
	effectiveMessage, reissued, err := o.resolvePending(ctx, session, message, result)
	if err != nil {
		return nil, err
	}
	if reissued {
		o.finishTurn(ctx, session, result)
		return result, o.deps.Sessions.Save(ctx, session)
	}

	query, classifyErr := o.deps.Classifier.Classify(ctx, effectiveMessage, session.History)
	if classifyErr != nil {
		o.logger.WarnContext(ctx, "intent_classification_degraded",
			slog.String("error", classifyErr.Error()))
		result.Kind = TurnNudge
		o.finishTurn(ctx, session, result)
		return result, o.deps.Sessions.Save(ctx, session)
	}

	o.logger.InfoContext(ctx, "intent_resolved",
		slog.String("kind", string(query.Kind)),
		slog.String("intent", query.Intent),
		slog.Float64("confidence", query.Confidence))

	if done := o.shortCircuit(ctx, session, query, result); done {
		o.finishTurn(ctx, session, result)
		return result, o.deps.Sessions.Save(ctx, session)
	}

	if query.Confidence < o.cfg.ConfidenceThreshold {
		o.logger.InfoContext(ctx, "low_confidence_nudge",
			slog.Float64("confidence", query.Confidence),
			slog.Float64("threshold", o.cfg.ConfidenceThreshold))
		result.Kind = TurnNudge
		o.finishTurn(ctx, session, result)
		return result, o.deps.Sessions.Save(ctx, session)
	}

	// Query gender wins over the stored profile gender.
	if !query.HasGender() && session.Profile.Gender != "" {
		query.Gender = session.Profile.Gender
	}

	switch query.Kind {
	case domain.KindBroad:
		err = o.runBroad(ctx, session, query, result)
	default:
		err = o.runSpecific(ctx, session, query, result)
	}
	if err != nil {
		return nil, err
	}

	o.finishTurn(ctx, session, result)
	return result, o.deps.Sessions.Save(ctx, session)
}

// resolvePending applies the current message to the session's pending
// prompt. It returns the message the classifier should see and whether the
// prompt was re-issued (ending the turn).
func (o *Orchestrator) resolvePending(ctx context.Context, session *domain.Session, message string, result *TurnResult) (string, bool, error) {
	switch session.Pending {
	case domain.PromptNone:
		return message, false, nil

	case domain.PromptGender:
		gender := genderFromMessage(message)
		if gender == "" {
			o.logger.InfoContext(ctx, "gender_prompt_reissued")
			o.reissuePrompt(session, result)
			return "", true, nil
		}
		session.Profile.Gender = gender
		original := session.PromptSource
		session.ClearPrompt()
		o.logger.InfoContext(ctx, "gender_prompt_resolved",
			slog.String("gender", gender))
		return original, false, nil

	case domain.PromptClarification, domain.PromptDisambiguation:
		pending := session.Pending
		option := matchOption(message, session.PromptOptions)
		if option == nil {
			o.logger.InfoContext(ctx, "prompt_reissued",
				slog.String("prompt", string(pending)))
			o.reissuePrompt(session, result)
			return "", true, nil
		}
		resolved := session.PromptSource
		if pending == domain.PromptClarification {
			resolved = strings.TrimSpace(resolved + " " + option.Label)
		} else if strings.HasSuffix(option.ID, "-combo") {
			// The combo choice requires all named colors together; the
			// classifier reflects that as all_required color mode.
			resolved += " with all colors together"
		}
		session.ClearPrompt()
		o.logger.InfoContext(ctx, "prompt_resolved",
			slog.String("prompt", string(pending)),
			slog.String("option", option.ID))
		return resolved, false, nil

	default:
		return "", false, fmt.Errorf("unknown pending prompt %q", session.Pending)
	}
}

func (o *Orchestrator) reissuePrompt(session *domain.Session, result *TurnResult) {
	result.Kind = TurnPrompt
	result.Prompt = &PromptPayload{
		Kind:     session.Pending,
		Question: session.PromptQuestion,
		Options:  session.PromptOptions,
	}
}

// askPrompt records a pending prompt on the session and mirrors it onto the
// result. A conflicting pending prompt is a transition-table bug.
func (o *Orchestrator) askPrompt(ctx context.Context, session *domain.Session, result *TurnResult, kind domain.PendingPrompt, question string, options []domain.PromptOption, source string) error {
	if !session.SetPrompt(kind, question, options, source) {
		o.logger.ErrorContext(ctx, "pending_prompt_conflict",
			slog.String("existing", string(session.Pending)),
			slog.String("requested", string(kind)))
		return fmt.Errorf("pending prompt conflict: %s already active, cannot ask %s", session.Pending, kind)
	}
	result.Kind = TurnPrompt
	result.Prompt = &PromptPayload{Kind: kind, Question: question, Options: options}
	return nil
}

// shortCircuit handles the terminal chitchat intents that never reach the
// pipeline. Returns true when the turn is complete.
func (o *Orchestrator) shortCircuit(ctx context.Context, session *domain.Session, query domain.Query, result *TurnResult) bool {
	if query.Kind == domain.KindCapabilities || query.Intent == domain.IntentCapabilities {
		result.Kind = TurnCapabilities
		return true
	}
	if query.Kind == domain.KindTrending || query.Intent == domain.IntentTrending {
		result.Kind = TurnTrends
		result.Trends = o.trendsText(ctx)
		return true
	}
	if query.Kind != domain.KindChitchat {
		return false
	}

	switch query.Intent {
	case domain.IntentBlocked:
		o.logger.WarnContext(ctx, "blocked_intent",
			slog.String("message", session.LastMessage))
		result.Kind = TurnBlocked
	case domain.IntentOutOfScope:
		result.Kind = TurnOutOfScope
	case domain.IntentAcknowledgment:
		result.Kind = TurnAcknowledgment
	case domain.IntentUserInfo:
		o.captureProfile(ctx, session, query)
		result.Kind = TurnProfileSaved
		profile := session.Profile
		result.Profile = &profile
	case domain.IntentGreeting:
		result.Kind = TurnGreeting
	default:
		result.Kind = TurnNudge
	}
	return true
}

// captureProfile stores profile attributes surfaced by a user_info turn.
func (o *Orchestrator) captureProfile(ctx context.Context, session *domain.Session, query domain.Query) {
	if query.HasGender() {
		session.Profile.Gender = query.Gender
	}
	if name := nameFromMessage(session.LastMessage); name != "" {
		session.Profile.Name = name
	}
	o.logger.InfoContext(ctx, "profile_updated",
		slog.String("name", session.Profile.Name),
		slog.String("gender", session.Profile.Gender))
}

// runSpecific executes the specific-query branch: disambiguate, clarify,
// gender gate, catalog pipeline, conditional web fallback, merge.
func (o *Orchestrator) runSpecific(ctx context.Context, session *domain.Session, query domain.Query, result *TurnResult) error {
	if len(query.Ambiguities) > 0 {
		question, options := disambiguationPrompt(query)
		return o.askPrompt(ctx, session, result, domain.PromptDisambiguation, question, options, session.LastMessage)
	}

	if query.NeedsClarification {
		question := query.ClarifyQuestion
		if question == "" {
			question = "Which one did you mean?"
		}
		return o.askPrompt(ctx, session, result, domain.PromptClarification, question, labelOptions(query.ClarifyOptions), session.LastMessage)
	}

	if !query.HasGender() {
		return o.askPrompt(ctx, session, result, domain.PromptGender, genderPromptQuestion, genderOptions(), session.LastMessage)
	}

	ctx = logger.WithPipelineStage(ctx, "specific")
	start := time.Now()

	candidates, trace := o.deps.Retriever.Retrieve(ctx, query, o.cfg.SearchLimit)
	reranked := o.deps.Reranker.Rerank(ctx, query, candidates)
	valid, _ := o.deps.Validator.Validate(ctx, query, reranked)

	debug := &TurnDebug{
		Retrievals:   []pipeline.RetrievalTrace{trace},
		CatalogCount: len(candidates),
		ValidCount:   len(valid),
	}

	var webValid []domain.Candidate
	if len(valid) < o.cfg.MinValidForWeb {
		o.logger.InfoContext(ctx, "web_fallback_triggered",
			slog.Int("valid_count", len(valid)),
			slog.Int("min_valid", o.cfg.MinValidForWeb))
		debug.WebFallback = true

		webCandidates, err := o.webResults(ctx, query.RankText())
		if err != nil {
			o.logger.WarnContext(ctx, "web_search_degraded",
				slog.String("error", err.Error()))
		} else {
			debug.WebCount = len(webCandidates)
			webValid, _ = o.deps.Validator.Validate(ctx, query, webCandidates)
		}
	}

	merged := pipeline.MergeValidated(o.cfg.FinalBound, valid, webValid)

	result.Kind = TurnProducts
	result.Products = merged
	result.Debug = debug
	session.LastProducts = merged
	session.LastOutfits = nil

	o.logger.InfoContext(ctx, "specific_pipeline_completed",
		slog.Int("final_count", len(merged)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

// runBroad executes the broad-query branch: plan, gender gate, destination
// context, parallel retrieval, one shared rerank, outfits.
func (o *Orchestrator) runBroad(ctx context.Context, session *domain.Session, query domain.Query, result *TurnResult) error {
	ctx = logger.WithPipelineStage(ctx, "broad")
	start := time.Now()

	plan := o.deps.Planner.BuildPlan(ctx, query)
	if len(plan.ProductQueries) == 0 {
		// Planner gave nothing to retrieve; ask for more instead of failing.
		result.Kind = TurnNeedsDetail
		return nil
	}

	if !query.HasGender() {
		return o.askPrompt(ctx, session, result, domain.PromptGender, genderPromptQuestion, genderOptions(), session.LastMessage)
	}
	// Re-apply the rewrite: the plan may have been built before the gender
	// prompt resolved.
	plan.ProductQueries = pipeline.EnforceGender(plan.ProductQueries, query.Gender)

	if query.Destination != "" {
		result.Weather = o.weatherReport(ctx, plan, query.Destination)
		result.DressingRules = o.mineNorms(ctx, plan.WebQueries)
	}

	subQueries := make([]domain.Query, len(plan.ProductQueries))
	for i, text := range plan.ProductQueries {
		subQueries[i] = query.DeriveSub(text)
	}

	pooled, traces := o.deps.Retriever.RetrieveMulti(ctx, subQueries, o.cfg.SearchLimit)
	pooled = pipeline.DedupCandidates(pooled)

	// One rerank pass over the union, not one per sub-query.
	combined := query
	combined.RawQuery = combinedQueryText(plan.ProductQueries)
	reranked := o.deps.Reranker.Rerank(ctx, combined, pooled)
	balanced := pipeline.BalanceByOrigin(reranked, o.cfg.OriginCap)

	octx := domain.OutfitContext{
		Destination: query.Destination,
		Occasion:    query.Occasion,
		Gender:      query.Gender,
	}
	if result.Weather != nil {
		octx.WeatherSummary = result.Weather.Summary
	}
	octx.DressingRules = result.DressingRules

	outfits := o.deps.Outfits.Build(ctx, balanced, octx)

	result.Kind = TurnOutfits
	result.Products = balanced
	result.Outfits = outfits
	result.Debug = &TurnDebug{
		SubQueries:   plan.ProductQueries,
		Retrievals:   traces,
		CatalogCount: len(pooled),
	}
	session.LastProducts = balanced
	session.LastOutfits = outfits

	o.logger.InfoContext(ctx, "broad_pipeline_completed",
		slog.Int("sub_query_count", len(subQueries)),
		slog.Int("product_count", len(balanced)),
		slog.Int("outfit_count", len(outfits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

// finishTurn appends the assistant entry and bounds the history window.
func (o *Orchestrator) finishTurn(ctx context.Context, session *domain.Session, result *TurnResult) {
	session.AppendHistory("assistant", historyEntry(result))
	o.logger.InfoContext(ctx, "turn_completed",
		slog.String("kind", string(result.Kind)),
		slog.Int("history_len", len(session.History)))
}

// trendsText serves the trend summary from the TTL cache, fetching on miss.
func (o *Orchestrator) trendsText(ctx context.Context) string {
	if cached, ok := o.trendsCache.Get(trendsCacheKey); ok {
		return cached
	}
	text, err := o.deps.Trends.TrendsText(ctx)
	if err != nil {
		o.logger.WarnContext(ctx, "trends_lookup_degraded",
			slog.String("error", err.Error()))
		return staticTrendsFallback
	}
	o.trendsCache.Add(trendsCacheKey, text)
	return text
}

// weatherReport serves destination weather from the TTL cache, preferring
// the planner's weather query over the raw destination.
func (o *Orchestrator) weatherReport(ctx context.Context, plan *domain.RetrievalPlan, destination string) *domain.WeatherReport {
	location := plan.WeatherQuery
	if location == "" {
		location = destination
	}
	key := strings.ToLower(location)

	if cached, ok := o.weatherCache.Get(key); ok {
		return cached
	}
	report, err := o.deps.Weather.Lookup(ctx, location)
	if err != nil {
		o.logger.WarnContext(ctx, "weather_lookup_degraded",
			slog.String("location", location),
			slog.String("error", err.Error()))
		return nil
	}
	o.weatherCache.Add(key, report)
	return report
}

// webResults serves web-fallback candidates from a short TTL cache keyed by
// the rank text, so repeated thin-catalog turns do not re-hit the search API.
func (o *Orchestrator) webResults(ctx context.Context, text string) ([]domain.Candidate, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if cached, ok := o.webCache.Get(key); ok {
		return cached, nil
	}
	candidates, err := o.deps.WebSearch.Search(ctx, text, o.cfg.WebSearchLimit)
	if err != nil {
		return nil, err
	}
	o.webCache.Add(key, candidates)
	return candidates, nil
}

// mineNorms gathers dressing rules from the planner's web queries, deduped.
func (o *Orchestrator) mineNorms(ctx context.Context, webQueries []string) []string {
	if len(webQueries) > normsQueryCap {
		webQueries = webQueries[:normsQueryCap]
	}

	var rules []string
	seen := make(map[string]struct{})
	for _, q := range webQueries {
		mined, err := o.deps.NormMiner.MineRules(ctx, q)
		if err != nil {
			o.logger.WarnContext(ctx, "norm_mining_degraded",
				slog.String("query", q),
				slog.String("error", err.Error()))
			continue
		}
		for _, rule := range mined {
			key := strings.ToLower(strings.TrimSpace(rule))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			rules = append(rules, rule)
		}
	}
	return rules
}

// historyEntry is the compact assistant-side history record for a turn.
func historyEntry(result *TurnResult) string {
	switch result.Kind {
	case TurnProducts:
		return fmt.Sprintf("recommended %d products", len(result.Products))
	case TurnOutfits:
		return fmt.Sprintf("composed %d outfits from %d products", len(result.Outfits), len(result.Products))
	case TurnPrompt:
		if result.Prompt != nil {
			return "asked: " + result.Prompt.Question
		}
		return "asked a follow-up question"
	case TurnTrends:
		return "shared current trends"
	default:
		return string(result.Kind)
	}
}

// genderFromMessage scans a prompt answer for a gender signal.
func genderFromMessage(message string) string {
	fields := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(message)) {
		fields[strings.Trim(f, ",.;:!?")] = struct{}{}
	}
	for _, token := range []string{"men", "men's", "mens", "male", "him", "guy", "guys"} {
		if _, ok := fields[token]; ok {
			return domain.GenderMen
		}
	}
	for _, token := range []string{"women", "women's", "womens", "female", "her", "lady", "ladies"} {
		if _, ok := fields[token]; ok {
			return domain.GenderWomen
		}
	}
	return ""
}

// nameFromMessage extracts a self-introduced name, e.g. "my name is Asha"
// or "I'm Asha".
func nameFromMessage(message string) string {
	low := strings.ToLower(message)
	for _, marker := range []string{"my name is ", "i am ", "i'm ", "call me "} {
		idx := strings.Index(low, marker)
		if idx < 0 {
			continue
		}
		rest := strings.Fields(message[idx+len(marker):])
		if len(rest) > 0 {
			return strings.Trim(rest[0], ",.;:!?")
		}
	}
	return ""
}

// matchOption resolves a prompt answer against the offered options by ID or
// label, case-insensitively.
func matchOption(message string, options []domain.PromptOption) *domain.PromptOption {
	answer := strings.ToLower(strings.TrimSpace(message))
	if answer == "" {
		return nil
	}
	for i, opt := range options {
		if answer == strings.ToLower(opt.ID) || answer == strings.ToLower(opt.Label) {
			return &options[i]
		}
	}
	for i, opt := range options {
		if strings.Contains(answer, strings.ToLower(opt.Label)) || strings.Contains(answer, strings.ToLower(opt.ID)) {
			return &options[i]
		}
	}
	return nil
}

// disambiguationPrompt builds the color-combination question for ambiguous
// tokens like "blue-green".
func disambiguationPrompt(query domain.Query) (string, []domain.PromptOption) {
	colorPhrase := strings.Join(query.Colors, ", ")
	if colorPhrase == "" {
		colorPhrase = "these colors"
	}
	question := fmt.Sprintf("When you say %s, what do you mean?", colorPhrase)

	var options []domain.PromptOption
	for _, token := range query.Ambiguities {
		colors := strings.Join(strings.Split(token, "-"), " + ")
		options = append(options,
			domain.PromptOption{ID: token + "-combo", Label: colors + " together"},
			domain.PromptOption{ID: token + "-either", Label: "either " + colors},
		)
	}
	return question, options
}

func genderOptions() []domain.PromptOption {
	return []domain.PromptOption{
		{ID: domain.GenderMen, Label: "Men"},
		{ID: domain.GenderWomen, Label: "Women"},
	}
}

func labelOptions(labels []string) []domain.PromptOption {
	options := make([]domain.PromptOption, len(labels))
	for i, label := range labels {
		options[i] = domain.PromptOption{ID: fmt.Sprintf("option-%d", i+1), Label: label}
	}
	return options
}

// combinedQueryText joins the first two sub-queries as the shared rerank
// query for the pooled set.
func combinedQueryText(queries []string) string {
	if len(queries) > 2 {
		queries = queries[:2]
	}
	return strings.Join(queries, " ")
}
