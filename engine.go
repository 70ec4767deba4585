package oread

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sleddd/oread-companion/generator"
	"github.com/sleddd/oread-companion/lorebook"
	"github.com/sleddd/oread-companion/profile"
	"github.com/sleddd/oread-companion/sanitize"
)

// MemorySource surfaces long-term memory context for a turn.
type MemorySource interface {
	Recall(ctx context.Context, userID, message string) (string, error)
}

// SearchSource surfaces live web context for a turn.
type SearchSource interface {
	Lookup(ctx context.Context, message string) (string, error)
}

// EngineConfig wires the pipeline together. Generator is required; every
// other component defaults to its production configuration, and Memory and
// Search are optional.
type EngineConfig struct {
	Logger    *zap.Logger
	Generator generator.Generator
	Memory    MemorySource
	Search    SearchSource

	Retriever     *Retriever
	PostProcessor *PostProcessor
	Compiler      *Compiler
	Params        *ParamSelector
	Sanitizer     *sanitize.Pipeline

	// CatalogCacheSize bounds the per-character catalog cache. Zero means
	// 128.
	CatalogCacheSize int
}

type cachedCatalog struct {
	sig string
	cat *lorebook.Catalog
}

// Engine runs one full chat turn: safety checks, context assembly,
// generation, and sanitization.
type Engine struct {
	log  *zap.Logger
	gen  generator.Generator
	mem  MemorySource
	srch SearchSource

	retriever *Retriever
	post      *PostProcessor
	compiler  *Compiler
	params    *ParamSelector
	sanitizer *sanitize.Pipeline

	// catalogs caches compiled per-character catalogs. Avoid words are
	// deliberately absent from both key and value: they are read fresh
	// from the profile every turn.
	catalogs *lru.Cache[string, cachedCatalog]
}

// NewEngine builds an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("engine: generator required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := cfg.CatalogCacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, cachedCatalog](size)
	if err != nil {
		return nil, fmt.Errorf("engine: catalog cache: %w", err)
	}

	e := &Engine{
		log:       log,
		gen:       cfg.Generator,
		mem:       cfg.Memory,
		srch:      cfg.Search,
		retriever: cfg.Retriever,
		post:      cfg.PostProcessor,
		compiler:  cfg.Compiler,
		params:    cfg.Params,
		sanitizer: cfg.Sanitizer,
		catalogs:  cache,
	}
	if e.retriever == nil {
		e.retriever = NewRetriever(RetrieverConfig{MaxChunks: DefaultRetrieverConfig().MaxChunks, Weights: DefaultScoringWeights(), Logger: log})
	}
	if e.post == nil {
		e.post = NewPostProcessor(log)
	}
	if e.compiler == nil {
		cc := DefaultCompilerConfig()
		cc.Logger = log
		e.compiler = NewCompiler(cc)
	}
	if e.params == nil {
		e.params = NewParamSelector(log)
	}
	if e.sanitizer == nil {
		sc := sanitize.DefaultConfig()
		sc.Logger = log
		e.sanitizer = sanitize.NewPipeline(sc)
	}
	return e, nil
}

// ChatRequest is one turn of conversation.
type ChatRequest struct {
	// ID identifies the turn in logs. Empty gets a fresh UUID.
	ID        string
	Character *profile.Character
	User      *profile.User
	// UserID keys long-term memory.
	UserID   string
	Message  string
	History  []Turn
	Emotions []EmotionSignal
	// Catalog overrides the character's compiled catalog when set.
	Catalog *lorebook.Catalog
}

// ChatResponse is the finished turn.
type ChatResponse struct {
	ID     string
	Text   string
	Params GenParams
	// Crisis marks a fixed safety reply that skipped generation.
	Crisis bool
	// Prompt is the compiled prompt, retained for debugging surfaces.
	Prompt string
}

// Respond runs the full pipeline for one turn.
func (e *Engine) Respond(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Character == nil {
		return nil, fmt.Errorf("engine: character required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	user := req.User
	if user == nil {
		user = &profile.User{}
	}
	log := e.log.With(zap.String("turn", req.ID), zap.String("character", req.Character.Name))

	if DetectCrisis(req.Message) {
		log.Warn("crisis detected, sending intervention reply")
		return &ChatResponse{ID: req.ID, Text: CrisisMessage, Crisis: true}, nil
	}

	memoryCtx, searchCtx := e.fetchContext(ctx, req, log)

	catalog := req.Catalog
	if catalog == nil {
		catalog = e.catalog(req.Character)
	}

	chunks := e.retriever.Retrieve(catalog, Query{
		Message:        req.Message,
		HistoryContext: historyText(req.History),
		Emotions:       req.Emotions,
		Character:      req.Character,
	})
	chunks = e.post.Process(chunks, req.Emotions)

	params := e.params.Select(req.Message, req.Character, req.Emotions)

	guidance := params.Guidance
	if redirect := RedirectGuidance(req.Message); redirect != "" {
		if guidance != "" {
			guidance += "\n"
		}
		guidance += redirect
	}

	prompt, err := e.compiler.Build(BuildInput{
		Character:     req.Character,
		User:          user,
		Message:       req.Message,
		Emotions:      req.Emotions,
		Chunks:        chunks,
		History:       req.History,
		MemoryContext: memoryCtx,
		SearchContext: searchCtx,
		Guidance:      guidance,
	})
	if err != nil {
		return nil, err
	}

	// Cancellation is checked on both sides of the generate call: a turn
	// abandoned mid-generation must not surface a stale reply.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := e.gen.Generate(ctx, generator.Request{
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stop:        stopSequences(req.Character, user),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: generate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := e.sanitizer.Clean(raw, sanitize.Request{
		CharacterName: req.Character.Name,
		UserName:      user.DisplayName(),
		UserMessage:   req.Message,
		AvoidWords:    req.Character.AvoidWords,
	})
	log.Info("turn complete",
		zap.String("rule", params.Rule),
		zap.Int("chunks", len(chunks)),
		zap.Int("reply_len", len(text)))

	return &ChatResponse{ID: req.ID, Text: text, Params: params, Prompt: prompt}, nil
}

// Starter asks for a conversation opener instead of a reply.
func (e *Engine) Starter(ctx context.Context, req ChatRequest, topicIndex int) (*ChatResponse, error) {
	user := req.User
	if user == nil {
		user = &profile.User{}
	}
	req.Message = StarterMessage(user.DisplayName(), topicIndex)
	return e.Respond(ctx, req)
}

// fetchContext gathers memory and search context concurrently. Either
// source failing degrades that source to empty rather than failing the
// turn.
func (e *Engine) fetchContext(ctx context.Context, req ChatRequest, log *zap.Logger) (memoryCtx, searchCtx string) {
	g, gctx := errgroup.WithContext(ctx)
	if e.mem != nil {
		g.Go(func() error {
			s, err := e.mem.Recall(gctx, req.UserID, req.Message)
			if err != nil {
				log.Warn("memory recall failed", zap.Error(err))
				return nil
			}
			memoryCtx = s
			return nil
		})
	}
	if e.srch != nil {
		g.Go(func() error {
			s, err := e.srch.Lookup(gctx, req.Message)
			if err != nil {
				log.Warn("search lookup failed", zap.Error(err))
				return nil
			}
			searchCtx = s
			return nil
		})
	}
	_ = g.Wait()
	return memoryCtx, searchCtx
}

// catalog returns the character's compiled catalog, rebuilt when the
// profile's tags or interests changed.
func (e *Engine) catalog(char *profile.Character) *lorebook.Catalog {
	sig := strings.Join([]string{
		char.CompanionType,
		char.Persona,
		strings.Join(char.SelectedTags, ","),
		strings.Join(char.Interests, ","),
	}, "\x00")
	if entry, ok := e.catalogs.Get(char.Name); ok && entry.sig == sig {
		return entry.cat
	}

	cat, unknown := lorebook.FromTags(char.Name, char.SelectedTags)
	for _, tag := range unknown {
		e.log.Warn("unknown character tag", zap.String("tag", tag))
	}
	identity := lorebook.SynthesizeIdentity(char.Name, char.CompanionType, char.Persona)
	cat.Chunks = append([]lorebook.Chunk{identity}, cat.Chunks...)
	if interests, ok := lorebook.SynthesizeInterests(char.Name, char.Interests); ok {
		cat.Chunks = append(cat.Chunks, interests)
	}

	e.catalogs.Add(char.Name, cachedCatalog{sig: sig, cat: cat})
	e.log.Debug("compiled character catalog",
		zap.String("character", char.Name),
		zap.Int("chunks", cat.Len()))
	return cat
}

func historyText(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range history {
		b.WriteString(t.Text)
		b.WriteString(" ")
	}
	return b.String()
}

func stopSequences(char *profile.Character, user *profile.User) []string {
	return []string{
		"\n" + char.Name + ":",
		"\n" + user.DisplayName() + ":",
	}
}
