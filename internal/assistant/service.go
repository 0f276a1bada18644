// README: Assistant service: quota metering, context retrieval, prompt assembly and generation.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"dropspot/internal/auth"
	"dropspot/internal/clock"
	"dropspot/internal/metrics"
)

type QuotaRepository interface {
	UseToken(ctx context.Context, userID int64, month string, allowance int) error
	EnsureUser(ctx context.Context, userID int64, month string, allowance int) error
	Remaining(ctx context.Context, userID int64, month string, allowance int) (int, error)
}

type Deps struct {
	Provider     LLMProvider
	Quota        QuotaRepository
	Drops        DropReader
	Waitlist     WaitlistReader
	Claims       ClaimReader
	Stats        StatsReader
	MonthlyQuota int
	Clock        clock.Clock
	Log          *zap.Logger
	Metrics      metrics.Recorder
}

type Service struct {
	provider  LLMProvider
	quota     QuotaRepository
	allowance int
	retriever *retriever
	clock     clock.Clock
	log       *zap.Logger
	metrics   metrics.Recorder
}

func NewService(deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop()
	}
	if deps.MonthlyQuota <= 0 {
		deps.MonthlyQuota = DefaultMonthlyQuota
	}
	log := deps.Log.Named("assistant")
	return &Service{
		provider:  deps.Provider,
		quota:     deps.Quota,
		allowance: deps.MonthlyQuota,
		retriever: &retriever{
			drops:    deps.Drops,
			waitlist: deps.Waitlist,
			claims:   deps.Claims,
			stats:    deps.Stats,
			log:      log,
		},
		clock:   deps.Clock,
		log:     log,
		metrics: deps.Metrics,
	}
}

// Chat answers a question. Signed-in callers spend one unit of their monthly quota;
// anonymous callers are not metered and never see personal data.
func (s *Service) Chat(ctx context.Context, p *auth.Principal, req Request) (*Answer, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if p != nil {
		if err := s.useToken(ctx, p.UserID); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				s.metrics.AssistantRequest(metrics.OutcomeQuotaExceeded)
			}
			return nil, err
		}
	}

	var background string
	if req.IncludeContext {
		var err error
		background, err = s.retriever.build(ctx, req.Message, p)
		if err != nil {
			return nil, err
		}
	}

	reply, err := s.provider.Generate(ctx, buildPrompt(req.Message, background, req.History))
	if err != nil {
		s.metrics.AssistantRequest(metrics.OutcomeError)
		return nil, fmt.Errorf("assistant generate: %w", err)
	}
	s.metrics.AssistantRequest(metrics.OutcomeAnswered)
	s.log.Info("assistant answered",
		zap.Bool("signed_in", p != nil),
		zap.Int("context_len", len(background)),
		zap.Int("history_len", len(req.History)))

	return &Answer{
		Response:    strings.TrimSpace(reply),
		ContextUsed: background != "",
		Timestamp:   s.clock.Now(),
	}, nil
}

// Remaining reports how many questions the caller has left this month.
func (s *Service) Remaining(ctx context.Context, p *auth.Principal) (int, error) {
	return s.quota.Remaining(ctx, p.UserID, s.month(), s.allowance)
}

// useToken deducts one question; a missing row is created and the deduction retried once.
func (s *Service) useToken(ctx context.Context, userID int64) error {
	month := s.month()
	err := s.quota.UseToken(ctx, userID, month, s.allowance)
	if !errors.Is(err, errNoAllowance) {
		return err
	}
	if err := s.quota.EnsureUser(ctx, userID, month, s.allowance); err != nil {
		return err
	}
	err = s.quota.UseToken(ctx, userID, month, s.allowance)
	if errors.Is(err, errNoAllowance) {
		return ErrQuotaExceeded
	}
	return err
}

func (s *Service) month() string {
	return s.clock.Now().Format("2006-01")
}

const systemPrompt = `You are the assistant of DropSpot, a platform where users join waitlists for
limited-quantity drops and claim them on site.

Your job:
1. Help users with drops, waitlists and claims.
2. Guide users and admins through platform operations.
3. Answer from the platform data below.

Rules:
- Answer only from the platform data provided; say so when it is missing.
- Reply in the language of the question.
- Keep answers short.`

func buildPrompt(question, background string, history []Message) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n")
	if background != "" {
		b.WriteString("\n--- Platform data ---\n")
		b.WriteString(background)
		b.WriteString("\n")
	}
	if len(history) > MaxHistory {
		history = history[len(history)-MaxHistory:]
	}
	if len(history) > 0 {
		b.WriteString("\n--- Conversation so far ---\n")
		for _, m := range history {
			role := "Assistant"
			if m.Role == "user" {
				role = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
		}
	}
	fmt.Fprintf(&b, "\nUser question: %s\n\nAssistant:", question)
	return b.String()
}
