// README: Keyword routing and concurrent retrieval of platform data for assistant prompts.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dropspot/internal/auth"
	"dropspot/internal/errs"
	"dropspot/internal/modules/admin"
	"dropspot/internal/modules/claim"
	"dropspot/internal/modules/drop"
	"dropspot/internal/modules/waitlist"
	"dropspot/internal/types"
)

type DropReader interface {
	List(ctx context.Context, f drop.Filter, page types.Page) ([]drop.Drop, error)
	ListActive(ctx context.Context, page types.Page) ([]drop.Drop, error)
}

type WaitlistReader interface {
	Count(ctx context.Context, dropID int64) (int, error)
	ListMine(ctx context.Context, userID int64) ([]waitlist.Entry, error)
	Position(ctx context.Context, dropID, userID int64) (*waitlist.Position, error)
}

type ClaimReader interface {
	ListMine(ctx context.Context, userID int64) ([]claim.Claim, error)
}

type StatsReader interface {
	Stats(ctx context.Context, p *auth.Principal) (*admin.Stats, error)
}

type topic int

const (
	topicDrops topic = iota
	topicWaitlist
	topicClaims
	topicStats
	topicPersonal
	topicAdmin
	topicPlatform
)

// Users write in Turkish and English; both keyword sets route.
var topicKeywords = map[topic][]string{
	topicDrops:    {"drop", "ürün", "yayın", "ne var", "aktif", "liste", "tüm", "product", "active", "list"},
	topicWaitlist: {"waitlist", "bekleme", "sıra", "katıl", "bekleyen", "queue", "position", "join"},
	topicClaims:   {"claim", "hak", "kazanma", "alma", "talep", "code", "kod", "verify"},
	topicStats:    {"istatistik", "stat", "sayı", "kaç", "toplam", "adet", "how many", "total"},
	topicPersonal: {"benim", "bana", "kendi", "sizin", "my ", "mine"},
	topicAdmin:    {"admin", "yönetici", "panel", "yönetim"},
	topicPlatform: {"nedir", "nasıl", "platform", "what is", "how"},
}

const (
	listDropsLimit  = 20
	activeDropLimit = 10
)

// route picks the topics a question touches. Personal data needs a caller.
func route(question string, p *auth.Principal) []topic {
	q := strings.ToLower(question)
	var topics []topic
	for t := topicDrops; t <= topicPlatform; t++ {
		if t == topicPersonal && p == nil {
			continue
		}
		for _, kw := range topicKeywords[t] {
			if strings.Contains(q, kw) {
				topics = append(topics, t)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = append(topics, topicPlatform)
	}
	return topics
}

type retriever struct {
	drops    DropReader
	waitlist WaitlistReader
	claims   ClaimReader
	stats    StatsReader
	log      *zap.Logger
}

// build fetches every topic concurrently. A failed source becomes an "unavailable"
// section; only context cancellation fails the whole call.
func (r *retriever) build(ctx context.Context, question string, p *auth.Principal) (string, error) {
	topics := route(question, p)
	sections := make([]string, len(topics))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range topics {
		g.Go(func() error {
			body, err := r.fetch(gctx, t, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.log.Warn("assistant context source failed", zap.String("topic", t.title()), zap.Error(err))
				body = "data unavailable right now"
			}
			if body != "" {
				sections[i] = t.title() + ":\n" + body
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return truncate(strings.Join(out, "\n\n"), MaxContextLength), nil
}

func (t topic) title() string {
	switch t {
	case topicDrops:
		return "DROPS"
	case topicWaitlist:
		return "WAITLIST"
	case topicClaims:
		return "CLAIMS"
	case topicStats:
		return "PLATFORM STATS"
	case topicPersonal:
		return "YOUR DATA"
	case topicAdmin:
		return "ADMIN OPERATIONS"
	}
	return "ABOUT DROPSPOT"
}

func (r *retriever) fetch(ctx context.Context, t topic, p *auth.Principal) (string, error) {
	switch t {
	case topicDrops:
		return r.dropsSection(ctx)
	case topicWaitlist:
		return r.waitlistSection(ctx, p)
	case topicClaims:
		return r.claimsSection(ctx, p)
	case topicStats:
		return r.statsSection(ctx, p)
	case topicPersonal:
		return r.personalSection(ctx, p)
	case topicAdmin:
		return adminInfo, nil
	}
	return platformInfo, nil
}

func (r *retriever) dropsSection(ctx context.Context) (string, error) {
	drops, err := r.drops.List(ctx, drop.Filter{}, types.Page{Limit: listDropsLimit})
	if err != nil {
		return "", err
	}
	if len(drops) == 0 {
		return "There are no drops right now.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d drops found.\n", len(drops))
	for _, d := range drops {
		count, err := r.waitlist.Count(ctx, d.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- Drop #%d %q: status %s, stock %d/%d remaining, %d waiting, window %s to %s",
			d.ID, d.Title, d.Status, d.RemainingQuantity, d.TotalQuantity, count,
			d.StartTime.Format("2006-01-02 15:04"), d.EndTime.Format("2006-01-02 15:04"))
		if d.Address != "" {
			fmt.Fprintf(&b, ", at %s", d.Address)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (r *retriever) waitlistSection(ctx context.Context, p *auth.Principal) (string, error) {
	drops, err := r.drops.ListActive(ctx, types.Page{Limit: activeDropLimit})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, d := range drops {
		count, err := r.waitlist.Count(ctx, d.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- Drop #%d %q: %d waiting\n", d.ID, d.Title, count)
	}
	if p != nil {
		mine, err := r.myWaitlist(ctx, p)
		if err != nil {
			return "", err
		}
		b.WriteString(mine)
	}
	if b.Len() == 0 {
		return "The waitlist is where users queue for a drop before claiming it.", nil
	}
	return b.String(), nil
}

func (r *retriever) myWaitlist(ctx context.Context, p *auth.Principal) (string, error) {
	entries, err := r.waitlist.ListMine(ctx, p.UserID)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "You are not on any waitlist.\n", nil
	}
	var b strings.Builder
	b.WriteString("Your waitlist entries:\n")
	for _, e := range entries {
		pos, err := r.waitlist.Position(ctx, e.DropID, p.UserID)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "- Drop #%d: position %d of %d, joined %s\n",
			e.DropID, pos.Position, pos.Total, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (r *retriever) claimsSection(ctx context.Context, p *auth.Principal) (string, error) {
	if p == nil {
		return claimProcess, nil
	}
	mine, err := r.myClaims(ctx, p)
	if err != nil {
		return "", err
	}
	return mine + "\n" + claimProcess, nil
}

func (r *retriever) myClaims(ctx context.Context, p *auth.Principal) (string, error) {
	claims, err := r.claims.ListMine(ctx, p.UserID)
	if err != nil {
		return "", err
	}
	if len(claims) == 0 {
		return "You have no claims.\n", nil
	}
	var b strings.Builder
	b.WriteString("Your claims:\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "- Drop #%d: status %s, verified %t, code %s, created %s\n",
			c.DropID, c.Status, c.IsVerified, c.VerificationCode, c.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (r *retriever) statsSection(ctx context.Context, p *auth.Principal) (string, error) {
	if p == nil || r.stats == nil {
		return "Platform statistics require admin permission.", nil
	}
	st, err := r.stats.Stats(ctx, p)
	if errors.Is(err, errs.ErrForbidden) {
		return "Platform statistics require admin permission.", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("- Total drops: %d\n- Active drops: %d\n- Total claims: %d\n- Pending claims: %d\n- Approved claims: %d\n- Waitlist entries: %d",
		st.TotalDrops, st.ActiveDrops, st.TotalClaims, st.PendingClaims, st.ApprovedClaims, st.TotalWaitlist), nil
}

func (r *retriever) personalSection(ctx context.Context, p *auth.Principal) (string, error) {
	wl, err := r.myWaitlist(ctx, p)
	if err != nil {
		return "", err
	}
	cl, err := r.myClaims(ctx, p)
	if err != nil {
		return "", err
	}
	return wl + cl, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

const claimProcess = `How claiming works:
1. Join the drop's waitlist before it ends.
2. During the drop window, claim from within the drop's radius while stock lasts.
3. Each claim gets a unique verification code (DC-XXXX-XXXX); verify it to confirm.
4. When stock runs out further claims are refused.
5. A user can hold one claim per drop; unverified claims can be cancelled.`

const adminInfo = `Admins can:
- create drops (POST /api/admin/drops)
- edit drops (PUT /api/admin/drops/{id})
- deactivate drops (DELETE /api/admin/drops/{id})
- approve or reject claims, view waitlists and platform statistics`

const platformInfo = `DropSpot gives fair access to limited-quantity drops.
- Drops: time-boxed offers with limited stock at a location.
- Waitlist: users join a drop's waitlist to become eligible.
- Claims: eligible users claim a unit from inside the drop's geofence, first come first served.
- Verification: each claim carries a code the user confirms.`
