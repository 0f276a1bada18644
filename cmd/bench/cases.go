// README: Bench cases: environment, drop setup, waitlist fill, claim race, invariant checks, throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"dropspot/internal/auth"
	"dropspot/internal/infra"
	"dropspot/internal/modules/geo"
	"dropspot/internal/types"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	adminUserID   = 1
	firstBenchUID = 10_000
	dropRadius    = 200
	geoKey        = "drops:geo"
)

var site = types.Point{Lat: 41.0082, Lng: 28.9784}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	adminToken string
	userTokens []string
	dropID     int64
	winners    map[int]int64
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type dropResp struct {
	ID                int64  `json:"id"`
	TotalQuantity     int    `json:"total_quantity"`
	ClaimedQuantity   int    `json:"claimed_quantity"`
	RemainingQuantity int    `json:"remaining_quantity"`
	Status            string `json:"status"`
}

type claimResp struct {
	ID               int64  `json:"id"`
	VerificationCode string `json:"verification_code"`
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		winners: map[int]int64{},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigrations},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Setup: mint tokens", Run: mintTokens},
		{Name: "Admin: non-admin cannot create drop", Run: nonAdminCreate},
		{Name: "Admin: create drop", Run: createDrop},
		{Name: "Redis: drop indexed", Run: checkIndexed},
		{Name: "Waitlist: concurrent joins", Run: joinAll},
		{Name: "Claim: outside geofence -> 400", Run: claimOutsideFence},
		{Name: "Concurrency: claim race never oversells", Run: claimRace},
		{Name: "Claim: repeat claim is idempotent", Run: repeatClaim},
		{Name: "DB: stock balance", Run: checkBalance},
		{Name: "Claim: cancel restores stock", Run: cancelRestores},
		{Name: "DB: stock balance after cancel", Run: checkBalance},
		{Name: "Perf: active drops throughput", Run: perfActive},
		{Name: "Cleanup: soft delete drop", Run: softDelete},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigrations(_ context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := infra.Migrate(r.db); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	for _, t := range []string{"drops", "waitlist_entries", "claims", "ai_usage"} {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, latency, err := r.call(ctx, http.MethodGet, "/health", "", nil, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return expect(status, latency, http.StatusOK)
}

func mintTokens(_ context.Context, r *Runner) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusSkip, Note: "jwt-secret not set; later cases skip"}
	}
	now := time.Now()
	tok, err := auth.IssueToken(r.cfg.JWTSecret, auth.Principal{UserID: adminUserID, Username: "bench-admin", IsSuperuser: true}, time.Hour, now)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	r.adminToken = tok
	r.userTokens = make([]string, r.cfg.Concurrency+1)
	for i := range r.userTokens {
		uid := int64(firstBenchUID + i)
		tok, err := auth.IssueToken(r.cfg.JWTSecret, auth.Principal{UserID: uid, Username: "bench-" + strconv.FormatInt(uid, 10)}, time.Hour, now)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		r.userTokens[i] = tok
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("users=%d", r.cfg.Concurrency+1)}
}

func dropPayload() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"title":          "Bench drop " + now.Format(time.RFC3339),
		"total_quantity": 0,
		"latitude":       site.Lat,
		"longitude":      site.Lng,
		"radius_meters":  dropRadius,
		"start_time":     now.Add(-time.Minute),
		"end_time":       now.Add(time.Hour),
	}
}

func nonAdminCreate(ctx context.Context, r *Runner) Result {
	if r.adminToken == "" {
		return Result{Status: statusSkip, Note: "no tokens"}
	}
	body := dropPayload()
	body["total_quantity"] = 1
	status, latency, err := r.call(ctx, http.MethodPost, "/api/admin/drops", r.userTokens[0], body, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return expect(status, latency, http.StatusForbidden)
}

func createDrop(ctx context.Context, r *Runner) Result {
	if r.adminToken == "" {
		return Result{Status: statusSkip, Note: "no tokens"}
	}
	body := dropPayload()
	body["total_quantity"] = r.cfg.Stock
	var d dropResp
	status, latency, err := r.call(ctx, http.MethodPost, "/api/admin/drops", r.adminToken, body, &d)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return expect(status, latency, http.StatusCreated)
	}
	r.dropID = d.ID
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("drop=%d stock=%d", d.ID, d.RemainingQuantity)}
}

func checkIndexed(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 || r.redis == nil {
		return Result{Status: statusSkip, Note: "no drop or redis"}
	}
	pos, err := r.redis.GeoPos(ctx, geoKey, strconv.FormatInt(r.dropID, 10)).Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if len(pos) == 0 || pos[0] == nil {
		return Result{Status: statusFail, Note: "drop missing from " + geoKey}
	}
	return Result{Status: statusPass}
}

func joinAll(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 {
		return Result{Status: statusSkip, Note: "no drop"}
	}
	start := time.Now()
	statuses := r.fanOut(ctx, len(r.userTokens), func(i int) (int, error) {
		s, _, err := r.call(ctx, http.MethodPost, "/api/waitlist/join", r.userTokens[i], map[string]any{"drop_id": r.dropID}, nil)
		return s, err
	})
	latency := time.Since(start)
	if n := statuses[http.StatusCreated]; n != len(r.userTokens) {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("joined=%d statuses=%v", n, statuses)}
	}

	var count struct {
		WaitlistCount int `json:"waitlist_count"`
	}
	if _, _, err := r.call(ctx, http.MethodGet, fmt.Sprintf("/api/waitlist/%d/waitlist-count", r.dropID), "", nil, &count); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if count.WaitlistCount != len(r.userTokens) {
		return Result{Status: statusFail, Note: fmt.Sprintf("waitlist_count=%d", count.WaitlistCount)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("joined=%d", count.WaitlistCount)}
}

// claimOutsideFence uses the spare last user so the race below keeps its full field.
func claimOutsideFence(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 {
		return Result{Status: statusSkip, Note: "no drop"}
	}
	far := types.Point{Lat: site.Lat + 0.01, Lng: site.Lng}
	var body struct {
		DistanceMeters float64 `json:"distance_meters"`
	}
	status, latency, err := r.call(ctx, http.MethodPost, "/api/claims", r.userTokens[len(r.userTokens)-1],
		map[string]any{"drop_id": r.dropID, "latitude": far.Lat, "longitude": far.Lng}, &body)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	res := expect(status, latency, http.StatusBadRequest)
	if res.Status == statusPass {
		res.Note = fmt.Sprintf("distance=%.0fm expected~%.0fm", body.DistanceMeters, geo.Distance(site, far))
	}
	return res
}

func claimRace(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 {
		return Result{Status: statusSkip, Note: "no drop"}
	}
	var mu sync.Mutex
	start := time.Now()
	statuses := r.fanOut(ctx, r.cfg.Concurrency, func(i int) (int, error) {
		var c claimResp
		s, _, err := r.call(ctx, http.MethodPost, "/api/claims", r.userTokens[i],
			map[string]any{"drop_id": r.dropID, "latitude": site.Lat, "longitude": site.Lng}, &c)
		if err == nil && s == http.StatusCreated {
			mu.Lock()
			r.winners[i] = c.ID
			mu.Unlock()
		}
		return s, err
	})
	latency := time.Since(start)

	want := min(r.cfg.Stock, r.cfg.Concurrency)
	note := fmt.Sprintf("won=%d want=%d statuses=%v", len(r.winners), want, statuses)
	if len(r.winners) != want || statuses[http.StatusForbidden] != r.cfg.Concurrency-want {
		return Result{Status: statusFail, Latency: latency, Note: note}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}

func repeatClaim(ctx context.Context, r *Runner) Result {
	for i, id := range r.winners {
		var c claimResp
		status, latency, err := r.call(ctx, http.MethodPost, "/api/claims", r.userTokens[i],
			map[string]any{"drop_id": r.dropID, "latitude": site.Lat, "longitude": site.Lng}, &c)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if status != http.StatusCreated || c.ID != id {
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d claim=%d want=%d", status, c.ID, id)}
		}
		return Result{Status: statusPass, Latency: latency}
	}
	return Result{Status: statusSkip, Note: "no winners"}
}

func checkBalance(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 || r.db == nil {
		return Result{Status: statusSkip, Note: "no drop or db"}
	}
	var total, claimed, remaining, held int
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT d.total_quantity, d.claimed_quantity, d.remaining_quantity, d.status,
			COALESCE((SELECT SUM(quantity) FROM claims c WHERE c.drop_id = d.id AND c.status <> 'rejected'), 0)
		FROM drops d WHERE d.id = $1`, r.dropID).Scan(&total, &claimed, &remaining, &status, &held)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("total=%d claimed=%d remaining=%d held=%d status=%s", total, claimed, remaining, held, status)
	switch {
	case claimed+remaining != total, held != claimed, remaining < 0:
		return Result{Status: statusFail, Note: note}
	case remaining == 0 && status != "completed":
		return Result{Status: statusFail, Note: note}
	}
	return Result{Status: statusPass, Note: note}
}

func cancelRestores(ctx context.Context, r *Runner) Result {
	for i, id := range r.winners {
		status, latency, err := r.call(ctx, http.MethodDelete, fmt.Sprintf("/api/claims/%d", id), r.userTokens[i], nil, nil)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if status != http.StatusOK {
			return expect(status, latency, http.StatusOK)
		}
		delete(r.winners, i)

		var d dropResp
		if _, _, err := r.call(ctx, http.MethodGet, fmt.Sprintf("/api/drops/%d", r.dropID), "", nil, &d); err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if d.RemainingQuantity < 1 || d.Status != "active" {
			return Result{Status: statusFail, Note: fmt.Sprintf("remaining=%d status=%s", d.RemainingQuantity, d.Status)}
		}
		return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("remaining=%d", d.RemainingQuantity)}
	}
	return Result{Status: statusSkip, Note: "no winners"}
}

func perfActive(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.call(ctx, http.MethodGet, "/api/drops/active", "", nil, nil)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func softDelete(ctx context.Context, r *Runner) Result {
	if r.dropID == 0 {
		return Result{Status: statusSkip, Note: "no drop"}
	}
	status, latency, err := r.call(ctx, http.MethodDelete, fmt.Sprintf("/api/admin/drops/%d", r.dropID), r.adminToken, nil, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return expect(status, latency, http.StatusOK)
}

// fanOut runs fn for 0..n-1 concurrently after a common start signal and tallies statuses.
func (r *Runner) fanOut(ctx context.Context, n int, fn func(i int) (int, error)) map[int]int {
	start := make(chan struct{})
	statuses := map[int]int{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s, err := fn(i)
			if err != nil || ctx.Err() != nil {
				s = -1
			}
			mu.Lock()
			statuses[s]++
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()
	return statuses
}

func (r *Runner) call(ctx context.Context, method, path, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, time.Since(start), nil
}

func expect(status int, latency time.Duration, want int) Result {
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: statusFail, Latency: latency, Note: note + fmt.Sprintf(" want=%d", want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: note}
}
