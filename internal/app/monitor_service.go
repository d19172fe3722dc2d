package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/core/policy"
	"github.com/example/cardwatch/internal/core/response"
	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// ErrConfigInvalid wraps configuration failures so the run loop can tell
// a fatal misconfiguration from a transient cycle failure.
var ErrConfigInvalid = errors.New("configuration invalid")

// MonitorDeps are the collaborators the monitor service drives. The board
// client and sender are built per cycle from the freshly loaded config
// snapshot, so endpoint or token changes take effect without a restart.
type MonitorDeps struct {
	Cards    secondary.CardRepository
	Events   secondary.EventRepository
	Renderer secondary.Renderer
	Clock    secondary.Clock
	Logger   *log.Logger

	NewBoard  func(cfg *config.Config) secondary.BoardClient
	NewSender func(cfg *config.Config, board secondary.BoardClient) Sender
}

// MonitorServiceImpl implements the MonitorService primary port.
type MonitorServiceImpl struct {
	configPath string
	deps       MonitorDeps

	// interval caches the last loaded poll interval for the run loop.
	interval time.Duration
}

var _ primary.MonitorService = (*MonitorServiceImpl)(nil)

// NewMonitorService creates a monitor service reading configuration from
// configPath at the start of every cycle.
func NewMonitorService(configPath string, deps MonitorDeps) *MonitorServiceImpl {
	if deps.Clock == nil {
		deps.Clock = secondary.ClockFunc(time.Now)
	}
	if deps.Logger == nil {
		deps.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &MonitorServiceImpl{
		configPath: configPath,
		deps:       deps,
		interval:   config.DefaultPollInterval,
	}
}

// RunCycle executes one poll cycle against a single config snapshot.
func (s *MonitorServiceImpl) RunCycle(ctx context.Context) (*primary.CycleResult, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	s.interval = cfg.PollInterval.Std()

	result := &primary.CycleResult{StartedAt: s.deps.Clock.Now()}

	if cfg.Paused {
		result.Paused = true
		result.FinishedAt = s.deps.Clock.Now()
		s.deps.Logger.Printf("cycle skipped: monitoring paused")
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CycleDeadline.Std())
	defer cancel()

	board := s.deps.NewBoard(cfg)
	sender := s.deps.NewSender(cfg, board)

	boardCards, err := s.enumerate(ctx, board, cfg.Board.PageSize)
	if err != nil {
		return nil, fmt.Errorf("board enumeration failed: %w", err)
	}
	result.CardsSeen = len(boardCards)

	if err := s.reconcile(ctx, boardCards, result); err != nil {
		return nil, err
	}

	monitored, err := s.deps.Cards.ListMonitored(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored cards: %w", err)
	}

	pcfg := policyConfig(cfg)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)

	for _, card := range monitored {
		card := card
		g.Go(func() error {
			outcome := s.pipeline(ctx, cfg, pcfg, board, sender, card)
			mu.Lock()
			result.Outcomes = append(result.Outcomes, outcome)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	result.FinishedAt = s.deps.Clock.Now()
	s.logSummary(result)
	return result, nil
}

// Run polls on the configured cadence until ctx is cancelled. Transient
// cycle failures are logged and retried next cycle; configuration and
// board-auth failures terminate the loop.
func (s *MonitorServiceImpl) Run(ctx context.Context) error {
	for {
		_, err := s.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, ErrConfigInvalid) || errors.Is(err, secondary.ErrBoardAuth) {
				return err
			}
			s.deps.Logger.Printf("cycle failed: %v", err)
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// policyConfig extracts the policy-relevant slice of a config snapshot.
func policyConfig(cfg *config.Config) policy.Config {
	return policy.Config{
		Location:            cfg.Location(),
		WeekendDays:         cfg.WeekendSet(),
		MaxReminderDays:     cfg.MaxReminderDays,
		AllowUrgentOverride: cfg.AllowUrgentOverride,
		UrgencyHorizon:      cfg.UrgencyHorizon.Std(),
	}
}

// enumerate pages through the board's open monitored cards.
func (s *MonitorServiceImpl) enumerate(ctx context.Context, board secondary.BoardClient, pageSize int) ([]*secondary.BoardCard, error) {
	var all []*secondary.BoardCard
	for page := 1; ; page++ {
		cards, more, err := board.ListMonitored(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, cards...)
		if !more {
			return all, nil
		}
	}
}

// reconcile aligns local state with the board: admits new open cards,
// refreshes board-owned fields, restarts cycles for cards the board
// reopened, and archives cards the board no longer reports open.
// Per-card reconcile failures are logged and skipped; the card is picked
// up again next cycle.
func (s *MonitorServiceImpl) reconcile(ctx context.Context, boardCards []*secondary.BoardCard, result *primary.CycleResult) error {
	seen := make(map[string]bool, len(boardCards))

	for _, bc := range boardCards {
		// A closed card in the listing is treated as absent; the archive
		// sweep below takes it out of monitoring.
		if !bc.Open {
			continue
		}
		seen[bc.ID] = true

		stored, err := s.deps.Cards.GetByID(ctx, bc.ID)
		switch {
		case errors.Is(err, secondary.ErrNotFound):
			rec := &secondary.CardRecord{
				ID:         bc.ID,
				Name:       bc.Name,
				BoardRef:   bc.BoardRef,
				Status:     primary.CardStatusOpen,
				CycleSeq:   1,
				OpenedAt:   bc.OpenedAt,
				DueAt:      bc.DueAt,
				Recipients: bc.Recipients,
			}
			if err := s.deps.Cards.Create(ctx, rec); err != nil {
				s.deps.Logger.Printf("failed to admit card %s: %v", bc.ID, err)
				continue
			}
			result.Admitted++

		case err != nil:
			s.deps.Logger.Printf("failed to load card %s: %v", bc.ID, err)

		case stored.Status == primary.CardStatusArchived:
			// The board closed this card and has since reopened it: start
			// a fresh escalation cycle anchored at the reopen time.
			if err := s.deps.Cards.Reopen(ctx, bc.ID, s.deps.Clock.Now(), bc.DueAt); err != nil {
				s.deps.Logger.Printf("failed to reopen card %s: %v", bc.ID, err)
				continue
			}
			if err := s.deps.Cards.SyncBoardFields(ctx, bc.ID, bc.Name, bc.DueAt, bc.Recipients); err != nil {
				s.deps.Logger.Printf("failed to sync card %s: %v", bc.ID, err)
			}
			result.Reopened++

		default:
			if err := s.deps.Cards.SyncBoardFields(ctx, bc.ID, bc.Name, bc.DueAt, bc.Recipients); err != nil {
				s.deps.Logger.Printf("failed to sync card %s: %v", bc.ID, err)
			}
		}
	}

	monitored, err := s.deps.Cards.ListMonitored(ctx)
	if err != nil {
		return fmt.Errorf("failed to list monitored cards: %w", err)
	}
	for _, c := range monitored {
		if seen[c.ID] {
			continue
		}
		if err := s.deps.Cards.Archive(ctx, c.ID); err != nil {
			s.deps.Logger.Printf("failed to archive card %s: %v", c.ID, err)
			continue
		}
		result.Archived++
	}
	return nil
}

// pipeline runs the per-card sequence: detect response, decide, claim,
// send, advance state. Failures stay inside the returned outcome so one
// card can never poison the rest of the cycle.
func (s *MonitorServiceImpl) pipeline(ctx context.Context, cfg *config.Config, pcfg policy.Config, board secondary.BoardClient, sender Sender, card *secondary.CardRecord) primary.CardOutcome {
	out := primary.CardOutcome{CardID: card.ID}

	if ctx.Err() != nil {
		out.Action = primary.OutcomeDeferred
		out.Reason = "cycle-deadline"
		return out
	}

	// Response detection runs for every unresolved card, including
	// exhausted ones: a late reply still resolves the cycle.
	if !card.HasResponded {
		since := card.LastContactAt
		acts, err := board.ActivitySince(ctx, card.ID, since)
		if err != nil {
			out.Action = primary.OutcomeError
			out.Err = fmt.Sprintf("activity fetch failed: %v", err)
			return out
		}

		entries := make([]response.Activity, len(acts))
		for i, a := range acts {
			entries[i] = response.Activity{Author: a.Author, Body: a.Body, Timestamp: a.Timestamp}
		}
		if res := response.Detect(entries, since, cfg.Board.SystemIdentity); res.Responded {
			err := s.deps.Cards.MarkResponded(ctx, card.ID, card.Version, res.RespondedAt, res.Author)
			if err != nil && !errors.Is(err, secondary.ErrVersionConflict) {
				out.Action = primary.OutcomeError
				out.Err = fmt.Sprintf("failed to mark responded: %v", err)
				return out
			}
			out.Action = primary.OutcomeResponded
			out.Reason = "response-detected"
			return out
		}
	}

	now := s.deps.Clock.Now()
	decision := policy.Decide(policy.CardState{
		OpenedAt:      card.OpenedAt,
		Contacted:     card.Contacted,
		ReminderLevel: card.ReminderLevel,
		LastContactAt: card.LastContactAt,
		HasResponded:  card.HasResponded,
		Exhausted:     card.Status == primary.CardStatusExhausted,
		DueAt:         card.DueAt,
	}, now, pcfg)

	out.Action = decision.Action
	out.Level = decision.Level
	out.Reason = decision.Reason
	if decision.Action == policy.ActionNone {
		return out
	}

	// From the claim onward the pipeline runs to completion even if the
	// cycle deadline fires: cancelling between claim, send, and persist
	// would leave partial sends behind.
	ctx = context.WithoutCancel(ctx)

	// The claim is the at-most-once gate. A duplicate means a prior
	// attempt already delivered this level but crashed before advancing
	// state, so skip the sends and advance state only.
	claimed := true
	if err := s.deps.Events.ClaimLevel(ctx, card.ID, card.CycleSeq, decision.Level, now); err != nil {
		if !errors.Is(err, secondary.ErrDuplicateClaim) {
			out.Action = primary.OutcomeError
			out.Err = fmt.Sprintf("failed to claim level %d: %v", decision.Level, err)
			return out
		}
		claimed = false
		out.Reason = "already-claimed"
	}

	if claimed {
		s.deliver(ctx, cfg, sender, card, decision, now)
	}

	status := primary.CardStatusAwaitingResponse
	if decision.Action == policy.ActionFinal {
		status = primary.CardStatusExhausted
	}
	upd := secondary.EscalationUpdate{
		Status:        status,
		ReminderLevel: decision.Level,
		LastContactAt: now,
	}
	if err := s.deps.Cards.UpdateEscalation(ctx, card.ID, card.Version, upd); err != nil && !errors.Is(err, secondary.ErrVersionConflict) {
		out.Action = primary.OutcomeError
		out.Err = fmt.Sprintf("failed to advance escalation state: %v", err)
	}
	return out
}

// deliver fans the decision out over its channels and recipients,
// recording one immutable event per delivery attempt.
func (s *MonitorServiceImpl) deliver(ctx context.Context, cfg *config.Config, sender Sender, card *secondary.CardRecord, decision policy.Decision, now time.Time) {
	loc := cfg.Location()
	vars := map[string]string{
		"CardID":     card.ID,
		"CardName":   card.Name,
		"BoardRef":   card.BoardRef,
		"DaysOpen":   strconv.Itoa(policy.DaysOpen(card.OpenedAt, now, loc)),
		"OpenedDate": card.OpenedAt.In(loc).Format("2006-01-02"),
	}
	if !card.DueAt.IsZero() {
		vars["DueDate"] = card.DueAt.In(loc).Format("2006-01-02")
	}

	final := decision.Action == policy.ActionFinal

	for _, ch := range decision.Channels {
		subject, body, err := s.deps.Renderer.Render(templateFor(ch, final), vars)
		if err != nil {
			s.deps.Logger.Printf("render failed for card %s channel %s: %v", card.ID, ch, err)
			continue
		}

		for _, addr := range targets(cfg, card, ch, final) {
			res, serr := sender.Send(ctx, SendRequest{
				CardID:    card.ID,
				Channel:   ch,
				Recipient: addr,
				Subject:   subject,
				Body:      body,
			})

			event := &secondary.EventRecord{
				ID:                uuid.NewString(),
				CardID:            card.ID,
				CycleSeq:          card.CycleSeq,
				Level:             decision.Level,
				Channel:           string(ch),
				Recipient:         addr,
				Outcome:           secondary.OutcomeDelivered,
				ProviderMessageID: res.ProviderMessageID,
				CreatedAt:         now,
			}
			if serr != nil {
				event.Outcome = secondary.OutcomeFailed
				event.ErrorClass = res.ErrorClass
				s.deps.Logger.Printf("delivery failed for card %s channel %s recipient %s: %v", card.ID, ch, addr, serr)
			}
			if err := s.deps.Events.Record(ctx, event); err != nil {
				s.deps.Logger.Printf("failed to record event for card %s: %v", card.ID, err)
			}
		}
	}
}

// targets resolves the concrete addresses for one channel. Final
// escalations go to the configured supervisors instead of the card's
// assigned recipients.
func targets(cfg *config.Config, card *secondary.CardRecord, ch policy.Channel, final bool) []string {
	if ch == policy.ChannelComment {
		return []string{"board"}
	}

	var addrs []string
	add := func(s string) {
		if s != "" {
			addrs = append(addrs, s)
		}
	}

	if final {
		for _, sup := range cfg.Supervisors {
			switch ch {
			case policy.ChannelEmail:
				add(sup.Email)
			case policy.ChannelSMS:
				add(sup.Phone)
			case policy.ChannelChat:
				add(sup.ChatHandle)
			}
		}
		return addrs
	}

	for _, rec := range card.Recipients {
		switch ch {
		case policy.ChannelEmail:
			add(rec.Email)
		case policy.ChannelSMS:
			add(rec.Phone)
		case policy.ChannelChat:
			add(rec.ChatHandle)
		}
	}
	return addrs
}

func templateFor(ch policy.Channel, final bool) string {
	if final {
		return "final_escalation"
	}
	switch ch {
	case policy.ChannelComment:
		return "comment_reminder"
	case policy.ChannelEmail:
		return "email_reminder"
	case policy.ChannelSMS:
		return "sms_reminder"
	default:
		return "chat_reminder"
	}
}

func (s *MonitorServiceImpl) logSummary(result *primary.CycleResult) {
	sent, responded, noops, deferred, errs := result.Counts()
	s.deps.Logger.Printf(
		"cycle complete in %s: seen=%d admitted=%d reopened=%d archived=%d sent=%d responded=%d noop=%d deferred=%d errors=%d",
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
		result.CardsSeen, result.Admitted, result.Reopened, result.Archived,
		sent, responded, noops, deferred, errs,
	)
}
