package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/cardwatch/internal/adapters/sqlite"
	"github.com/example/cardwatch/internal/config"
	"github.com/example/cardwatch/internal/core/policy"
	"github.com/example/cardwatch/internal/db"
	"github.com/example/cardwatch/internal/ports/primary"
	"github.com/example/cardwatch/internal/ports/secondary"
)

// recordingSender captures every send and always succeeds.
type recordingSender struct {
	mu    sync.Mutex
	sends []SendRequest
}

func (s *recordingSender) Send(_ context.Context, req SendRequest) (secondary.DeliveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, req)
	return secondary.DeliveryResult{Success: true, ProviderMessageID: "prov-1"}, nil
}

func (s *recordingSender) byChannel(ch policy.Channel) []SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SendRequest
	for _, r := range s.sends {
		if r.Channel == ch {
			out = append(out, r)
		}
	}
	return out
}

type monitorFixture struct {
	service *MonitorServiceImpl
	board   *fakeBoard
	sender  *recordingSender
	cards   secondary.CardRepository
	events  secondary.EventRepository
	now     time.Time
}

// Monday 2024-01-08 09:00 UTC, a weekday under the default config.
var fixtureStart = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := `max_reminder_days: 3
timezone: UTC
workers: 2
board:
  base_url: http://board.test/api
  token: tok
  system_identity: cardwatch-bot
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &monitorFixture{
		board:  &fakeBoard{activities: map[string][]secondary.BoardActivity{}},
		sender: &recordingSender{},
		cards:  sqlite.NewCardRepository(database),
		events: sqlite.NewEventRepository(database),
		now:    fixtureStart,
	}

	configPath := writeTestConfig(t, t.TempDir())
	f.service = NewMonitorService(configPath, MonitorDeps{
		Cards:    f.cards,
		Events:   f.events,
		Renderer: stubRenderer{},
		Clock:    secondary.ClockFunc(func() time.Time { return f.now }),
		NewBoard: func(*config.Config) secondary.BoardClient { return f.board },
		NewSender: func(*config.Config, secondary.BoardClient) Sender {
			return f.sender
		},
	})
	return f
}

type stubRenderer struct{}

func (stubRenderer) Render(templateID string, vars map[string]string) (string, string, error) {
	return "subject:" + templateID, "body for " + vars["CardID"], nil
}

func boardCard(id string) *secondary.BoardCard {
	return &secondary.BoardCard{
		ID:       id,
		Name:     "Replace filter " + id,
		BoardRef: "ops/maintenance",
		Open:     true,
		OpenedAt: fixtureStart,
		Recipients: []secondary.RecipientRecord{
			{Identity: "dev-anna", Email: "anna@example.com", Phone: "+15550100", ChatHandle: "@anna"},
		},
	}
}

func TestRunCycleAdmitsNewCards(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1"), boardCard("card-2")}

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.CardsSeen)
	assert.Equal(t, 2, result.Admitted)
	assert.Len(t, result.Outcomes, 2)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CycleSeq)
	require.Len(t, stored.Recipients, 1)
	assert.Equal(t, "dev-anna", stored.Recipients[0].Identity)
}

func TestRunCycleSendsDayZeroComment(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	sent, _, _, _, _ := result.Counts()
	assert.Equal(t, 1, sent)

	comments := f.sender.byChannel(policy.ChannelComment)
	require.Len(t, comments, 1)
	assert.Equal(t, "card-1", comments[0].CardID)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, primary.CardStatusAwaitingResponse, stored.Status)
	assert.Equal(t, 0, stored.ReminderLevel)
	assert.True(t, stored.Contacted)

	events, err := f.events.List(context.Background(), secondary.EventFilters{CardID: "card-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, secondary.OutcomeDelivered, events[0].Outcome)
	assert.Equal(t, "comment", events[0].Channel)
}

func TestRunCycleSameDayIsIdempotent(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// A second poll two hours later must not send again.
	f.now = f.now.Add(2 * time.Hour)
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	sent, _, noops, _, _ := result.Counts()
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, noops)
	assert.Len(t, f.sender.sends, 1)
}

func TestRunCycleEscalatesNextDayToEmail(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, 1)
	_, err = f.service.RunCycle(context.Background())
	require.NoError(t, err)

	emails := f.sender.byChannel(policy.ChannelEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "anna@example.com", emails[0].Recipient)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReminderLevel)
}

func TestRunCycleDetectsResponse(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	respondedAt := f.now.Add(3 * time.Hour)
	f.board.activities["card-1"] = []secondary.BoardActivity{
		{Author: "cardwatch-bot", Body: "reminder", Timestamp: f.now},
		{Author: "dev-anna", Body: "on it, part arrives tomorrow", Timestamp: respondedAt},
	}

	f.now = f.now.AddDate(0, 0, 1)
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	_, responded, _, _, _ := result.Counts()
	assert.Equal(t, 1, responded)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, primary.CardStatusResolved, stored.Status)
	assert.True(t, stored.RespondedAt.Equal(respondedAt))
	assert.Equal(t, "dev-anna", stored.RespondedBy)

	// No further sends after resolution.
	assert.Len(t, f.sender.byChannel(policy.ChannelEmail), 0)
}

func TestRunCycleFinalEscalationGoesToSupervisors(t *testing.T) {
	f := newMonitorFixture(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	body := `max_reminder_days: 3
timezone: UTC
supervisors:
  - name: Lead
    email: lead@example.com
    chat_handle: "@lead"
board:
  base_url: http://board.test/api
  token: tok
  system_identity: cardwatch-bot
`
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0644))
	f.service.configPath = configPath

	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	// Walk the full schedule: Mon comment, Tue email, Wed sms/chat/email,
	// Thu final.
	for day := 0; day < 4; day++ {
		_, err := f.service.RunCycle(context.Background())
		require.NoError(t, err)
		f.now = f.now.AddDate(0, 0, 1)
	}

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, primary.CardStatusExhausted, stored.Status)
	assert.Equal(t, policy.LevelFinal, stored.ReminderLevel)

	// The terminal escalation addressed the supervisor, not the assignee.
	var finalEmail []SendRequest
	for _, r := range f.sender.byChannel(policy.ChannelEmail) {
		if r.Recipient == "lead@example.com" {
			finalEmail = append(finalEmail, r)
		}
	}
	require.Len(t, finalEmail, 1)
	assert.Equal(t, "subject:final_escalation", finalEmail[0].Subject)

	chats := f.sender.byChannel(policy.ChannelChat)
	require.NotEmpty(t, chats)
	assert.Equal(t, "@lead", chats[len(chats)-1].Recipient)

	// Exhausted cards stay quiet afterwards.
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	sent, _, _, _, _ := result.Counts()
	assert.Equal(t, 0, sent)
}

func TestRunCycleArchivesClosedCards(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// Board no longer reports the card open.
	f.board.cards = nil
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, primary.CardStatusArchived, stored.Status)
}

func TestRunCycleReopensArchivedCards(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	f.board.cards = nil
	_, err = f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// The board reopens the card a week later: new cycle, fresh schedule.
	f.now = f.now.AddDate(0, 0, 7)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reopened)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CycleSeq)
	assert.True(t, stored.OpenedAt.Equal(f.now))
	assert.Equal(t, primary.CardStatusAwaitingResponse, stored.Status)

	// The fresh cycle starts at level 0 again.
	comments := f.sender.byChannel(policy.ChannelComment)
	assert.Len(t, comments, 2)
}

func TestRunCyclePausedSkipsEverything(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := config.Set(f.service.configPath, map[string]string{"paused": "true"})
	require.NoError(t, err)

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Paused)
	assert.Zero(t, result.CardsSeen)
	assert.Empty(t, f.sender.sends)
}

func TestRunCycleBoardOutageAbortsCycle(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.listErr = secondary.ErrBoardUnavailable

	_, err := f.service.RunCycle(context.Background())
	require.ErrorIs(t, err, secondary.ErrBoardUnavailable)
}

func TestRunCycleInvalidConfigIsFatal(t *testing.T) {
	f := newMonitorFixture(t)
	require.NoError(t, os.WriteFile(f.service.configPath, []byte("max_reminder_days: -2\n"), 0644))

	_, err := f.service.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunCycleActivityErrorIsolatedPerCard(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}
	f.board.activityErr = secondary.ErrBoardUnavailable

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	_, _, _, _, errs := result.Counts()
	assert.Equal(t, 1, errs)
	assert.Empty(t, f.sender.sends)

	// The card is untouched and retried next cycle.
	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.False(t, stored.Contacted)
}

func TestRunCycleAlreadyClaimedLevelAdvancesWithoutResending(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// A prior attempt claimed level 1 and crashed before advancing card
	// state. The retry must not deliver the level again.
	f.now = f.now.AddDate(0, 0, 1)
	require.NoError(t, f.events.ClaimLevel(context.Background(), "card-1", 1, 1, f.now))

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "already-claimed", result.Outcomes[0].Reason)
	assert.Equal(t, 1, result.Outcomes[0].Level)

	// Only the day-zero comment was ever sent or recorded.
	assert.Len(t, f.sender.sends, 1)
	events, err := f.events.List(context.Background(), secondary.EventFilters{CardID: "card-1"})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// Card state still advances to the claimed level.
	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReminderLevel)
	assert.True(t, stored.LastContactAt.Equal(f.now))
}

func TestPipelineDefersWhenCycleDeadlineHit(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// Next day a level is due, but the cycle deadline fired before this
	// card's pipeline started.
	f.now = f.now.AddDate(0, 0, 1)
	cfg, err := config.Load(f.service.configPath)
	require.NoError(t, err)
	card, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.service.pipeline(ctx, cfg, policyConfig(cfg), f.board, f.sender, card)
	assert.Equal(t, primary.OutcomeDeferred, out.Action)
	assert.Equal(t, "cycle-deadline", out.Reason)

	// State untouched; the next cycle picks the card up fresh.
	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ReminderLevel)
	assert.True(t, stored.LastContactAt.Equal(fixtureStart))
	assert.Len(t, f.sender.sends, 1)
}

// cancellingSender cancels its context while the send is in flight,
// simulating the cycle deadline firing mid-delivery.
type cancellingSender struct {
	inner  *recordingSender
	cancel context.CancelFunc
}

func (s *cancellingSender) Send(ctx context.Context, req SendRequest) (secondary.DeliveryResult, error) {
	s.cancel()
	return s.inner.Send(ctx, req)
}

func TestPipelineFinishesInFlightSendPastDeadline(t *testing.T) {
	f := newMonitorFixture(t)

	card := boardCard("card-1")
	require.NoError(t, f.cards.Create(context.Background(), &secondary.CardRecord{
		ID:         card.ID,
		Name:       card.Name,
		BoardRef:   card.BoardRef,
		Status:     primary.CardStatusOpen,
		CycleSeq:   1,
		OpenedAt:   card.OpenedAt,
		Recipients: card.Recipients,
	}))

	cfg, err := config.Load(f.service.configPath)
	require.NoError(t, err)
	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sender := &cancellingSender{inner: f.sender, cancel: cancel}

	out := f.service.pipeline(ctx, cfg, policyConfig(cfg), f.board, sender, stored)
	require.Error(t, ctx.Err())
	assert.Equal(t, policy.ActionSend, out.Action)

	// Despite the cancellation mid-send, the event was recorded and the
	// card state advanced.
	events, err := f.events.List(context.Background(), secondary.EventFilters{CardID: "card-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, secondary.OutcomeDelivered, events[0].Outcome)

	after, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.True(t, after.Contacted)
	assert.Equal(t, primary.CardStatusAwaitingResponse, after.Status)
}

func TestRunCycleArchivesCardsReportedClosed(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// The listing still contains the card but reports it closed.
	closed := boardCard("card-1")
	closed.Open = false
	f.board.cards = []*secondary.BoardCard{closed}

	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Archived)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, primary.CardStatusArchived, stored.Status)
}

func TestRunCycleCatchUpAfterOutageSendsOnce(t *testing.T) {
	f := newMonitorFixture(t)
	f.board.cards = []*secondary.BoardCard{boardCard("card-1")}

	_, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	// Poller down for two days; on return only the current level sends.
	f.now = f.now.AddDate(0, 0, 2)
	result, err := f.service.RunCycle(context.Background())
	require.NoError(t, err)

	sent, _, _, _, _ := result.Counts()
	assert.Equal(t, 1, sent)

	stored, err := f.cards.GetByID(context.Background(), "card-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.ReminderLevel)

	// Level 1 (email only) was skipped entirely, level 2 fanned out.
	assert.Len(t, f.sender.byChannel(policy.ChannelSMS), 1)
	assert.Len(t, f.sender.byChannel(policy.ChannelEmail), 1)
}
