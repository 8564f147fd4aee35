package session

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/K41-max/mahjong/internal/protocol"
)

type fakeSender struct {
	sent []protocol.Event
}

func (f *fakeSender) Send(event protocol.Event) error {
	f.sent = append(f.sent, event)
	return nil
}

// fakeDisplay records everything the session renders.
type fakeDisplay struct {
	lobbyVisible bool
	gameVisible  bool
	roomCode     string
	status       string
	roster       []Participant
	actions      []protocol.Action
	countdown    string
	messages     []string
}

func (f *fakeDisplay) ShowLobby() {
	f.lobbyVisible = true
	f.gameVisible = false
}

func (f *fakeDisplay) ShowGame(roomCode string) {
	f.lobbyVisible = false
	f.gameVisible = true
	f.roomCode = roomCode
}

func (f *fakeDisplay) SetStatus(status string)                 { f.status = status }
func (f *fakeDisplay) RenderRoster(roster []Participant)       { f.roster = roster }
func (f *fakeDisplay) RenderActions(actions []protocol.Action) { f.actions = actions }
func (f *fakeDisplay) SetCountdown(text string)                { f.countdown = text }
func (f *fakeDisplay) ShowMessage(message string)              { f.messages = append(f.messages, message) }

func newTestSession(t *testing.T) (*Session, *fakeSender, *fakeDisplay, *clockwork.FakeClock) {
	t.Helper()
	sender := &fakeSender{}
	display := &fakeDisplay{}
	fc := clockwork.NewFakeClock()
	return New(sender, display, fc, zerolog.Nop()), sender, display, fc
}

func event(t *testing.T, typ protocol.EventType, payload any) protocol.Event {
	t.Helper()
	ev, err := protocol.NewEvent(typ, payload)
	if err != nil {
		t.Fatalf("NewEvent(%s): %v", typ, err)
	}
	return ev
}

// greet delivers the connect greeting that assigns the local connection id.
func greet(t *testing.T, s *Session, sid string) {
	t.Helper()
	s.HandleEvent(event(t, protocol.EventGameState, protocol.GameStatePayload{Message: "Connected", SID: sid}))
}

func lastSent(t *testing.T, sender *fakeSender) protocol.Event {
	t.Helper()
	if len(sender.sent) == 0 {
		t.Fatal("no event was sent")
	}
	return sender.sent[len(sender.sent)-1]
}

func TestCreateRoomValidation(t *testing.T) {
	s, sender, display, _ := newTestSession(t)

	if err := s.CreateRoom("   "); err != ErrNameRequired {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("validation failure must not reach the wire")
	}
	if len(display.messages) != 1 {
		t.Fatal("validation failure must surface a message")
	}
	if got := s.Phase(); got != PhaseLobby {
		t.Fatalf("phase = %s, want lobby", got)
	}
}

func TestJoinRoomValidation(t *testing.T) {
	s, sender, _, _ := newTestSession(t)

	if err := s.JoinRoom("Aki", "  "); err != ErrRoomCodeRequired {
		t.Fatalf("err = %v, want ErrRoomCodeRequired", err)
	}
	if err := s.JoinRoom("", "AB12"); err != ErrNameRequired {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("validation failures must not reach the wire")
	}
}

func TestJoinRoomUppercasesCode(t *testing.T) {
	s, sender, _, _ := newTestSession(t)

	if err := s.JoinRoom(" Aki ", "ab12"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	got, err := protocol.ParsePayload(lastSent(t, sender))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	want := protocol.JoinRoomPayload{PlayerName: "Aki", RoomCode: "AB12"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestJoinRandomValidation(t *testing.T) {
	s, sender, _, _ := newTestSession(t)

	if err := s.JoinRandom(""); err != ErrNameRequired {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	if err := s.JoinRandom("Aki"); err != nil {
		t.Fatalf("JoinRandom: %v", err)
	}
	if got := lastSent(t, sender).Type; got != protocol.EventJoinRandom {
		t.Fatalf("sent %s, want join_random", got)
	}
}

// Scenario: create-room request, then server confirmation.
func TestCreateRoomThenRoomCreated(t *testing.T) {
	s, sender, display, _ := newTestSession(t)

	if err := s.CreateRoom("Aki"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	got, err := protocol.ParsePayload(lastSent(t, sender))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if diff := cmp.Diff(protocol.CreateRoomPayload{PlayerName: "Aki"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if got := s.Phase(); got != PhaseLobby {
		t.Fatalf("phase must not change before confirmation, got %s", got)
	}

	s.HandleEvent(event(t, protocol.EventRoomCreated, protocol.RoomPayload{RoomCode: "AB12"}))

	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, want waiting", got)
	}
	if got := s.RoomCode(); got != "AB12" {
		t.Fatalf("room code = %q, want AB12", got)
	}
	if !display.gameVisible || display.lobbyVisible {
		t.Fatal("game region should be visible, lobby hidden")
	}
	if display.status != StatusWaitingForPlayers {
		t.Fatalf("status = %q, want %q", display.status, StatusWaitingForPlayers)
	}
}

func TestRoomEstablishedIdempotent(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	s.HandleEvent(event(t, protocol.EventRoomCreated, protocol.RoomPayload{RoomCode: "AB12"}))
	// The server sends room_joined to the whole room right after, and the
	// transport may re-deliver; neither may corrupt state.
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, want waiting", got)
	}
	if got := s.RoomCode(); got != "AB12" {
		t.Fatalf("room code = %q, want AB12", got)
	}
}

func TestGameStartedTransition(t *testing.T) {
	s, _, display, _ := newTestSession(t)

	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))
	s.HandleEvent(event(t, protocol.EventGameStarted, struct{}{}))

	if got := s.Phase(); got != PhaseActive {
		t.Fatalf("phase = %s, want active", got)
	}
	if display.status != StatusGameStarted {
		t.Fatalf("status = %q, want %q", display.status, StatusGameStarted)
	}
}

func TestGreetingAssignsLocalID(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	greet(t, s, "X")
	if got := s.LocalID(); got != "X" {
		t.Fatalf("local id = %q, want X", got)
	}
	if s.Countdown().Active() {
		t.Fatal("greeting must not start a countdown")
	}

	// The id is connection scoped; a later greeting cannot steal it.
	greet(t, s, "Y")
	if got := s.LocalID(); got != "X" {
		t.Fatalf("local id = %q, want X", got)
	}
}

// Scenario: roster snapshot including the local player starts the countdown.
func TestRosterSnapshotStartsCountdown(t *testing.T) {
	s, _, display, fc := newTestSession(t)
	greet(t, s, "X")

	s.HandleEvent(event(t, protocol.EventGameState, protocol.GameStatePayload{
		Players: []protocol.PlayerState{{SID: "X", Name: "Aki", RemainingTime: 30}},
	}))

	want := []Participant{{ID: "X", Name: "Aki", RemainingTime: 30}}
	if diff := cmp.Diff(want, display.roster); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
	if display.countdown != "30" {
		t.Fatalf("countdown = %q, want 30", display.countdown)
	}

	cd := s.Countdown()
	tickOnce(t, cd, fc)
	if display.countdown != "29" {
		t.Fatalf("after 1s countdown = %q, want 29", display.countdown)
	}

	for i := 0; i < 29; i++ {
		tickOnce(t, cd, fc)
	}
	if display.countdown != "0" {
		t.Fatalf("after 30s countdown = %q, want 0", display.countdown)
	}
	if cd.Active() {
		t.Fatal("countdown should stop at zero")
	}
}

func TestRosterSnapshotWithoutLocalPlayer(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	greet(t, s, "X")

	s.HandleEvent(event(t, protocol.EventGameState, protocol.GameStatePayload{
		Players: []protocol.PlayerState{{SID: "Y", Name: "Jun", RemainingTime: 30}},
	}))
	if s.Countdown().Active() {
		t.Fatal("countdown must only track the local player")
	}
	if got := len(s.Roster()); got != 1 {
		t.Fatalf("roster size = %d, want 1", got)
	}
}

func TestDuplicateSnapshotRestartsSingleTicker(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	greet(t, s, "X")

	snapshot := protocol.GameStatePayload{
		Players: []protocol.PlayerState{{SID: "X", Name: "Aki", RemainingTime: 30}},
	}
	s.HandleEvent(event(t, protocol.EventGameState, snapshot))
	first := s.Countdown().TickC()
	s.HandleEvent(event(t, protocol.EventGameState, snapshot))
	second := s.Countdown().TickC()

	if first == second {
		t.Fatal("second snapshot should have replaced the ticker")
	}
	if !s.Countdown().Active() {
		t.Fatal("replacement ticker should be running")
	}
}

// Scenario: turn ownership drives the affordance set.
func TestTurnAffordances(t *testing.T) {
	s, _, display, _ := newTestSession(t)
	greet(t, s, "X")

	s.HandleEvent(event(t, protocol.EventTurn, protocol.TurnPayload{PlayerID: "X"}))
	if !s.IsLocalTurn() {
		t.Fatal("expected local turn")
	}
	if diff := cmp.Diff(protocol.Actions(), display.actions); diff != "" {
		t.Errorf("affordances mismatch (-want +got):\n%s", diff)
	}
	if display.status != StatusYourTurn {
		t.Fatalf("status = %q, want %q", display.status, StatusYourTurn)
	}

	s.HandleEvent(event(t, protocol.EventTurn, protocol.TurnPayload{PlayerID: "Y"}))
	if s.IsLocalTurn() {
		t.Fatal("expected opponent turn")
	}
	if len(display.actions) != 0 {
		t.Fatalf("affordances = %v, want none", display.actions)
	}
	if display.status != StatusOpponentTurn {
		t.Fatalf("status = %q, want %q", display.status, StatusOpponentTurn)
	}
}

func TestTurnForUnknownParticipant(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	greet(t, s, "X")

	// Turn notice may outrun the roster snapshot; it must still apply.
	s.HandleEvent(event(t, protocol.EventTurn, protocol.TurnPayload{PlayerID: "stranger"}))
	if got := s.ActiveParticipant(); got != "stranger" {
		t.Fatalf("active participant = %q, want stranger", got)
	}
}

func TestSubmitActionGating(t *testing.T) {
	s, sender, _, _ := newTestSession(t)
	greet(t, s, "X")
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	if err := s.SubmitAction(protocol.ActionRon); err != ErrNotYourTurn {
		t.Fatalf("err = %v, want ErrNotYourTurn", err)
	}

	s.HandleEvent(event(t, protocol.EventTurn, protocol.TurnPayload{PlayerID: "X"}))
	if err := s.SubmitAction("discard"); err != ErrUnknownAction {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}

	before := len(sender.sent)
	if err := s.SubmitAction(protocol.ActionRon); err != nil {
		t.Fatalf("SubmitAction: %v", err)
	}
	if len(sender.sent) != before+1 {
		t.Fatal("expected exactly one action frame")
	}
	got, err := protocol.ParsePayload(lastSent(t, sender))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	want := protocol.ActionPayload{RoomCode: "AB12", Action: protocol.ActionRon}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

// Scenario: game_ended resets everything back to the lobby.
func TestGameEndedFullReset(t *testing.T) {
	s, _, display, _ := newTestSession(t)
	greet(t, s, "X")
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))
	s.HandleEvent(event(t, protocol.EventGameStarted, struct{}{}))
	s.HandleEvent(event(t, protocol.EventGameState, protocol.GameStatePayload{
		Players: []protocol.PlayerState{{SID: "X", Name: "Aki", RemainingTime: 30}},
	}))
	s.HandleEvent(event(t, protocol.EventTurn, protocol.TurnPayload{PlayerID: "X"}))

	s.HandleEvent(event(t, protocol.EventGameEnded, protocol.MessagePayload{Message: "Y wins"}))

	if got := display.messages[len(display.messages)-1]; got != "Y wins" {
		t.Fatalf("message = %q, want %q", got, "Y wins")
	}
	if got := s.Phase(); got != PhaseLobby {
		t.Fatalf("phase = %s, want lobby", got)
	}
	if got := s.RoomCode(); got != "" {
		t.Fatalf("room code = %q, want empty", got)
	}
	if got := len(s.Roster()); got != 0 {
		t.Fatalf("roster size = %d, want 0", got)
	}
	if got := s.ActiveParticipant(); got != "" {
		t.Fatalf("active participant = %q, want unset", got)
	}
	if s.Countdown().Active() {
		t.Fatal("countdown ticker must be released")
	}
	if display.countdown != CountdownUnknown {
		t.Fatalf("countdown = %q, want %q", display.countdown, CountdownUnknown)
	}
	if !display.lobbyVisible || display.gameVisible {
		t.Fatal("lobby region should be visible, game hidden")
	}
	if len(display.actions) != 0 {
		t.Fatal("no affordances after reset")
	}
}

func TestGameEndedFromWaitingPhase(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	s.HandleEvent(event(t, protocol.EventGameEnded, protocol.MessagePayload{Message: "Not enough players"}))
	if got := s.Phase(); got != PhaseLobby {
		t.Fatalf("phase = %s, want lobby regardless of prior phase", got)
	}
	if got := s.RoomCode(); got != "" {
		t.Fatalf("room code = %q, want empty", got)
	}
}

func TestErrorEventIsAdvisory(t *testing.T) {
	s, _, display, _ := newTestSession(t)
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	s.HandleEvent(event(t, protocol.EventError, protocol.MessagePayload{Message: "Room is full"}))

	if got := display.messages[len(display.messages)-1]; got != "Room is full" {
		t.Fatalf("message = %q, want %q", got, "Room is full")
	}
	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, errors must not change phase", got)
	}
	if got := s.RoomCode(); got != "AB12" {
		t.Fatalf("room code = %q, want AB12", got)
	}
}

func TestPlayerLeftWithoutPayload(t *testing.T) {
	s, _, display, _ := newTestSession(t)
	greet(t, s, "X")
	s.HandleEvent(event(t, protocol.EventGameState, protocol.GameStatePayload{
		Players: []protocol.PlayerState{{SID: "X", Name: "Aki", RemainingTime: 30}},
	}))
	display.roster = nil

	s.HandleEvent(protocol.Event{Type: protocol.EventPlayerLeft})

	// Best-known state is re-rendered until the next snapshot arrives.
	if got := len(display.roster); got != 1 {
		t.Fatalf("re-rendered roster size = %d, want 1", got)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	s.HandleEvent(protocol.Event{Type: "telemetry", Data: json.RawMessage(`{"x":1}`)})

	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, unknown events must be ignored", got)
	}
}

func TestMalformedEventDropped(t *testing.T) {
	s, _, _, _ := newTestSession(t)
	s.HandleEvent(event(t, protocol.EventRoomJoined, protocol.RoomPayload{RoomCode: "AB12"}))

	s.HandleEvent(protocol.Event{Type: protocol.EventTurn, Data: json.RawMessage(`{"player_id":`)})

	if got := s.ActiveParticipant(); got != "" {
		t.Fatalf("active participant = %q, malformed events must not apply", got)
	}
	if got := s.Phase(); got != PhaseWaiting {
		t.Fatalf("phase = %s, want waiting", got)
	}
}
