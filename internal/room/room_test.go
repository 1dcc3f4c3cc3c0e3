package room

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Paseru/jeu-noel-server/internal/game"
	"github.com/Paseru/jeu-noel-server/internal/types"
)

func testOptions() Options {
	return Options{
		Map: game.MapConfig{
			ID:           "snowy",
			Name:         "Snowy Village",
			Spawn:        game.Vec3{0, 0, 50}, // outside the gather zone
			SpawnFacing:  game.Quat{0, 0, 0, 1},
			GatherCenter: game.Vec3{0, 0, 0},
			GatherRadius: 6,
		},
		Round: game.RoundRules{
			MinPlayers:    2,
			Countdown:     40 * time.Millisecond,
			StartingDelay: 40 * time.Millisecond,
			Voting:        80 * time.Millisecond,
		},
		Gather: game.GatherRules{
			Countdown: 60 * time.Millisecond,
			Grace:     30 * time.Millisecond,
		},
		Attack: game.AttackRules{
			ClipDuration: 60 * time.Millisecond,
			HitFraction:  0.5,
			Range:        1.0,
		},
		CharacterCount: 4,
		TickInterval:   10 * time.Millisecond,
	}
}

func newTestRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, opts, zap.NewNop())
}

// joinRoom registers a client and returns its outbox.
func joinRoom(t *testing.T, r *Room, id, nickname string) chan []byte {
	t.Helper()
	out := make(chan []byte, 256)
	reply := make(chan game.Player, 1)
	r.Inbox() <- Join{ConnID: id, Nickname: nickname, Outbox: out, Reply: reply}
	select {
	case <-reply:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for join reply")
	}
	return out
}

func moveTo(r *Room, id string, pos game.Vec3) {
	r.Inbox() <- Move{ConnID: id, Position: pos, Rotation: game.Quat{0, 0, 0, 1}, IsMoving: true}
}

// waitFor reads frames until one of the wanted type arrives, skipping
// everything else (ticks interleave gather updates with the broadcasts
// under test).
func waitFor(t *testing.T, out <-chan []byte, msgType string, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case payload, ok := <-out:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", msgType)
			}
			var msg types.ServerMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return types.ServerMessage{} // unreachable
		}
	}
}

// waitForPhase reads roundState frames until the round reaches the given
// phase.
func waitForPhase(t *testing.T, out <-chan []byte, phase game.Phase, within time.Duration) types.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("timed out waiting for phase %q", phase)
		}
		msg := waitFor(t, out, types.MsgRoundState, remaining)
		if msg.Round != nil && msg.Round.Phase == phase {
			return msg
		}
	}
}

func recvNone(t *testing.T, out <-chan []byte, msgType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case payload, ok := <-out:
			if !ok {
				return
			}
			var msg types.ServerMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if msg.Type == msgType {
				t.Fatalf("expected no %q within %v, got %+v", msgType, within, msg)
			}
		case <-deadline:
			return
		}
	}
}

func getView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func TestRoom_JoinSnapshotAndBroadcast(t *testing.T) {
	r := newTestRoom(t, testOptions())

	outA := joinRoom(t, r, "A", "alice")

	welcome := waitFor(t, outA, types.MsgWelcome, time.Second)
	if welcome.ID != "A" {
		t.Fatalf("welcome for wrong id: %q", welcome.ID)
	}

	snapA := waitFor(t, outA, types.MsgSnapshot, time.Second)
	if len(snapA.Players) != 1 {
		t.Fatalf("first joiner snapshot should contain only itself, got %d players", len(snapA.Players))
	}
	if _, ok := snapA.Players["A"]; !ok {
		t.Fatalf("snapshot missing the joiner itself: %+v", snapA.Players)
	}

	outB := joinRoom(t, r, "B", "bob")

	joined := waitFor(t, outA, types.MsgPlayerJoined, time.Second)
	if joined.Player == nil || joined.Player.ID != "B" {
		t.Fatalf("A should learn about B joining, got %+v", joined)
	}

	snapB := waitFor(t, outB, types.MsgSnapshot, time.Second)
	if len(snapB.Players) != 2 {
		t.Fatalf("late joiner snapshot must contain everyone, got %d players", len(snapB.Players))
	}

	// B must not receive a playerJoined for itself on top of the snapshot.
	recvNone(t, outB, types.MsgPlayerJoined, 100*time.Millisecond)
}

func TestRoom_MoveRelayIsNotEchoed(t *testing.T) {
	r := newTestRoom(t, testOptions())
	outA := joinRoom(t, r, "A", "alice")
	outB := joinRoom(t, r, "B", "bob")

	moveTo(r, "A", game.Vec3{1, 0, 0})

	moved := waitFor(t, outB, types.MsgPlayerMoved, time.Second)
	if moved.ID != "A" {
		t.Fatalf("want move for A, got %q", moved.ID)
	}
	if moved.Position == nil || *moved.Position != (game.Vec3{1, 0, 0}) {
		t.Fatalf("position not relayed: %+v", moved.Position)
	}

	recvNone(t, outA, types.MsgPlayerMoved, 100*time.Millisecond)
}

func TestRoom_LeaveBroadcastsOnceAndIsIdempotent(t *testing.T) {
	r := newTestRoom(t, testOptions())
	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")

	r.Inbox() <- Leave{ConnID: "B"}
	left := waitFor(t, outA, types.MsgPlayerLeft, time.Second)
	if left.ID != "B" {
		t.Fatalf("want playerLeft for B, got %q", left.ID)
	}

	r.Inbox() <- Leave{ConnID: "B"}
	recvNone(t, outA, types.MsgPlayerLeft, 100*time.Millisecond)

	if v := getView(t, r); len(v.Players) != 1 {
		t.Fatalf("registry should hold 1 player, got %d", len(v.Players))
	}
}

func TestRoom_MoveAfterLeaveIsDropped(t *testing.T) {
	r := newTestRoom(t, testOptions())
	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")

	r.Inbox() <- Leave{ConnID: "B"}
	waitFor(t, outA, types.MsgPlayerLeft, time.Second)

	// In-flight move racing the disconnect: silently dropped.
	moveTo(r, "B", game.Vec3{9, 9, 9})
	recvNone(t, outA, types.MsgPlayerMoved, 100*time.Millisecond)

	if v := getView(t, r); len(v.Players) != 1 {
		t.Fatalf("stale record resurrected: %d players", len(v.Players))
	}
}

func TestRoom_GatherZoneTriggersRoundStart(t *testing.T) {
	opts := testOptions()
	opts.Round.MinPlayers = 3
	r := newTestRoom(t, opts)

	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")
	_ = joinRoom(t, r, "C", "carol")

	// Everyone walks into the summon zone.
	moveTo(r, "A", game.Vec3{1, 0, 0})
	moveTo(r, "B", game.Vec3{0, 0, 1})
	moveTo(r, "C", game.Vec3{-1, 0, 0})

	gather := waitFor(t, outA, types.MsgGatherState, time.Second)
	for gather.Gather.Status != game.GatherCountdown {
		gather = waitFor(t, outA, types.MsgGatherState, time.Second)
	}
	if gather.Gather.CountdownEnd == 0 {
		t.Fatalf("gather countdown must carry an end timestamp")
	}

	waitForPhase(t, outA, game.PhaseCountdown, 2*time.Second)
	waitForPhase(t, outA, game.PhaseStarting, 2*time.Second)
	started := waitForPhase(t, outA, game.PhasePlaying, 2*time.Second)
	if started.Round.InfectedID == "" {
		t.Fatalf("playing round must have an infected player")
	}

	v := getView(t, r)
	infected := 0
	for _, p := range v.Players {
		if p.IsInfected {
			infected++
		}
	}
	if infected != 1 {
		t.Fatalf("want exactly one infected, got %d", infected)
	}
}

func TestRoom_RoundStartDropsGatherHold(t *testing.T) {
	r := newTestRoom(t, testOptions())

	outA := joinRoom(t, r, "A", "alice")
	outB := joinRoom(t, r, "B", "bob")
	_ = joinRoom(t, r, "C", "carol")

	// Everyone enters the zone and the summon countdown begins.
	moveTo(r, "A", game.Vec3{1, 0, 0})
	moveTo(r, "B", game.Vec3{0, 0, 1})
	moveTo(r, "C", game.Vec3{-1, 0, 0})
	gather := waitFor(t, outA, types.MsgGatherState, time.Second)
	for gather.Gather.Status != game.GatherCountdown {
		gather = waitFor(t, outA, types.MsgGatherState, time.Second)
	}

	// A manual start interrupts the hold mid-countdown.
	r.Inbox() <- RequestRoundStart{ConnID: "A"}
	started := waitForPhase(t, outA, game.PhasePlaying, 2*time.Second)
	infectedID := started.Round.InfectedID

	// Everyone scatters, then the infected disconnects and the round
	// aborts back to WAITING with nobody near the zone.
	moveTo(r, "A", game.Vec3{40, 0, 40})
	moveTo(r, "B", game.Vec3{-40, 0, 40})
	moveTo(r, "C", game.Vec3{40, 0, -40})
	watch := outA
	if infectedID == "A" {
		watch = outB
	}
	r.Inbox() <- Leave{ConnID: infectedID}
	waitForPhase(t, watch, game.PhaseWaiting, 2*time.Second)

	// The long-expired countdown deadline from the interrupted hold must
	// not fire a summon: the room stays WAITING with the gather idle.
	time.Sleep(150 * time.Millisecond)
	v := getView(t, r)
	if v.Round.Phase != game.PhaseWaiting {
		t.Fatalf("round restarted with every player outside the zone, phase=%q", v.Round.Phase)
	}
	if v.Gather.Status != game.GatherIdle {
		t.Fatalf("gather hold survived the round, status=%q", v.Gather.Status)
	}
	if !v.Gather.CountdownEnd.IsZero() {
		t.Fatalf("stale gather deadline kept: %v", v.Gather.CountdownEnd)
	}
}

func TestRoom_AttackKillsExactlyOnce(t *testing.T) {
	opts := testOptions()
	r := newTestRoom(t, opts)

	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")
	outC := joinRoom(t, r, "C", "carol")

	r.Inbox() <- RequestRoundStart{ConnID: "A"}
	started := waitForPhase(t, outA, game.PhasePlaying, 2*time.Second)
	infectedID := started.Round.InfectedID

	victimID := "A"
	if infectedID == "A" {
		victimID = "B"
	}
	bystanderID := "C"
	if infectedID == "C" {
		bystanderID = "B"
		if victimID == "B" {
			victimID = "A"
		}
	}

	moveTo(r, infectedID, game.Vec3{0, 0, 0})
	moveTo(r, victimID, game.Vec3{0.5, 0, 0})
	moveTo(r, bystanderID, game.Vec3{40, 0, 40})

	watch := outC
	if bystanderID != "C" {
		watch = outA
	}

	r.Inbox() <- AttackIntent{ConnID: infectedID}

	died := waitFor(t, watch, types.MsgPlayerDied, 2*time.Second)
	if died.ID != victimID {
		t.Fatalf("want kill on %q, got %q", victimID, died.ID)
	}

	// One windup, one kill: the bystander survives the rest of the clip
	// and beyond.
	recvNone(t, watch, types.MsgPlayerDied, 200*time.Millisecond)

	v := getView(t, r)
	if v.Round.Phase != game.PhasePlaying {
		t.Fatalf("round should continue with a survivor left, got %q", v.Round.Phase)
	}
	if p, ok := v.Players[victimID]; !ok || !p.IsDead {
		t.Fatalf("victim record not marked dead: %+v", v.Players[victimID])
	}
}

func TestRoom_KillingLastSurvivorOpensVoting(t *testing.T) {
	r := newTestRoom(t, testOptions())

	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")

	r.Inbox() <- RequestRoundStart{ConnID: "A"}
	started := waitForPhase(t, outA, game.PhasePlaying, 2*time.Second)
	infectedID := started.Round.InfectedID
	victimID := "A"
	if infectedID == "A" {
		victimID = "B"
	}

	moveTo(r, infectedID, game.Vec3{0, 0, 0})
	moveTo(r, victimID, game.Vec3{0.5, 0, 0})
	r.Inbox() <- AttackIntent{ConnID: infectedID}

	waitForPhase(t, outA, game.PhaseVoting, 2*time.Second)

	r.Inbox() <- Vote{ConnID: infectedID, OptionID: "cabin"}
	r.Inbox() <- Vote{ConnID: victimID, OptionID: "cabin"}

	reset := waitForPhase(t, outA, game.PhaseWaiting, 2*time.Second)
	if reset.Round.NextMap != "cabin" {
		t.Fatalf("vote winner not applied, nextMap=%q", reset.Round.NextMap)
	}

	v := getView(t, r)
	for _, p := range v.Players {
		if p.IsDead || p.IsInfected {
			t.Fatalf("round reset must clear role flags: %+v", p)
		}
	}
}

func TestRoom_InfectedDisconnectAbortsRound(t *testing.T) {
	r := newTestRoom(t, testOptions())

	outA := joinRoom(t, r, "A", "alice")
	_ = joinRoom(t, r, "B", "bob")
	_ = joinRoom(t, r, "C", "carol")

	r.Inbox() <- RequestRoundStart{ConnID: "A"}
	started := waitForPhase(t, outA, game.PhasePlaying, 2*time.Second)
	infectedID := started.Round.InfectedID

	watch := outA
	if infectedID == "A" {
		// A's outbox closes on leave; watch someone who stays.
		watch = joinRoom(t, r, "D", "dave")
	}
	r.Inbox() <- Leave{ConnID: infectedID}

	aborted := waitForPhase(t, watch, game.PhaseWaiting, 2*time.Second)
	if aborted.Round.InfectedID != "" {
		t.Fatalf("aborted round still references infected %q", aborted.Round.InfectedID)
	}

	v := getView(t, r)
	if v.Round.InfectedID != "" {
		t.Fatalf("dangling infected id after disconnect")
	}
}

func TestRoom_ChatRelayedToEveryoneIncludingSender(t *testing.T) {
	r := newTestRoom(t, testOptions())
	outA := joinRoom(t, r, "A", "alice")
	outB := joinRoom(t, r, "B", "bob")

	r.Inbox() <- Chat{ConnID: "A", Text: "over here"}

	for _, out := range []chan []byte{outA, outB} {
		msg := waitFor(t, out, types.MsgChat, time.Second)
		if msg.ID != "A" || msg.Nickname != "alice" || msg.Text != "over here" {
			t.Fatalf("chat relay mangled: %+v", msg)
		}
	}
}

func TestRoom_SignalForwardedToTargetOnly(t *testing.T) {
	r := newTestRoom(t, testOptions())
	outA := joinRoom(t, r, "A", "alice")
	outB := joinRoom(t, r, "B", "bob")

	r.Inbox() <- Signal{From: "A", Target: "B", Data: json.RawMessage(`{"sdp":"offer"}`)}

	sig := waitFor(t, outB, types.MsgSignal, time.Second)
	if sig.From != "A" || string(sig.Data) != `{"sdp":"offer"}` {
		t.Fatalf("signal payload not forwarded verbatim: %+v", sig)
	}
	recvNone(t, outA, types.MsgSignal, 100*time.Millisecond)
}
