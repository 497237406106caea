package signaling_test

import (
	"testing"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/BrownNPC/CallRelay/internal/mocks"
	"github.com/BrownNPC/CallRelay/signaling"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	router    *signaling.Router
	registry  *signaling.Registry
	transport *mocks.MockTransport
	lists     [][]string
}

func newRouterFixture(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	f := &routerFixture{
		registry:  signaling.NewRegistry(nil),
		transport: mocks.NewMockTransport(ctrl),
	}
	f.router = signaling.NewRouter(f.registry, f.transport, nil)
	return f
}

// expectUserLists records every user list broadcast, n times.
func (f *routerFixture) expectUserLists(n int) {
	f.transport.EXPECT().
		Broadcast(signaling.EventUpdateUserList, gomock.Any()).
		Do(func(_ string, payload any) {
			f.lists = append(f.lists, payload.([]string))
		}).
		Times(n)
}

func (f *routerFixture) register(identity callrelay.Identity) *signaling.Conn {
	c := signaling.NewConn(uuid.New())
	f.router.Dispatch(c, signaling.Register{Identity: identity})
	return c
}

func TestRouter_Call_DeliveredToTargetOnly(t *testing.T) {
	f := newRouterFixture(t)
	f.expectUserLists(2)
	c1 := f.register("alice")
	c2 := f.register("bob")
	offer := map[string]any{"type": "offer", "sdp": "v=0"}

	// Expect bob's connection to receive exactly one incomingCall, and nothing else to be sent
	f.transport.EXPECT().
		Deliver(c2, signaling.EventIncomingCall, signaling.IncomingCallPayload{Caller: "alice", Offer: offer}).
		Times(1)

	f.router.Dispatch(c1, signaling.Call{Target: "bob", Offer: offer})
}

func TestRouter_Answer_Candidate_EndCall(t *testing.T) {
	f := newRouterFixture(t)
	f.expectUserLists(2)
	c1 := f.register("alice")
	c2 := f.register("bob")
	answer := map[string]any{"type": "answer", "sdp": "v=0"}
	candidate := map[string]any{"candidate": "candidate:1 1 udp 1 10.0.0.1 5000 typ host"}

	gomock.InOrder(
		f.transport.EXPECT().
			Deliver(c1, signaling.EventCallAnswered, signaling.CallAnsweredPayload{Answerer: "bob", Answer: answer}),
		f.transport.EXPECT().
			Deliver(c1, signaling.EventRelayedCandidate, signaling.RelayedCandidatePayload{Sender: "bob", Candidate: candidate}),
		f.transport.EXPECT().
			Deliver(c2, signaling.EventCallEnded, signaling.CallEndedPayload{Caller: "alice"}),
	)

	f.router.Dispatch(c2, signaling.Answer{Target: "alice", Answer: answer})
	f.router.Dispatch(c2, signaling.ICECandidate{Target: "alice", Candidate: candidate})
	f.router.Dispatch(c1, signaling.EndCall{Target: "bob"})
}

func TestRouter_UnresolvedTarget_IsSilent(t *testing.T) {
	f := newRouterFixture(t)
	f.expectUserLists(1)
	c1 := f.register("alice")

	// No Deliver is expected; any call fails the test.
	f.router.Dispatch(c1, signaling.Call{Target: "ghost", Offer: "x"})
	f.router.Dispatch(c1, signaling.Answer{Target: "ghost", Answer: "x"})
	f.router.Dispatch(c1, signaling.ICECandidate{Target: "ghost", Candidate: "x"})
	f.router.Dispatch(c1, signaling.EndCall{Target: "ghost"})
	f.router.Dispatch(c1, signaling.Call{Offer: "missing target"})
}

func TestRouter_EmptyRegister_IsNoop(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	// No Broadcast is expected.
	f.register("")

	req.Zero(f.registry.Len())
}

func TestRouter_Closed_BroadcastsRemainingUsers(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.expectUserLists(3)

	c1 := f.register("alice")
	f.register("bob")
	f.router.Dispatch(c1, signaling.Closed{})

	req.Len(f.lists, 3)
	req.ElementsMatch([]string{"alice"}, f.lists[0])
	req.ElementsMatch([]string{"alice", "bob"}, f.lists[1])
	req.ElementsMatch([]string{"bob"}, f.lists[2])
}

func TestRouter_Closed_UnboundConn_IsNoop(t *testing.T) {
	f := newRouterFixture(t)

	// No Broadcast is expected.
	f.router.Dispatch(signaling.NewConn(uuid.New()), signaling.Closed{})
}

func TestRouter_Closed_SupersededConn_KeepsNewEntry(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.expectUserLists(4)

	old := f.register("alice")
	current := f.register("alice")
	caller := f.register("bob")
	f.router.Dispatch(old, signaling.Closed{})

	// Then calls to alice reach the newer connection
	f.transport.EXPECT().
		Deliver(current, signaling.EventIncomingCall, signaling.IncomingCallPayload{Caller: "bob", Offer: "sdp"})
	f.router.Dispatch(caller, signaling.Call{Target: "alice", Offer: "sdp"})

	req.ElementsMatch([]string{"alice", "bob"}, f.lists[3])
}
