package signaling

import (
	"log/slog"
	"sync"

	callrelay "github.com/BrownNPC/CallRelay"
)

// Router routes call-control events between identities.
//
// It keeps no state besides the registry and the version of the last user list
// it published.
type Router struct {
	registry  *Registry
	transport Transport
	log       *slog.Logger

	presenceMu  sync.Mutex
	lastVersion uint64
}

// a nil log will use slog.Default().
func NewRouter(registry *Registry, transport Transport, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		registry:  registry,
		transport: transport,
		log:       log,
	}
}

// Dispatch handles one event from src.
//
// Events from one connection must be dispatched in order, from a single goroutine.
func (rt *Router) Dispatch(src *Conn, ev Event) {
	switch ev := ev.(type) {
	case Register:
		if snap, ok := rt.registry.Register(ev.Identity, src); ok {
			rt.log.Info("user registered", "identity", ev.Identity, "conn", src.ID())
			rt.publish(snap)
		}
	case Call:
		rt.forward(src, ev.Target, EventIncomingCall, IncomingCallPayload{
			Caller: src.Identity(),
			Offer:  ev.Offer,
		})
	case Answer:
		rt.forward(src, ev.Target, EventCallAnswered, CallAnsweredPayload{
			Answerer: src.Identity(),
			Answer:   ev.Answer,
		})
	case ICECandidate:
		rt.forward(src, ev.Target, EventRelayedCandidate, RelayedCandidatePayload{
			Sender:    src.Identity(),
			Candidate: ev.Candidate,
		})
	case EndCall:
		rt.forward(src, ev.Target, EventCallEnded, CallEndedPayload{
			Caller: src.Identity(),
		})
	case Closed:
		identity := src.Identity()
		if snap, ok := rt.registry.Remove(src); ok {
			rt.log.Info("user disconnected", "identity", identity, "conn", src.ID())
			rt.publish(snap)
		}
	default:
		rt.log.Error("unhandled event", "kind", ev.Kind(), "conn", src.ID())
	}
}

// forward delivers payload to target, or drops it when target is not registered.
func (rt *Router) forward(src *Conn, target callrelay.Identity, event string, payload any) {
	dst, ok := rt.registry.Resolve(target)
	if !ok {
		rt.log.Debug("target not registered, dropping", "event", event, "target", target, "from", src.ID())
		return
	}
	rt.log.Debug("forwarding", "event", event, "from", src.Identity(), "target", target)
	rt.transport.Deliver(dst, event, payload)
}

// publish broadcasts the user list in snap unless a newer list already went out.
func (rt *Router) publish(snap Snapshot) {
	rt.presenceMu.Lock()
	defer rt.presenceMu.Unlock()
	if snap.Version <= rt.lastVersion {
		return
	}
	rt.lastVersion = snap.Version
	users := make([]string, len(snap.Identities))
	for i, id := range snap.Identities {
		users[i] = string(id)
	}
	rt.transport.Broadcast(EventUpdateUserList, users)
}
