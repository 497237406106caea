package signaling

import (
	"testing"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/pion/ice/v4"
	"github.com/stretchr/testify/require"
)

func TestParseICECandidate(t *testing.T) {
	req := require.New(t)
	host, err := ice.NewCandidateHost(&ice.CandidateHostConfig{
		Network:   "udp",
		Address:   "10.0.0.2",
		Port:      40000,
		Component: 1,
	})
	req.NoError(err)
	raw := "candidate:" + host.Marshal()

	for _, payload := range []any{raw, host.Marshal(), map[string]any{"candidate": raw, "sdpMid": "0"}} {
		cand, err := ParseICECandidate(payload)
		req.NoError(err)
		req.Equal("10.0.0.2", cand.Address())
		req.Equal(40000, cand.Port())
		req.Equal(ice.CandidateTypeHost, cand.Type())
	}

	_, err = ParseICECandidate(map[string]any{"sdpMid": "0"})
	req.Error(err)
	_, err = ParseICECandidate("candidate:garbage")
	req.Error(err)
}

func TestParseServerEvent(t *testing.T) {
	req := require.New(t)

	ev, ok := parseServerEvent(Frame{Event: EventUpdateUserList, Data: []any{"alice", 3.0, "bob"}})
	req.True(ok)
	req.Equal(UserList{"alice", "bob"}, ev)

	ev, ok = parseServerEvent(Frame{Event: EventCallEnded, Data: map[string]any{"caller": "alice"}})
	req.True(ok)
	req.Equal(CallEnded{Caller: callrelay.Identity("alice")}, ev)

	_, ok = parseServerEvent(Frame{Event: "somethingElse"})
	req.False(ok)
}
