// Package protocol defines the wire contract between a client and the
// session dispatcher: the inbound message shapes accepted from a
// connection and the outbound message shapes emitted to one.
package protocol

import "encoding/json"

// Inbound message type discriminators (client -> server).
const (
	TypePing           = "ping"
	TypeCreateRoom     = "create-room"
	TypeJoinRoom       = "join-room"
	TypeLeaveRoom      = "leave-room"
	TypeMakeMove       = "make-move"
	TypeGetGameState   = "get-game-state"
	TypeCastReplayVote = "cast-replay-vote"
	TypeReconnect      = "reconnect"
)

// Outbound message type discriminators (server -> client).
const (
	TypePong                = "pong"
	TypeRoomCreated         = "room-created"
	TypeRoomJoined          = "room-joined"
	TypePlayerJoined        = "player-joined"
	TypeRoomError           = "room-error"
	TypeJoinError           = "join-error"
	TypeGameStarted         = "game-started"
	TypeGameUpdated         = "game-updated"
	TypeGameEnded           = "game-ended"
	TypeMoveError           = "move-error"
	TypeTimerUpdate         = "timer-update"
	TypeTurnSkipped         = "turn-skipped"
	TypePlayerEliminated    = "player-eliminated"
	TypePlayerDisconnected  = "player-disconnected"
	TypeHostTransferred     = "host-transferred"
	TypeReplayVotingStarted = "replay-voting-started"
	TypeReplayVoteUpdated   = "replay-vote-updated"
	TypeReplayRejected      = "replay-rejected"
	TypeReplayTimeout       = "replay-timeout"
	TypeGameRestarted       = "game-restarted"
	TypeGameState           = "game-state"
)

// Inbound is the envelope every client message decodes into. Only the
// fields relevant to Type are populated; the rest are the JSON
// zero-value.
type Inbound struct {
	Type       string `json:"type"`
	RoomID     string `json:"roomId,omitempty"`
	SeatID     string `json:"seatId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	RoomName   string `json:"roomName,omitempty"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
	Capacity   int    `json:"capacity,omitempty"`
	Code       string `json:"code,omitempty"`
	AccessCode string `json:"accessCode,omitempty"`
	CellIndex  int    `json:"cellIndex"`
	Size       string `json:"size,omitempty"`
	Vote       bool   `json:"vote,omitempty"`
}

// Outbound is a type-tagged, free-form server->client message. Fields
// carries the payload specific to Type; MarshalJSON flattens it
// alongside "type" into one flat JSON object without a combinatorial
// struct per message type.
type Outbound struct {
	Type   string
	Fields map[string]any
}

// M is a terse constructor for Outbound.Fields literals.
type M = map[string]any

// Msg builds an Outbound of the given type with the given fields.
func Msg(msgType string, fields M) Outbound {
	return Outbound{Type: msgType, Fields: fields}
}

// MarshalJSON flattens {type, ...Fields} into one JSON object.
func (o Outbound) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(o.Fields)+1)
	for k, v := range o.Fields {
		merged[k] = v
	}
	merged["type"] = o.Type
	return json.Marshal(merged)
}

// DecodeInbound parses one client message envelope.
func DecodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, err
	}
	return in, nil
}

// Error builds one of the two error envelopes the wire contract
// specifies (room-error, join-error) or, for anything mid-game, the
// generic move-error — the Dispatcher picks msgType based on which
// inbound operation failed.
func Error(msgType, code, message string) Outbound {
	return Msg(msgType, M{"code": code, "message": message})
}
