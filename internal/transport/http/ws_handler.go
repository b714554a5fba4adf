package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/session"
	"redlight-quiz/internal/store"
	"github.com/gorilla/websocket"
)

// WSHandler runs one quiz session per websocket connection: commands and
// raw input reports stream in, state snapshots stream out.
type WSHandler struct {
	store        store.RecordStore
	questions    session.QuestionSource
	registry     *session.Registry
	duration     time.Duration
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewWSHandler(rs store.RecordStore, questions session.QuestionSource, registry *session.Registry, duration, pollInterval time.Duration) *WSHandler {
	return &WSHandler{
		store:        rs,
		questions:    questions,
		registry:     registry,
		duration:     duration,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option int `json:"option"`
}

type inputPayload struct {
	Kind string `json:"kind"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and drives the player's session until it
// submits or the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	feed := session.NewFeed()
	sess := session.New(identity, session.Config{
		Store:        h.store,
		Questions:    h.questions,
		Input:        feed,
		Duration:     h.duration,
		PollInterval: h.pollInterval,
	})

	if err := h.registry.Add(identity.UserID, sess); err != nil {
		if errors.Is(err, domain.ErrSessionInProgress) {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "session already in progress"}})
			return
		}
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.registry.Remove(identity.UserID)
	defer sess.Stop()

	updates, cancelSub := sess.Subscribe()
	defer cancelSub()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// sendError must not block once the writer has exited, or a burst of
	// malformed messages would wedge the read loop.
	sendError := func(message string) {
		select {
		case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}:
		case <-writerDone:
		}
	}

	if err := sess.Start(r.Context()); err != nil {
		// Transient errors stay at diagnostic level; the player only ever
		// sees a generic blocking message.
		sendError("unable to start quiz")
	} else {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			switch inbound.Type {
			case "select":
				var payload selectPayload
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					sendError("invalid select payload")
					continue
				}
				sess.SelectOption(payload.Option)
			case "advance":
				sess.Advance()
			case "input":
				var payload inputPayload
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					continue
				}
				feed.Publish(session.InputEvent{Kind: session.InputKind(payload.Kind)})
			default:
				sendError("unsupported message type")
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
