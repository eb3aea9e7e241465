// Package ws adapts the coder/websocket transport to a Dispatcher: one
// connection wired to the Dispatcher, which resolves the connection's
// room binding dynamically as create-room/join-room messages arrive.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/protocol"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
	outboxSize   = 32
)

// Dispatcher is the subset of session.Dispatcher the handler needs;
// declared here so this package doesn't import session directly and
// gains no opinion about how routing works.
type Dispatcher interface {
	RegisterConn(connID string, outbox chan<- protocol.Outbound, closeFn func(reason string))
	UnregisterConn(connID string)
	HandleInbound(ctx context.Context, connID string, raw []byte)
}

// Handler upgrades the request to a websocket and pumps messages
// through d for the connection's lifetime.
func Handler(d Dispatcher, logger *zap.Logger, connIDGen func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			if logger != nil {
				logger.Debug("websocket accept failed", zap.Error(err))
			}
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := connIDGen()
		outbox := make(chan protocol.Outbound, outboxSize)

		closeOnce := make(chan struct{})
		var closeOnceGuard sync.Once
		closeFn := func(reason string) {
			closeOnceGuard.Do(func() {
				close(closeOnce)
				// Closing the socket also fails the pending Read, so the
				// reader loop exits and the normal disconnect path runs.
				go func() { _ = conn.Close(websocket.StatusPolicyViolation, reason) }()
			})
		}

		d.RegisterConn(connID, outbox, closeFn)
		defer d.UnregisterConn(connID)

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case out, ok := <-outbox:
					if !ok {
						return
					}
					payload, err := json.Marshal(out)
					if err != nil {
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					werr := conn.Write(ctx, websocket.MessageText, payload)
					cancel()
					if werr != nil {
						return
					}
				case <-closeOnce:
					return
				case <-writeCtx.Done():
					return
				}
			}
		}()

		for {
			readCtx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(readCtx)
			cancel()
			if err != nil {
				break
			}
			d.HandleInbound(r.Context(), connID, data)
		}

		writeCancel()
		<-writerDone
	}
}
