package wsgateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/logging"
)

// HandlerOptions configures the server side.
type HandlerOptions struct {
	Logger logging.Logger
	// CheckOrigin is passed to the upgrader. Nil accepts every origin.
	CheckOrigin func(r *http.Request) bool
	// Backlog is the number of outbound frames buffered per connection
	// before the connection is dropped.
	Backlog int
}

// Handler serves queries against host and streams its lifecycle events.
func Handler(host *effect.Host, optFns ...func(o *HandlerOptions)) http.Handler {
	opts := HandlerOptions{
		Logger:  logging.NoOpLogger{},
		Backlog: 256,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.Logger.Warn("wsgateway.upgrade_failed", "error", err)
			return
		}
		s := &session{
			host:   host,
			conn:   conn,
			out:    make(chan frame, opts.Backlog),
			done:   make(chan struct{}),
			logger: opts.Logger,
		}
		s.serve(r)
	})
}

type session struct {
	host   *effect.Host
	conn   *websocket.Conn
	out    chan frame
	done   chan struct{}
	once   sync.Once
	logger logging.Logger
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// send queues f for the writer. A connection that cannot keep up is dropped.
func (s *session) send(f frame) {
	select {
	case <-s.done:
	case s.out <- f:
	default:
		s.logger.Warn("wsgateway.backlog_full", "remote", s.conn.RemoteAddr().String())
		s.close()
	}
}

func (s *session) serve(r *http.Request) {
	defer s.close()

	unsubscribe := s.host.Bus().Subscribe(func(ev effect.Event) {
		s.send(frame{Event: ev.Name(), Data: ev.Data})
	})
	defer unsubscribe()

	go s.writeLoop()

	s.logger.Debug("wsgateway.connected", "remote", s.conn.RemoteAddr().String())
	for {
		var req frame
		if err := s.conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("wsgateway.read_failed", "error", err)
			}
			return
		}
		if req.ID == "" || req.Method == "" {
			continue
		}
		s.send(s.answer(r, req))
	}
}

func (s *session) answer(r *http.Request, req frame) frame {
	v, err := s.host.Query(r.Context(), req.Method)
	if err != nil {
		return frame{ID: req.ID, Error: err.Error()}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return frame{ID: req.ID, Error: err.Error()}
	}
	return frame{ID: req.ID, Result: b}
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case f := <-s.out:
			if err := s.conn.WriteJSON(f); err != nil {
				s.logger.Debug("wsgateway.write_failed", "error", err)
				s.close()
				return
			}
		}
	}
}
