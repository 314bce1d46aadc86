package adminapi

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/raftcore/pkg/raft"
)

// Service adapts one pkg/raft.Engine to the admin/inspection surface that
// cmd/raftctl drives: status, membership and command submission, none of
// which the engine exposes as a network service on its own.
//
// gRPC handlers run on pool goroutines, but every Engine method must only
// ever be called from the engine's single owning goroutine (pkg/raft/doc.go).
// Submit bridges the two: it runs fn on that goroutine and returns once fn
// has completed. cmd/raftd wires this to its own event loop; tests that
// construct a Service directly against a single-goroutine engine may pass
// a Submit that just calls fn() inline.
type Service struct {
	engine *raft.Engine
	log    zerolog.Logger
	submit func(fn func())

	// onAddServer, if set, is called after a successful AddServer with the
	// id/address the caller just registered. cmd/raftd wires this to its
	// transport's UpdatePeer so the leader can actually dial a server it
	// just admitted — the engine's Configuration has no transport of its
	// own to do this itself.
	onAddServer func(id, address string)
}

// NewService wraps engine for gRPC registration.
func NewService(engine *raft.Engine, submit func(fn func()), logger zerolog.Logger) *Service {
	return &Service{engine: engine, submit: submit, log: logger.With().Str("component", "adminapi").Logger()}
}

// OnAddServer registers fn to be called with (id, address) whenever
// AddServer succeeds.
func (s *Service) OnAddServer(fn func(id, address string)) {
	s.onAddServer = fn
}

// run executes fn on the engine's owning goroutine and waits for it.
func (s *Service) run(fn func()) {
	done := make(chan struct{})
	s.submit(func() {
		fn()
		close(done)
	})
	<-done
}

func (s *Service) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	resp := &StatusResponse{}
	s.run(func() {
		leaderID, leaderAddr := s.engine.LeaderHint()
		resp.ID = s.engine.ID()
		resp.Role = s.engine.Role().String()
		resp.CurrentTerm = s.engine.CurrentTerm()
		resp.CommitIndex = s.engine.CommitIndex()
		resp.LastApplied = s.engine.LastApplied()
		resp.LeaderID = leaderID
		resp.LeaderAddr = leaderAddr
	})
	return resp, nil
}

func (s *Service) Servers(_ context.Context, _ *ServersRequest) (*ServersResponse, error) {
	resp := &ServersResponse{}
	s.run(func() {
		conf := s.engine.Configuration()
		for _, srv := range conf.Servers {
			resp.Servers = append(resp.Servers, ServerInfo{ID: srv.ID, Address: srv.Address, Voting: srv.Voting})
		}
	})
	return resp, nil
}

func (s *Service) Apply(_ context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	resp := &ApplyResponse{}
	applied := make(chan error, 1)
	s.run(func() {
		if err := s.engine.ApplyRequest(req.Payload, func(err error) { applied <- err }); err != nil {
			applied <- err
		}
	})
	if err := <-applied; err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Service) AddServer(_ context.Context, req *AddServerRequest) (*Ack, error) {
	resp := &Ack{}
	s.run(func() {
		if err := s.engine.AddServer(req.ID, req.Address); err != nil {
			resp.Error = err.Error()
		}
	})
	if resp.Error == "" && s.onAddServer != nil {
		s.onAddServer(req.ID, req.Address)
	}
	return resp, nil
}

func (s *Service) RemoveServer(_ context.Context, req *RemoveServerRequest) (*Ack, error) {
	resp := &Ack{}
	s.run(func() {
		if err := s.engine.RemoveServer(req.ID); err != nil {
			resp.Error = err.Error()
		}
	})
	return resp, nil
}

func (s *Service) Promote(_ context.Context, req *PromoteRequest) (*Ack, error) {
	resp := &Ack{}
	s.run(func() {
		if err := s.engine.Promote(req.ID); err != nil {
			resp.Error = err.Error()
		}
	})
	return resp, nil
}
