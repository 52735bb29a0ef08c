package mcp

import (
	"context"
	"time"

	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/schedule"
	"github.com/HyphaGroup/gevulot/internal/session"
)

// scheduleRunTimeout bounds a single schedule run end to end
const scheduleRunTimeout = 5 * time.Minute

// executeSchedule is called by the schedule runner to run one schedule.
// It resolves the session per the schedule's session behavior, submits
// the prompt in poll mode and waits for the final answer. On failure it
// still reports whatever session and job the run got as far as, so the
// execution record keeps the partial trail.
func (s *Server) executeSchedule(ctx context.Context, sched *schedule.Schedule) (*schedule.ExecutionResult, error) {
	sess, err := s.scheduleSession(sched)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, scheduleRunTimeout)
	defer cancel()

	req, err := sess.Ask(runCtx, sched.Prompt, session.ModePoll)
	if err != nil {
		return &schedule.ExecutionResult{SessionID: sess.ID}, err
	}

	output, err := req.Wait(runCtx)
	return &schedule.ExecutionResult{
		SessionID: sess.ID,
		JobID:     req.JobID,
		Output:    output,
	}, err
}

// scheduleSession picks the session a run submits to. Resume behavior
// reuses the pinned session while it is alive and idle; anything else
// gets a fresh session. The runner pins whichever session the run
// reports back.
func (s *Server) scheduleSession(sched *schedule.Schedule) (*session.Session, error) {
	if sched.SessionBehavior == schedule.SessionResume && sched.SessionID != "" {
		if sess, ok := s.manager.Get(sched.SessionID); ok {
			if sess.State() == session.StateActive && !sess.Busy() {
				return sess, nil
			}
			logger.Info("Schedule %s: pinned session %s not reusable (state=%s, busy=%v), creating fresh",
				sched.ID, sched.SessionID, sess.State(), sess.Busy())
		}
	}
	return s.manager.Create()
}
