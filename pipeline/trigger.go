package pipeline

import "context"

// Trigger runs a forced pass on behalf of the file-change watcher. Triggers
// that arrive while a pass is in flight collapse into a single follow-up
// pass, so a burst of edits costs at most two runs.
func (s *Session) Trigger(ctx context.Context) {
	s.triggerMu.Lock()
	if s.running {
		s.pending = true
		s.triggerMu.Unlock()
		return
	}
	s.running = true
	s.triggerMu.Unlock()

	for {
		if _, err := s.Run(ctx, true); err != nil {
			s.logger.Error("triggered run failed", "error", err)
		}

		s.triggerMu.Lock()
		if !s.pending || ctx.Err() != nil {
			s.running = false
			s.pending = false
			s.triggerMu.Unlock()
			return
		}
		s.pending = false
		s.triggerMu.Unlock()
	}
}
