package nodeagent

import (
	"context"
)

// runLoop is the Running state's main epoll thread: it waits on every
// armed task's pidfd and treats readiness as process termination: a
// terminated task is logged and removed from the set, never restarted.
// It returns once ctx is done or Shutdown is called.
func (a *Agent) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.shutdown:
			return
		default:
		}

		ready, err := a.epoller.Wait(epollPollTimeout)
		if err != nil {
			a.logger.Warn().Err(err).Msg("epoll wait failed")
			continue
		}
		for _, fd := range ready {
			a.handleTermination(fd)
		}
	}
}

func (a *Agent) handleTermination(pidfd int) {
	a.mu.Lock()
	var name string
	for n, rec := range a.records {
		if rec.Pidfd == pidfd {
			name = n
			break
		}
	}
	if name != "" {
		delete(a.records, name)
	}
	a.mu.Unlock()

	if name == "" {
		return
	}

	a.logger.Warn().Str("task_name", name).Msg("task process terminated, removing from schedule without restart")
	_ = a.epoller.Remove(pidfd)
	_ = a.platform.ClosePidfd(pidfd)
}
