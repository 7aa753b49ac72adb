//go:build linux
// +build linux

// File: reactor/poll_linux.go
// Author: momentics <momentics@gmail.com>
//
// poll(2) backend.

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type pollSet struct {
	pfds []unix.PollFd
}

func (s *pollSet) rebuild(keys []uint64, fds map[uint64]int) {
	s.pfds = s.pfds[:0]
	for _, k := range keys {
		s.pfds = append(s.pfds, unix.PollFd{Fd: int32(fds[k]), Events: unix.POLLIN})
	}
}

func (s *pollSet) wait(timeout time.Duration, keys []uint64, dst []Event) ([]Event, error) {
	n, err := unix.Poll(s.pfds, pollMillis(timeout))
	if err == unix.EINTR {
		return dst, nil
	}
	if err != nil {
		return dst, err
	}
	for i := 0; i < len(s.pfds) && n > 0; i++ {
		re := s.pfds[i].Revents
		if re == 0 {
			continue
		}
		n--
		dst = append(dst, Event{
			Key:      keys[i],
			Readable: re&unix.POLLIN != 0,
			Hangup:   re&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0,
		})
	}
	return dst, nil
}
