//go:build !unix

package service

import "errors"

var ErrAlreadyRunning = errors.New("another patterngrep service is already running")

// instanceLock is a no-op where flock is unavailable.
type instanceLock struct{}

func acquireInstanceLock(string) (*instanceLock, error) { return &instanceLock{}, nil }

func (l *instanceLock) release() {}
