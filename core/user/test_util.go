package user

import "github.com/swanstudios/studio/core"

// NewServiceMock returns a Service running its background work (password reset emails) inline,
// so tests can assert on sent messages right after a call.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	svc := NewService(repo, mailSvc, conf).(*service)
	svc.spawn = func(fn func()) { fn() }
	return svc
}
