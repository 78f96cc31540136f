package keyring

import (
	"github.com/MotherSphere/GitSpace-sub000/internal/audit"
)

// AuditedStore wraps a Store and records every token access to the audit
// log. It does not change Store semantics: absence and unavailability pass
// through untouched.
type AuditedStore struct {
	inner Store
	audit *audit.Logger
	actor string // "cli" or "app"
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner: inner,
		audit: auditLog,
		actor: actor,
	}
}

func (s *AuditedStore) Set(account, value string) error {
	if err := s.inner.Set(account, value); err != nil {
		return err
	}

	// Audit logging is best-effort; a failure to log never blocks the write.
	s.audit.Log(audit.Entry{
		Action: audit.ActionTokenWrite,
		Host:   account,
		Actor:  s.actor,
	})
	return nil
}

func (s *AuditedStore) Get(account string) (string, error) {
	val, err := s.inner.Get(account)
	if err != nil {
		return "", err
	}

	// Audit logging is best-effort; a failure to log never blocks the read.
	s.audit.Log(audit.Entry{
		Action: audit.ActionTokenRead,
		Host:   account,
		Actor:  s.actor,
	})
	return val, nil
}

func (s *AuditedStore) Delete(account string) error {
	if err := s.inner.Delete(account); err != nil {
		return err
	}

	// Audit logging is best-effort; a failure to log never blocks the delete.
	s.audit.Log(audit.Entry{
		Action: audit.ActionTokenDelete,
		Host:   account,
		Actor:  s.actor,
	})
	return nil
}
