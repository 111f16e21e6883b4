package sessionstore

import (
	"sync"

	domainSession "github.com/omnidesk/channeledge/domains/session"
)

// Memory keeps credential sessions in process memory. Sessions are created
// at login, mutated by the token usecase on refresh and destroyed at logout.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*domainSession.CredentialSession
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*domainSession.CredentialSession)}
}

func (m *Memory) Get(id string) (*domainSession.CredentialSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (m *Memory) Put(s *domainSession.CredentialSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.sessions[s.ID] = &cp
}

func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
}
