package session

func (s *Session) startFrontendReadsOnly() {
	s.frontendReading, s.frontendWriting = true, false
	s.armFrontend(ioEvents(true, false))
}

func (s *Session) startFrontendWritesOnly() {
	s.frontendReading, s.frontendWriting = false, true
	s.armFrontend(ioEvents(false, true))
}

func (s *Session) wakeFrontendForWriting() {
	s.frontendWriting = true
	s.armFrontend(ioEvents(s.frontendReading, true))
}

func (s *Session) stopFrontendReads() {
	s.frontendReading = false
	s.armFrontend(ioEvents(false, s.frontendWriting))
}

func (s *Session) stopFrontendWrites() {
	s.frontendWriting = false
	s.armFrontend(ioEvents(s.frontendReading, false))
}

func (s *Session) startBackendReadsOnly() {
	s.backendReading, s.backendWriting = true, false
	s.armBackend(ioEvents(true, false))
}

func (s *Session) startBackendWritesOnly() {
	s.backendReading, s.backendWriting = false, true
	s.armBackend(ioEvents(false, true))
}

func (s *Session) wakeBackendForWriting() {
	s.backendWriting = true
	s.armBackend(ioEvents(s.backendReading, true))
}

func (s *Session) stopBackendReads() {
	s.backendReading = false
	s.armBackend(ioEvents(false, s.backendWriting))
}

func (s *Session) stopBackendWrites() {
	s.backendWriting = false
	s.armBackend(ioEvents(s.backendReading, false))
}
