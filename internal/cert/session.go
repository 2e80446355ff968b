package cert

// Session is the mutable CSR model a caller edits field by field.
type Session struct {
	Subject Subject
	SANs    SANList
	Key     KeyParams
	Digest  string
}

// NewSession returns an empty session with the given key size.
func NewSession(keyBits int) *Session {
	if keyBits == 0 {
		keyBits = DefaultKeySize
	}
	return &Session{Key: KeyParams{Bits: keyBits}, Digest: DefaultDigest}
}

func (s *Session) SetField(f Field, value string) {
	s.Subject.SetField(f, value)
}

func (s *Session) AddSAN(t SANType, value string) error {
	return s.SANs.Add(t, value)
}

func (s *Session) RemoveSAN(index int) error {
	return s.SANs.Remove(index)
}

// RemoveLastSAN drops the most recently added SAN.
func (s *Session) RemoveLastSAN() error {
	return s.SANs.Remove(s.SANs.Len() - 1)
}

// Reset clears subject and SANs; key parameters are kept.
func (s *Session) Reset() {
	s.Subject = Subject{}
	s.SANs.Clear()
}

// Validate checks everything that must hold before a CSR command is built.
func (s *Session) Validate() error {
	if err := s.Subject.Validate(); err != nil {
		return err
	}
	return s.Key.Validate()
}

// Render returns the toolkit config for the current state. It is safe to call on
// every edit.
func (s *Session) Render() string {
	return RenderConfig(s.Subject, s.SANs.Entries(), s.Key, s.Digest)
}
