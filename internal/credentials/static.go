package credentials

import "flowvc/internal/vc"

// StaticSource returns fixed credentials. Used by tests and by
// deployments that inject credentials through the environment.
type StaticSource struct {
	Creds vc.Credentials
}

var _ vc.CredentialSource = (*StaticSource)(nil)

func NewStaticSource(creds vc.Credentials) *StaticSource {
	return &StaticSource{Creds: creds}
}

func (s *StaticSource) Resolve(projectID string) (vc.Credentials, error) {
	return s.Creds, nil
}
