// Package notification decodes and authenticates Travis CI webhook
// notifications.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/webhook"
)

const (
	// PayloadFormField is the form field that holds the JSON notification.
	PayloadFormField = "payload"

	// SignatureHeader holds the base64 encoded signature of the payload.
	SignatureHeader = "Signature"

	// RepoSlugHeader holds the "owner/name" of the repository that was built.
	RepoSlugHeader = "Travis-Repo-Slug"
)

// TravisPublicKeyPEM is the key Travis CI signs notifications with, as
// published at https://api.travis-ci.com/config.
const TravisPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAvtjdLkS+FP+0fPC09j25
y/PiuYDDivIT86COVedvlElk99BBYTrqNaJybxjXbIZ1Q6xFNhOY+iTcBr4E1zJu
tizF3Xi0V9tOuP/M8Wn4Y/1lCWbQKlWrNQuqNBmhovF4K3mDCYswVbpgTmp+JQYu
Bm9QMdieZMNry5s6aiMA9aSjDlNyedvSENYo18F+NYg1J0C0JiPYTxheCb4optr1
5xNzFKhAkuGs4XTOA5C7Q06GCKtDNf44s/CVE30KODUxBi0MCKaxiXw/yy55zxX2
/YdGphIyQiA5iO1986ZmZCLLW8udz9uhW5jUr3Jlp9LbmphAC61bVSf4ou2YsJaN
0QIDAQAB
-----END PUBLIC KEY-----`

var (
	// ErrMalformedPayload is returned by Decode if the payload is not a
	// valid notification.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrRepoNotAllowed is returned by CheckRepo. It wraps
	// webhook.ErrAuthFailure.
	ErrRepoNotAllowed = fmt.Errorf("repository not allowed: %w", webhook.ErrAuthFailure)
)

// NewVerifier returns a verifier for the compiled-in Travis key, or for the
// PEM file at publicKeyFile if it isn't empty.
func NewVerifier(publicKeyFile string) (*webhook.RSAVerifier, error) {
	if publicKeyFile != "" {
		pub, err := webhook.ReadRSAPublicKeyFile(publicKeyFile)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		return webhook.NewRSAVerifier(pub), nil
	}
	pub, err := webhook.ParseRSAPublicKeyPEM([]byte(TravisPublicKeyPEM))
	if err != nil {
		return nil, skerr.Wrapf(err, "parsing compiled-in Travis key")
	}
	return webhook.NewRSAVerifier(pub), nil
}

// Notification is the subset of a Travis build notification needed to
// schedule a benchmark run.
type Notification struct {
	Commit            string  `json:"commit"`
	Branch            string  `json:"branch"`
	PullRequest       bool    `json:"pull_request"`
	PullRequestNumber *int    `json:"pull_request_number"`
	PullRequestTitle  *string `json:"pull_request_title"`
	HeadCommit        string  `json:"head_commit"`
}

// CommitID returns the commit to benchmark: HeadCommit for pull requests,
// Commit otherwise.
func (n Notification) CommitID() string {
	if n.PullRequest {
		return n.HeadCommit
	}
	return n.Commit
}

// wireNotification detects absent fields.
type wireNotification struct {
	Commit            *string `json:"commit"`
	Branch            *string `json:"branch"`
	PullRequest       *bool   `json:"pull_request"`
	PullRequestNumber *int    `json:"pull_request_number"`
	PullRequestTitle  *string `json:"pull_request_title"`
	HeadCommit        *string `json:"head_commit"`
}

func malformed(format string, args ...interface{}) error {
	return skerr.Wrapf(ErrMalformedPayload, format, args...)
}

// Decode parses the verified payload. It returns an error wrapping
// ErrMalformedPayload if a required field is absent or has the wrong type.
//
// commit, branch and pull_request are always required. For pull requests
// head_commit is also required. pull_request_number may be absent or null.
func Decode(payload []byte) (Notification, error) {
	var w wireNotification
	if err := json.Unmarshal(payload, &w); err != nil {
		return Notification{}, malformed("%s", err)
	}
	if w.Commit == nil {
		return Notification{}, malformed("missing %q", "commit")
	}
	if w.Branch == nil {
		return Notification{}, malformed("missing %q", "branch")
	}
	if w.PullRequest == nil {
		return Notification{}, malformed("missing %q", "pull_request")
	}
	n := Notification{
		Commit:            *w.Commit,
		Branch:            *w.Branch,
		PullRequest:       *w.PullRequest,
		PullRequestNumber: w.PullRequestNumber,
		PullRequestTitle:  w.PullRequestTitle,
	}
	if w.HeadCommit != nil {
		n.HeadCommit = *w.HeadCommit
	}
	if n.PullRequest && n.HeadCommit == "" {
		return Notification{}, malformed("pull request without %q", "head_commit")
	}
	return n, nil
}

// CheckRepo returns ErrRepoNotAllowed if allowed is not empty and slug isn't
// in it. Slugs are compared case-insensitively.
func CheckRepo(slug string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(a, slug) {
			return nil
		}
	}
	return skerr.Wrapf(ErrRepoNotAllowed, "%q", slug)
}
