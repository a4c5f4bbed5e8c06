package orchestration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
)

// ErrNoToken is returned when every token source came up empty.
var ErrNoToken = errors.New("failed to get k3s join token")

const serverTokenPath = "/var/lib/rancher/k3s/server/node-token"

// tokenSource is one way of obtaining the join token.
type tokenSource struct {
	name  string
	fetch func(ctx context.Context) (string, error)
}

// TokenBroker retrieves the join token, trying its sources in order.
type TokenBroker struct {
	sources []tokenSource
}

// NewTokenBroker creates a broker trying, in order: localPath (when set), a
// copy in the master user's home directory, and a privileged read of the
// server token on the master.
func NewTokenBroker(localPath string, sess Session) *TokenBroker {
	var sources []tokenSource
	if localPath != "" {
		sources = append(sources, tokenSource{
			name: "local file " + localPath,
			fetch: func(context.Context) (string, error) {
				// #nosec G304
				data, err := os.ReadFile(localPath)
				return string(data), err
			},
		})
	}
	sources = append(sources,
		tokenSource{name: "master home copy", fetch: remoteRead(sess, "cat ~/node-token")},
		tokenSource{name: "master server token", fetch: remoteRead(sess, "sudo cat "+serverTokenPath)},
	)
	return &TokenBroker{sources: sources}
}

func remoteRead(sess Session, cmd string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		res := sess.Execute(ctx, cmd)
		if !res.OK() {
			return "", errors.New(res.Summary())
		}
		return res.Stdout, nil
	}
}

// GetJoinToken returns the first non-empty token.
func (b *TokenBroker) GetJoinToken(ctx context.Context) (string, error) {
	log := logr.FromContextOrDiscard(ctx).WithName("token")

	var errs []error
	for _, src := range b.sources {
		token, err := src.fetch(ctx)
		token = strings.TrimSpace(token)
		switch {
		case err != nil:
			log.V(1).Info("token source failed", "source", src.name, "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
		case token == "":
			errs = append(errs, fmt.Errorf("%s: empty token", src.name))
		default:
			log.Info("retrieved join token", "source", src.name)
			return token, nil
		}
	}
	return "", fmt.Errorf("%w: %w", ErrNoToken, errors.Join(errs...))
}
