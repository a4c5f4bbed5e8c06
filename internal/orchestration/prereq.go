package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/edgefleet/internal/registry"
)

// prerequisite is a host package installed only when its check fails.
type prerequisite struct {
	name    string
	check   string
	install []string
}

var (
	prereqCurl = prerequisite{
		name:  "curl",
		check: "command -v curl",
		install: []string{
			"sudo apt-get update -y",
			"sudo apt-get install -y ca-certificates curl wget",
		},
	}

	prereqPython = prerequisite{
		name:  "python3",
		check: "command -v python3",
		install: []string{
			"sudo apt-get update -y",
			"sudo apt-get install -y python3 python3-pip",
		},
	}

	// Ubuntu edge servers use the upstream docker-ce apt repository.
	prereqDockerUbuntu = prerequisite{
		name:  "docker",
		check: "command -v docker",
		install: []string{
			"sudo install -m 0755 -d /etc/apt/keyrings",
			"sudo curl -fsSL https://download.docker.com/linux/ubuntu/gpg -o /etc/apt/keyrings/docker.asc",
			"sudo chmod a+r /etc/apt/keyrings/docker.asc",
			`echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/ubuntu $(. /etc/os-release && echo "$VERSION_CODENAME") stable" | sudo tee /etc/apt/sources.list.d/docker.list > /dev/null`,
			"sudo apt-get update -y",
			"sudo apt-get install -y docker-ce docker-ce-cli containerd.io docker-buildx-plugin docker-compose-plugin",
			"sudo usermod -aG docker $USER",
			"sudo systemctl enable docker",
			"sudo systemctl start docker",
		},
	}

	// Constrained devices use the convenience script, which handles arm.
	prereqDockerScript = prerequisite{
		name:  "docker",
		check: "command -v docker",
		install: []string{
			"curl -fsSL https://get.docker.com -o get-docker.sh",
			"sudo sh get-docker.sh",
			"sudo usermod -aG docker $USER",
			"sudo systemctl enable docker",
			"sudo systemctl start docker",
		},
	}
)

// prerequisitesFor returns the ordered prerequisites of a node kind.
func prerequisitesFor(kind registry.Kind) []prerequisite {
	if kind == registry.KindConstrained {
		return []prerequisite{prereqCurl, prereqDockerScript, prereqPython}
	}
	return []prerequisite{prereqCurl, prereqDockerUbuntu, prereqPython}
}

// probe runs a check that always exits zero and reports whether it held.
// Checks never go through the non-zero-exit retry path.
func probe(ctx context.Context, sess Session, check string) (bool, error) {
	res := sess.Execute(ctx, fmt.Sprintf("if %s >/dev/null 2>&1; then echo present; else echo missing; fi", check))
	if !res.OK() {
		return false, fmt.Errorf("check %q failed: %s", check, res.Summary())
	}
	return strings.TrimSpace(res.Stdout) == "present", nil
}

// ensure installs p unless its check already passes. It reports whether an
// install ran.
func ensure(ctx context.Context, sess Session, p prerequisite) (bool, error) {
	present, err := probe(ctx, sess, p.check)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}
	for _, cmd := range p.install {
		if res := sess.Execute(ctx, cmd); !res.OK() {
			return true, fmt.Errorf("failed to install %s: %s", p.name, res.Summary())
		}
	}
	return true, nil
}
