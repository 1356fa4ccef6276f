package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/docindex/docindex/internal/errors"
)

// commitPattern recognizes commit identifiers: a 7 to 40 character hex
// string. Anything else is treated as a branch or tag name.
var commitPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// gitCheckout clones a repository into an ephemeral directory and
// returns the working copy path with a cleanup func. Branch and tag
// refs use a shallow clone; commit refs need a full clone followed by
// a detached checkout. Hooks are disabled for every invocation.
func gitCheckout(ctx context.Context, url, ref string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "docindex-git-*")
	if err != nil {
		return "", nil, errors.Fetch("creating git checkout directory", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	isCommit := ref != "" && commitPattern.MatchString(strings.ToLower(ref))

	args := []string{"clone", "-c", "core.hooksPath=/dev/null", "--quiet"}
	if !isCommit {
		args = append(args, "--depth", "1")
		if ref != "" {
			args = append(args, "--branch", ref)
		}
	}
	args = append(args, url, dir)

	if err := runGit(ctx, "", args...); err != nil {
		cleanup()
		return "", nil, err
	}

	if isCommit {
		if err := runGit(ctx, dir, "-c", "core.hooksPath=/dev/null", "checkout", "--quiet", "--detach", ref); err != nil {
			cleanup()
			return "", nil, err
		}
	}
	return dir, cleanup, nil
}

func runGit(ctx context.Context, workDir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errors.Fetch(fmt.Sprintf("git %s: %s", args[0], msg), err)
	}
	return nil
}
