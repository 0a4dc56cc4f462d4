// Package gitcli reads branch and working tree state through the git binary.
package gitcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bnema/healthline/internal/domain"
	"github.com/bnema/healthline/internal/ports"
)

var ErrUnavailable = errors.New("git command unavailable")

// exit status git uses for "not a git repository"
const notRepoExitCode = 128

type runFunc func(ctx context.Context, dir string, args ...string) (stdout string, stderr string, err error)

type Inspector struct {
	run runFunc
}

var _ ports.GitInspector = (*Inspector)(nil)

func NewInspector() *Inspector {
	return &Inspector{run: runGitCommand}
}

// Status returns IsRepo=false without error outside a work tree.
func (i *Inspector) Status(ctx context.Context, dir string) (domain.Git, error) {
	if strings.TrimSpace(dir) == "" {
		return domain.Git{}, errors.New("working directory is empty")
	}

	stdout, stderr, err := i.run(ctx, dir, "status", "--porcelain=v2", "--branch", "--untracked-files=normal")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == notRepoExitCode && strings.Contains(stderr, "not a git repository") {
			return domain.Git{}, nil
		}
		if stderr != "" {
			return domain.Git{}, fmt.Errorf("git status: %w: %s", err, stderr)
		}
		return domain.Git{}, fmt.Errorf("git status: %w", err)
	}

	return parsePorcelain(stdout), nil
}

func parsePorcelain(out string) domain.Git {
	git := domain.Git{IsRepo: true}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "# branch.head "):
			head := strings.TrimPrefix(line, "# branch.head ")
			if head != "(detached)" {
				git.Branch = head
			} else {
				git.Branch = "HEAD"
			}
		case strings.HasPrefix(line, "# branch.ab "):
			for _, field := range strings.Fields(strings.TrimPrefix(line, "# branch.ab ")) {
				n, err := strconv.Atoi(field[1:])
				if err != nil {
					continue
				}
				switch field[0] {
				case '+':
					git.Ahead = n
				case '-':
					git.Behind = n
				}
			}
		case strings.HasPrefix(line, "#"), line == "":
		default:
			git.Dirty++
		}
	}

	return git
}

func runGitCommand(ctx context.Context, dir string, args ...string) (string, string, error) {
	path, err := exec.LookPath("git")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate git command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, append([]string{"--no-optional-locks"}, args...)...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
