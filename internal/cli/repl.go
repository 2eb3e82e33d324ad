package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Run commands interactively",
		Long: `Run dvaldb commands interactively over one open store.

Each line is a command without the leading "dvaldb", for example:
  > create Person name:Str age:Int
  > insert Person '{"name":"Ada","age":36}'
  > fetch Person --format json
Flags given on a line stay in effect for later lines. Type "exit" or
press Ctrl-D to leave.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.session != nil {
				return NewExitError(ExitCommandError, "already in a repl")
			}
			return runRepl(rootOpts, cmd)
		},
	}
}

func runRepl(opts *RootOptions, cmd *cobra.Command) error {
	s, err := OpenSession(cmd.Context(), opts)
	if err != nil {
		return newFormatter(opts, cmd).Fail(err)
	}
	defer s.Close()
	opts.session = s
	defer func() { opts.session = nil }()

	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetCtrlCAborts(true)

	history := historyPath()
	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = lin.ReadHistory(f)
			f.Close()
		}
	}

	for {
		got, err := lin.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(cmd.OutOrStdout())
				break
			}
			s.Log.Warnw("unexpected error reading prompt", "error", err)
			continue
		}
		line := strings.TrimSpace(got)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		lin.AppendHistory(got)
		if err := replLine(opts, cmd, line); err != nil && !IsReported(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
	}

	if history != "" {
		if f, err := os.Create(history); err == nil {
			_, _ = lin.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// replLine runs one repl line as a command over opts' session.
func replLine(opts *RootOptions, parent *cobra.Command, line string) error {
	args, err := splitWords(line)
	if err != nil {
		return err
	}
	root := newRootCommand(opts)
	root.SetOut(parent.OutOrStdout())
	root.SetErr(parent.ErrOrStderr())
	root.SetArgs(args)
	return root.ExecuteContext(parent.Context())
}

func historyPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dvaldb_history")
}

// splitWords splits a line into words. Single quotes keep their content
// verbatim, double quotes allow backslash escapes, and a backslash outside
// quotes escapes the next character.
func splitWords(line string) ([]string, error) {
	var (
		words []string
		cur   strings.Builder
		quote rune
		inWord, escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\\' && quote != '\'':
			escaped, inWord = true, true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}
