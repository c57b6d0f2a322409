package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  get <key>              print the value of a key
  insert <key> <value>   store a value
  update <key> <value>   replace the value of an existing key
  delete <key>           delete a key
  find <key>             scan the log for a key
  keys [prefix]          list live keys
  dump                   list every record
  verify                 check every record checksum
  snapshot               persist the index into the log
  stats                  show store statistics
  help                   show this help
  exit                   leave the shell
Quote arguments containing spaces: insert "my key" "my value"`

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively against one open store",
		Long: `Start an interactive prompt. The store is opened and replayed once and
stays locked until the shell exits.

Example:
  akv -f data.akv shell`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.session == nil {
				return fmt.Errorf("store is not open")
			}
			return a.session.repl(cmd.InOrStdin())
		},
	}
}

// repl reads commands until exit or end of input
func (s *session) repl(in io.Reader) error {
	fmt.Fprintf(s.out, "Opened %s. Type 'help' for commands or 'exit' to quit.\n", s.store.Path())

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(s.out, "akv> ")

		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("input error: %w", err)
		}
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line != "" {
			if err := s.dispatch(line); err != nil {
				fmt.Fprintln(s.errOut, "error:", err)
			}
		}
		if eof {
			fmt.Fprintln(s.out)
			return nil
		}
	}
}

func (s *session) dispatch(line string) error {
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(words) == 0 {
		return nil
	}

	name, args := strings.ToLower(words[0]), words[1:]
	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}

	switch name {
	case "get":
		if err := want(1); err != nil {
			return err
		}
		return s.get(args[0])
	case "insert", "put", "set":
		if err := want(2); err != nil {
			return err
		}
		return s.insert(args[0], args[1])
	case "update":
		if err := want(2); err != nil {
			return err
		}
		return s.update(args[0], args[1])
	case "delete", "del":
		if err := want(1); err != nil {
			return err
		}
		return s.delete(args[0])
	case "find":
		if err := want(1); err != nil {
			return err
		}
		return s.find(args[0])
	case "keys":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return s.keys(prefix)
	case "dump":
		return s.dump(len(args) > 0 && args[0] == "--values")
	case "verify":
		return s.verify()
	case "snapshot":
		return s.snapshot()
	case "stats":
		return s.stats()
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
}
