package kv

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/respkv/cmd/util"
	"github.com/ValentinKolb/respkv/rpc/client"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"strconv"
	"strings"
)

var (
	txWatch []string

	txCmd = &cobra.Command{
		Use:   `tx [command...]`,
		Short: "Executes commands in one MULTI/EXEC transaction",
		Long: util.WrapString(`Executes commands in one MULTI/EXEC transaction. Every argument is one command, quoted like in a shell (e.g. tx "SET greeting 'hello world'" "INCR visits"). With --watch the transaction is aborted if one of the keys is modified before it is committed.`),
		Args: cobra.MinimumNArgs(1),
		RunE: runTx,
	}
)

func init() {
	txCmd.Flags().StringSliceVar(&txWatch, "watch", nil, util.WrapString("Keys to watch (comma separated)"))
}

func runTx(_ *cobra.Command, args []string) error {
	commands, err := parseCommands(args)
	if err != nil {
		return err
	}

	if len(txWatch) > 0 {
		if err := kvClient.Watch(txWatch...); err != nil {
			return err
		}
	}

	tx, err := kvClient.CreateTransaction()
	if err != nil {
		return err
	}
	defer tx.Close()

	// errors of single commands are printed with the other replies
	replies := make([]string, len(commands))
	for i, command := range commands {
		op := client.WithErrorHandler(
			client.NewValueOperation(kvClient.Conn().ReadReply, func(reply interface{}) error {
				replies[i] = formatReply(reply)
				return nil
			}),
			func(err error) { replies[i] = formatReply(err) },
		)
		if err := tx.QueueCommand(op, toArgs(command)...); err != nil {
			return err
		}
	}

	err = tx.Commit()
	if errors.Is(err, client.ErrTransactionAborted) {
		fmt.Println("aborted (a watched key was modified)")
		return nil
	}
	if err != nil {
		return err
	}

	for i, command := range commands {
		fmt.Printf("%d) %s -> %s\n", i+1, strings.Join(command, " "), replies[i])
	}
	return nil
}

// parseCommands splits every argument into the words of one command
func parseCommands(args []string) ([][]string, error) {
	commands := make([][]string, 0, len(args))
	for _, arg := range args {
		words, err := shellwords.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid command %q: %w", arg, err)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("empty command")
		}
		commands = append(commands, words)
	}
	return commands, nil
}

func toArgs(words []string) [][]byte {
	args := make([][]byte, len(words))
	for i, w := range words {
		args[i] = []byte(w)
	}
	return args
}

// formatReply renders a decoded RESP reply in a single line
func formatReply(reply interface{}) string {
	switch v := reply.(type) {
	case nil:
		return "(nil)"
	case string:
		return v
	case int64:
		return "(integer) " + strconv.FormatInt(v, 10)
	case []byte:
		if v == nil {
			return "(nil)"
		}
		return strconv.Quote(string(v))
	case error:
		return "(error) " + v.Error()
	case []interface{}:
		if v == nil {
			return "(nil)"
		}
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatReply(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
