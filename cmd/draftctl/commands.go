package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/service"
)

var errQuit = errors.New("quit")

const usage = `Commands:
  create <cv|resume>
  get <id>
  save <id> <progress> <payload JSON>
  submit <id>
  help
  quit`

// execute runs one REPL line against svc and returns the text to print.
func execute(ctx context.Context, svc *service.DraftService, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit", "exit":
		return "", errQuit

	case "help":
		return usage, nil

	case "create":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: create <cv|resume>")
		}
		d, err := svc.Create(ctx, args[0])
		if err != nil {
			return "", err
		}
		return toJSON(d)

	case "get":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: get <id>")
		}
		d, err := svc.Get(ctx, model.DraftID(args[0]))
		if err != nil {
			return "", err
		}
		return toJSON(d)

	case "save":
		if len(args) < 3 {
			return "", fmt.Errorf("usage: save <id> <progress> <payload JSON>")
		}
		progress, err := strconv.Atoi(args[1])
		if err != nil {
			return "", fmt.Errorf("invalid progress %q: %w", args[1], err)
		}
		// The payload may contain spaces; it is everything after the progress.
		_, rest := cutField(line)
		_, rest = cutField(rest)
		_, raw := cutField(rest)
		var payload model.Payload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return "", fmt.Errorf("invalid payload: %w", err)
		}
		res, err := svc.Save(ctx, model.DraftID(args[0]), payload, progress)
		if err != nil {
			return "", err
		}
		return toJSON(res)

	case "submit":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: submit <id>")
		}
		res, err := svc.Submit(ctx, model.DraftID(args[0]))
		if err != nil {
			return "", err
		}
		return toJSON(res)

	default:
		return "", fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func toJSON(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
