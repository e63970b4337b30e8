package bot

import (
	"fmt"
	"strconv"
	"strings"

	"pulse_bot/internal/model"
)

// AddArgs holds the parsed arguments of the /add command.
type AddArgs struct {
	Kind      model.SourceKind
	Network   string
	ProfileID string
	Name      string
}

// ParseAddArgs parses /add arguments.
// Formats: page <network> <profile_id> <name...>
//          feed <url> [name...]
func ParseAddArgs(args string) (AddArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return AddArgs{}, fmt.Errorf("source kind and identity are required")
	}

	switch model.SourceKind(parts[0]) {
	case model.KindPage:
		if len(parts) < 4 {
			return AddArgs{}, fmt.Errorf("page sources need <network> <profile_id> <name>")
		}
		return AddArgs{
			Kind:      model.KindPage,
			Network:   parts[1],
			ProfileID: parts[2],
			Name:      strings.Join(parts[3:], " "),
		}, nil
	case model.KindFeed:
		name := parts[1]
		if len(parts) > 2 {
			name = strings.Join(parts[2:], " ")
		}
		return AddArgs{
			Kind:      model.KindFeed,
			ProfileID: parts[1],
			Name:      name,
		}, nil
	default:
		return AddArgs{}, fmt.Errorf("unknown source kind %q, use: page, feed", parts[0])
	}
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("ID is required")
	}
	id, err := strconv.ParseInt(strings.Fields(s)[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}

// ParsePostIDArg extracts an opaque post ID from a command argument string.
func ParsePostIDArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("post ID is required")
	}
	return strings.Fields(s)[0], nil
}

// ParseThresholdArgs extracts a source ID and threshold. A threshold of
// "off" returns nil, disabling alerting.
func ParseThresholdArgs(args string) (int64, *int64, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return 0, nil, fmt.Errorf("usage: /threshold <id> <n|off>")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid source ID %q", parts[0])
	}
	if parts[1] == "off" {
		return id, nil, nil
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n < 1 {
		return 0, nil, fmt.Errorf("threshold must be a positive number or off")
	}
	return id, &n, nil
}
