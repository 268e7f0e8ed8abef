package analyzer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// CommentCommand is the command name reported for comment lines.
const CommentCommand = "comment"

// ErrBlankLine is returned by ParseLine for empty or whitespace-only lines.
var ErrBlankLine = errors.New("blank line")

var paramPattern = regexp.MustCompile(`-(\w+)=("[^"]+"|\S+)`)

// Param is one -key=value pair. Key is lower-cased, quotes around Value are
// removed.
type Param struct {
	Key   string
	Value string
}

// Command is one parsed script line.
type Command struct {
	Name   string  // lower-cased command name, or CommentCommand
	Params []Param // in the order written
	Args   string  // everything after the name, as written
	Raw    string  // the trimmed line
}

// Map returns the parameters as a map, for logging.
func (c Command) Map() map[string]string {
	m := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		m[p.Key] = p.Value
	}
	return m
}

// ParseLine parses one script line. Lines starting with # are comments.
// Anything after the command name that is not a -key=value pair is an error.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrBlankLine
	}
	if strings.HasPrefix(line, "#") {
		return Command{Name: CommentCommand, Raw: line}, nil
	}

	name, args := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		name, args = line[:i], line[i:]
	}
	cmd := Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
		Raw:  line,
	}

	matches := paramPattern.FindAllStringSubmatchIndex(cmd.Args, -1)
	last := 0
	for _, m := range matches {
		if gap := strings.TrimSpace(cmd.Args[last:m[0]]); gap != "" {
			return cmd, fmt.Errorf("unexpected text %q in parameters", gap)
		}
		cmd.Params = append(cmd.Params, Param{
			Key:   strings.ToLower(cmd.Args[m[2]:m[3]]),
			Value: strings.Trim(cmd.Args[m[4]:m[5]], `"`),
		})
		last = m[1]
	}
	if rest := strings.TrimSpace(cmd.Args[last:]); rest != "" {
		return cmd, fmt.Errorf("unexpected text %q in parameters", rest)
	}
	return cmd, nil
}

// Lines splits a script into its non-blank lines, trimmed. CRLF line
// endings are accepted.
func Lines(script string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(script, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
