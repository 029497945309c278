// Package signwire implements the textual command protocol of the LED sign
// daemon: newline-terminated requests built from semicolon-separated
// fragments, answered with a single response line.
package signwire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// CommandClear wipes the display. It is a complete command on its own.
	CommandClear = "CLEAR"

	// setPrefix introduces a display command; the fragments follow directly.
	setPrefix = "SET"

	endToken = "END"
)

// Item kinds understood by the sign.
const (
	KindStatic = "static"
	KindScroll = "scroll"
)

// Item is one renderable element of a display command.
type Item struct {
	Kind    string
	Text    string
	X       int
	Y       int
	Color   [3]int
	Speed   int // pixels per second, scroll only
}

// sanitizeText strips the protocol's separator characters from free text.
// The wire format has no escaping; semicolons and newlines would corrupt
// the frame.
func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, ";", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return text
}

// EncodeStatic builds a static text fragment:
// STATIC;<text>;<x>;<y>;(<r>,<g>,<b>);END;
func EncodeStatic(text string, x, y int, color [3]int) string {
	return fmt.Sprintf("STATIC;%s;%d;%d;(%d,%d,%d);END;",
		sanitizeText(text), x, y, color[0], color[1], color[2])
}

// EncodeScroll builds a scrolling text fragment:
// SCROLL;<text>;<x>;<y>;(<r>,<g>,<b>);<speed>;END;
func EncodeScroll(text string, x, y int, color [3]int, speed int) string {
	return fmt.Sprintf("SCROLL;%s;%d;%d;(%d,%d,%d);%d;END;",
		sanitizeText(text), x, y, color[0], color[1], color[2], speed)
}

// EncodeSet composes a full display command from items, in order. Items with
// an unrecognized kind are skipped; the sign only knows static and scroll.
func EncodeSet(items []Item) string {
	var b strings.Builder
	b.WriteString(setPrefix)
	for _, item := range items {
		switch item.Kind {
		case KindStatic:
			b.WriteString(EncodeStatic(item.Text, item.X, item.Y, item.Color))
		case KindScroll:
			b.WriteString(EncodeScroll(item.Text, item.X, item.Y, item.Color, item.Speed))
		}
	}
	return b.String()
}

// ParseSet decodes a SET command back into its items. The decoder is strict,
// matching the sign daemon: any malformed fragment rejects the whole command.
func ParseSet(command string) ([]Item, error) {
	body, ok := strings.CutPrefix(command, setPrefix)
	if !ok {
		return nil, fmt.Errorf("not a SET command: %q", command)
	}

	var items []Item
	rest := body
	for rest != "" {
		var item Item
		var err error

		kind, tail, err := nextField(rest)
		if err != nil {
			return nil, fmt.Errorf("missing item type: %w", err)
		}
		rest = tail

		switch kind {
		case "STATIC":
			item.Kind = KindStatic
		case "SCROLL":
			item.Kind = KindScroll
		default:
			return nil, fmt.Errorf("unknown item type %q", kind)
		}

		if item.Text, rest, err = nextField(rest); err != nil {
			return nil, fmt.Errorf("%s: missing text: %w", kind, err)
		}
		if item.X, rest, err = nextIntField(rest); err != nil {
			return nil, fmt.Errorf("%s: bad x position: %w", kind, err)
		}
		if item.Y, rest, err = nextIntField(rest); err != nil {
			return nil, fmt.Errorf("%s: bad y position: %w", kind, err)
		}

		colorField, tail, err := nextField(rest)
		if err != nil {
			return nil, fmt.Errorf("%s: missing color: %w", kind, err)
		}
		rest = tail
		if item.Color, err = ParseColor(colorField); err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}

		if item.Kind == KindScroll {
			if item.Speed, rest, err = nextIntField(rest); err != nil {
				return nil, fmt.Errorf("SCROLL: bad speed: %w", err)
			}
			if item.Speed <= 0 {
				return nil, fmt.Errorf("SCROLL: speed must be positive, got %d", item.Speed)
			}
		}

		end, tail, err := nextField(rest)
		if err != nil || end != endToken {
			return nil, fmt.Errorf("%s: missing END token", kind)
		}
		rest = tail

		items = append(items, item)
	}
	return items, nil
}

// ParseColor decodes a "(r,g,b)" color tuple with each channel in 0..255.
func ParseColor(field string) ([3]int, error) {
	var color [3]int
	inner, ok := strings.CutPrefix(field, "(")
	if ok {
		inner, ok = strings.CutSuffix(inner, ")")
	}
	if !ok {
		return color, fmt.Errorf("bad color format %q (expected (r,g,b))", field)
	}
	parts := strings.Split(inner, ",")
	if len(parts) != 3 {
		return color, fmt.Errorf("bad color format %q (expected (r,g,b))", field)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return color, fmt.Errorf("color channel %q out of range 0-255", p)
		}
		color[i] = v
	}
	return color, nil
}

// IsErrorResponse reports whether a sign response line signals failure.
// Channel-level failures surface as ERROR responses too (see Client.Send).
func IsErrorResponse(response string) bool {
	return strings.HasPrefix(response, "ERROR")
}

func nextField(s string) (field, rest string, err error) {
	idx := strings.IndexByte(s, ';')
	if idx < 0 {
		return "", s, fmt.Errorf("unterminated field in %q", s)
	}
	return s[:idx], s[idx+1:], nil
}

func nextIntField(s string) (value int, rest string, err error) {
	field, rest, err := nextField(s)
	if err != nil {
		return 0, rest, err
	}
	value, err = strconv.Atoi(field)
	if err != nil {
		return 0, rest, fmt.Errorf("%q is not an integer", field)
	}
	if value < 0 {
		return 0, rest, fmt.Errorf("%d is negative", value)
	}
	return value, rest, nil
}
